package simcore

import (
	"fmt"
	"math"
)

// CampaignID is a per-user monotonically increasing, dense index: the
// authoritative identity used both while a campaign is active and
// after it completes (completedCamps[i].ID == i).
type CampaignID int

// Campaign is a consecutive batch of a user's jobs bounded by
// submission-idle gaps exceeding the selector threshold — the unit of
// virtual-time fairness. See User.VirtualWork for how Virtual and
// Offset are maintained.
type Campaign struct {
	ID      CampaignID
	User    *User
	Created int64

	remaining     int64 // sum(estimate*proc) over active jobs
	completedWork int64 // sum(run_time*proc) over completed jobs

	virtual float64
	offset  float64

	activeJobs    []*Job
	completedJobs []*Job
}

func newCampaign(id CampaignID, user *User, created int64) *Campaign {
	return &Campaign{ID: id, User: user, Created: created}
}

// Workload is the predicted total CPU-time needed to finish the
// campaign's jobs: sum(estimate*proc) over active jobs plus
// sum(run_time*proc) over completed jobs.
func (c *Campaign) Workload() int64 {
	return c.remaining + c.completedWork
}

// TimeLeft is the virtual time still needed to fulfill the campaign's
// workload: workload - floor(virtual) + offset.
func (c *Campaign) TimeLeft() float64 {
	return float64(c.Workload()) - math.Floor(c.virtual) + c.offset
}

// Active reports whether the campaign still has virtual work left.
func (c *Campaign) Active() bool {
	return c.TimeLeft() > 0
}

// Virtual returns the campaign's accumulated virtual progress.
func (c *Campaign) Virtual() float64 { return c.virtual }

// Offset returns the virtual time the user's earlier still-active
// campaigns still need.
func (c *Campaign) Offset() float64 { return c.offset }

// ActiveJobs returns the campaign's not-yet-ended jobs.
func (c *Campaign) ActiveJobs() []*Job { return c.activeJobs }

// CompletedJobs returns the campaign's finished jobs, in end order.
func (c *Campaign) CompletedJobs() []*Job { return c.completedJobs }

// AddJob links job into the campaign. Until the job ends, only its
// estimate can be used for workload accounting.
func (c *Campaign) AddJob(job *Job) {
	c.remaining += job.Estimate() * int64(job.Proc)
	c.activeJobs = append(c.activeJobs, job)
	job.assignCampaign(c)
}

// jobStarted is a no-op: nothing in the virtual/workload accounting
// changes the instant a job starts running.
func (c *Campaign) jobStarted(_ *Job) {}

// jobEnded swaps the job's estimated contribution for its real
// run_time contribution to the campaign workload, and removes it from
// the active set.
func (c *Campaign) jobEnded(job *Job) {
	c.remaining -= job.Estimate() * int64(job.Proc)
	c.completedWork += job.RunTime * int64(job.Proc)
	c.removeActive(job)
	c.completedJobs = append(c.completedJobs, job)
}

// changeEstimate applies a revised (raised) estimate to the campaign's
// outstanding workload, called when an EstimateEnd event fires.
func (c *Campaign) changeEstimate(job *Job, oldEstimate, newEstimate int64) {
	c.remaining -= oldEstimate * int64(job.Proc)
	c.remaining += newEstimate * int64(job.Proc)
}

// adjustVirtualOnEarlyEnd directly corrects virtual progress when a
// job finishes before its estimate elapsed: the overshoot is removed
// from this campaign's virtual progress (it flows back to the user's
// virtual pool for redistribution — see User.jobEnded).
func (c *Campaign) adjustVirtualOnEarlyEnd(diff float64) {
	c.virtual -= diff
}

func (c *Campaign) removeActive(job *Job) {
	for i, j := range c.activeJobs {
		if j == job {
			c.activeJobs = append(c.activeJobs[:i], c.activeJobs[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("simcore: job %s not found in campaign %d active jobs", job.ID, c.ID))
}

func (c *Campaign) String() string {
	return fmt.Sprintf("Campaign{%d user=%s created=%d workload=%d left=%.2f}",
		c.ID, c.User.ID, c.Created, c.Workload(), c.TimeLeft())
}
