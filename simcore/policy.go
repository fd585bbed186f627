package simcore

import "math"

// PriorityKey is a lexicographically ordered tuple: lower sorts first
// (higher scheduling priority). Policies fill in as many components as
// they need; unused trailing components stay zero.
type PriorityKey struct {
	f1, f2 float64
	s1     UserID
	i1     int64
	f3     float64
	i2     int64
	i3     int64
	s2     JobID
}

// Less reports whether a sorts before b.
func (a PriorityKey) Less(b PriorityKey) bool {
	if a.f1 != b.f1 {
		return a.f1 < b.f1
	}
	if a.f2 != b.f2 {
		return a.f2 < b.f2
	}
	if a.s1 != b.s1 {
		return a.s1 < b.s1
	}
	if a.i1 != b.i1 {
		return a.i1 < b.i1
	}
	if a.f3 != b.f3 {
		return a.f3 < b.f3
	}
	if a.i2 != b.i2 {
		return a.i2 < b.i2
	}
	if a.i3 != b.i3 {
		return a.i3 < b.i3
	}
	return a.s2 < b.s2
}

// Policy governs pending-queue ordering (PriorityKey) and within-campaign
// job ordering (CampaignJobKey), and declares which accounting stage(s)
// it needs — letting a specialized simulator variant skip the other.
type Policy interface {
	// PriorityKey orders the global pending queue; lower sorts first.
	PriorityKey(job *Job, totalUsage float64) PriorityKey
	// CampaignJobKey orders jobs within a campaign; lower sorts first.
	// The Simulator does not call it: pending-queue order comes from
	// PriorityKey alone.
	CampaignJobKey(job *Job) PriorityKey
	// OnlyVirtual reports whether this policy needs only virtual-time
	// campaign accounting (real CPU usage need not be tracked).
	OnlyVirtual() bool
	// OnlyReal reports whether this policy needs only decayed real CPU
	// usage accounting (virtual campaign accounting need not be tracked).
	OnlyReal() bool
}

// OStrichPolicy implements virtual-time campaign fairness: jobs in
// campaigns closer to completion (in virtual time, normalized by user
// share) run first. Grounded on the source's OStrichSimulator
// (ostrich.py) with the generalized CommonSimulator campaign/priority
// keys (algorithms.py).
type OStrichPolicy struct{}

func (OStrichPolicy) PriorityKey(job *Job, _ float64) PriorityKey {
	c := job.Camp()
	return PriorityKey{
		f1: c.TimeLeft() / c.User.Shares(),
		f2: float64(c.Created),
		s1: c.User.ID,
		i1: int64(c.ID),
		f3: float64(job.Estimate()),
		i2: job.Submit,
		s2: job.ID,
	}
}

// CampaignJobKey orders a campaign's own jobs shortest-estimate-first,
// earliest-submit breaking ties.
func (OStrichPolicy) CampaignJobKey(job *Job) PriorityKey {
	return PriorityKey{f1: float64(job.Estimate()), i2: job.Submit, s2: job.ID}
}

func (OStrichPolicy) OnlyVirtual() bool { return true }
func (OStrichPolicy) OnlyReal() bool    { return false }

// FairsharePolicy implements decay-weighted real-usage fairness: the
// user with the smallest usage-to-share ratio is served first. Campaign
// membership exists only to group a user's concurrent jobs; it carries
// no ordering weight of its own. Grounded on the source's
// FairshareSimulator (algorithms.py) together with spec's resolution of
// its unfinished `_job_priority_key`.
type FairsharePolicy struct{}

func (FairsharePolicy) PriorityKey(job *Job, totalUsage float64) PriorityKey {
	user := job.Camp().User
	effective := 1.0
	if totalUsage != 0 {
		effective = user.CPUClockUsed() / totalUsage
	}
	raw := math.Pow(2, -(effective / user.Shares()))
	priority := math.Floor(raw * 100000)
	return PriorityKey{f1: -priority, i2: job.Submit, s2: job.ID}
}

// CampaignJobKey keys on job.ID alone: Fairshare does not order jobs
// within a campaign by estimate, submit time or any other job property.
func (FairsharePolicy) CampaignJobKey(job *Job) PriorityKey {
	return PriorityKey{s2: job.ID}
}

func (FairsharePolicy) OnlyVirtual() bool { return false }
func (FairsharePolicy) OnlyReal() bool    { return true }
