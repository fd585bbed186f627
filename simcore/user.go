package simcore

import "fmt"

// User holds a workload owner's share weight, usage accounting and
// campaign lists. Invariant: Active() iff ActiveCamps is nonempty.
type User struct {
	ID UserID

	shares Frozen[float64]

	cpuClockUsed    float64
	occupiedCPUs    int
	virtPool        float64
	lostVirtual     float64
	falseInactivity int64
	lastActive      int64

	activeCamps    []*Campaign
	completedCamps []*Campaign

	campCounter CampaignID
}

// NewUser constructs a user. Shares must be set via SetShares before
// the user participates in a run.
func NewUser(id UserID) *User {
	return &User{ID: id}
}

// SetShares freezes the user's share weight. Must be > 0. NewSimulator
// normalizes the weights of all its users to sum to 1.0.
func (u *User) SetShares(shares float64) {
	if shares <= 0 {
		panic(fmt.Sprintf("simcore: user %s has non-positive shares %v", u.ID, shares))
	}
	u.shares.Set(shares)
}

// Shares returns the user's normalized share weight.
func (u *User) Shares() float64 {
	if !u.shares.IsSet() {
		panic(fmt.Sprintf("simcore: user %s has no shares set", u.ID))
	}
	return u.shares.Get()
}

// Reset returns the user to its pre-run state. Shares are NOT reset —
// they are an external input independent of any particular run.
func (u *User) Reset() {
	u.cpuClockUsed = 0
	u.occupiedCPUs = 0
	u.virtPool = 0
	u.lostVirtual = 0
	u.falseInactivity = 0
	u.lastActive = 0
	u.activeCamps = nil
	u.completedCamps = nil
	u.campCounter = 0
}

// Active reports whether the user has any still-active campaign.
func (u *User) Active() bool { return len(u.activeCamps) > 0 }

// ActiveCamps returns the user's active campaigns, ordered by creation time.
func (u *User) ActiveCamps() []*Campaign { return u.activeCamps }

// CompletedCamps returns the user's completed campaigns, ordered by
// completion (dense, CompletedCamps()[i].ID == i).
func (u *User) CompletedCamps() []*Campaign { return u.completedCamps }

// CPUClockUsed returns the decayed real CPU-seconds consumed.
func (u *User) CPUClockUsed() float64 { return u.cpuClockUsed }

// OccupiedCPUs returns the user's currently running CPU count.
func (u *User) OccupiedCPUs() int { return u.occupiedCPUs }

// LostVirtual returns the overflow virtual time accumulated when all
// of the user's campaigns were already saturated.
func (u *User) LostVirtual() float64 { return u.lostVirtual }

// FalseInactivity returns the cumulative time the user spent
// classified as inactive due to estimates that turned out too short.
func (u *User) FalseInactivity() int64 { return u.falseInactivity }

// LastActive returns the time the user was last marked inactive.
func (u *User) LastActive() int64 { return u.lastActive }

// SetLastActive records the time the user became inactive.
func (u *User) SetLastActive(t int64) { u.lastActive = t }

// AddFalseInactivity accumulates time spent inactive due to a too-short estimate.
func (u *User) AddFalseInactivity(d int64) { u.falseInactivity += d }

// AddVirtual queues virtual time to be redistributed on the next VirtualWork call.
func (u *User) AddVirtual(value float64) {
	u.virtPool += value
}

// VirtualWork redistributes the accumulated virtual pool across the
// user's active campaigns, in creation order, capping each campaign's
// virtual progress at its own workload and chaining each campaign's
// offset to the running sum of its predecessors' time_left. Any
// overflow once every active campaign is saturated is lost.
func (u *User) VirtualWork() {
	total := u.virtPool
	for _, c := range u.activeCamps {
		total += c.virtual
	}
	offset := 0.0
	for _, c := range u.activeCamps {
		v := total
		if w := float64(c.Workload()); w < v {
			v = w
		}
		total -= v
		c.virtual = v
		c.offset = offset
		offset += c.TimeLeft()
	}
	u.virtPool = 0
	u.lostVirtual += total
}

// RealWork accounts `value` ticks of real CPU usage at the user's
// current occupancy, then applies the rolling decay factor.
func (u *User) RealWork(value int64, decayFactor float64) {
	u.cpuClockUsed += float64(u.occupiedCPUs) * float64(value)
	u.cpuClockUsed *= decayFactor
}

func (u *User) jobStarted(job *Job) {
	u.occupiedCPUs += job.Proc
}

// jobEnded updates occupancy and redistributes any estimate overshoot:
// the job's campaign over-counted its workload by
// (estimate-run_time)*proc while the job was still running, so that
// excess virtual progress is subtracted from the campaign and handed
// back to the user's pool for redistribution.
func (u *User) jobEnded(job *Job) {
	u.occupiedCPUs -= job.Proc
	diff := float64(job.Estimate()-job.RunTime) * float64(job.Proc)
	job.Camp().adjustVirtualOnEarlyEnd(diff)
	u.virtPool += diff
}

// CreateCampaign starts a new campaign for the user at time t, with
// the next dense per-user campaign ID.
func (u *User) CreateCampaign(t int64) *Campaign {
	c := newCampaign(u.campCounter, u, t)
	u.campCounter++
	u.activeCamps = append(u.activeCamps, c)
	return c
}

// ResurrectLastCompleted moves the user's most recently completed
// campaign back onto the active list (appended at the end, i.e. it
// becomes the new active head only if no other campaign is active).
// Used by the campaign Selector when a submission falls within
// threshold of a campaign that ended purely because the user paused.
func (u *User) ResurrectLastCompleted() *Campaign {
	n := len(u.completedCamps)
	c := u.completedCamps[n-1]
	u.completedCamps = u.completedCamps[:n-1]
	u.activeCamps = append(u.activeCamps, c)
	return c
}

// completeHeadCampaign moves the user's active-list head campaign to
// completed. Requires it to be time_left <= 0 and ID-dense.
func (u *User) completeHeadCampaign() *Campaign {
	c := u.activeCamps[0]
	u.activeCamps = u.activeCamps[1:]
	if int(c.ID) != len(u.completedCamps) {
		panic(fmt.Sprintf("simcore: user %s campaign completion order violated: camp %d, expected index %d",
			u.ID, c.ID, len(u.completedCamps)))
	}
	u.completedCamps = append(u.completedCamps, c)
	return c
}

// reactivateIfNeeded implements the source's job_next_estimate
// campaign-reactivation: if job's campaign had already virtually
// completed (moved to completedCamps) by the time its EstimateEnd
// fires, move it back to the front of the active list together with
// every campaign completed after it (camp.ID is its list position, so
// completedCamps[camp.ID:] moves as one block, in order).
func (u *User) reactivateIfNeeded(camp *Campaign) {
	for _, c := range u.activeCamps {
		if c == camp {
			return // already active
		}
	}
	loc := int(camp.ID)
	if loc >= len(u.completedCamps) || u.completedCamps[loc] != camp {
		panic(fmt.Sprintf("simcore: user %s campaign %d not found at its dense index", u.ID, camp.ID))
	}
	rest := append([]*Campaign(nil), u.completedCamps[loc:]...)
	u.completedCamps = u.completedCamps[:loc]
	u.activeCamps = append(rest, u.activeCamps...)
	if u.activeCamps[0] != camp {
		panic(fmt.Sprintf("simcore: user %s invalid campaign ordering after reactivation", u.ID))
	}
}

func (u *User) String() string {
	return fmt.Sprintf("User{%s usage=%.3f active=%d completed=%d}",
		u.ID, u.cpuClockUsed, len(u.activeCamps), len(u.completedCamps))
}
