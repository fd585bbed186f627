package simcore

import "fmt"

// JobID uniquely identifies a job within a run.
type JobID string

// UserID uniquely identifies a user within a run.
type UserID string

// Job is the core unit of scheduled work. ID, Submit, RunTime, Proc and
// User are immutable inputs; TimeLimit is filled once (by a Submitter)
// and frozen; Estimate, start/end state and campaign membership are
// mutable per-run state reset at the start of each simulation.
//
// Invariant: Estimate() >= RunTime at job end. A job belongs to exactly
// one Campaign for its lifetime (Camp is frozen on first assignment,
// and reset back to unassigned by Reset).
type Job struct {
	ID      JobID
	Submit  int64
	RunTime int64
	Proc    int
	User    UserID

	// Nodes and PnCpus are the job's optional per-node CPU shape
	// (nodes * pn_cpus == Proc); zero means the feature is unused for
	// this job. Set via ValidateNodeConfiguration at ingress.
	Nodes  int
	PnCpus int

	timeLimit Frozen[int64]
	camp      Frozen[*Campaign]

	estimate  int64
	started   bool
	completed bool
	startTime int64
}

// NewJob constructs a job with its immutable inputs. TimeLimit is left
// unset until a Submitter fills it in (SetTimeLimit).
func NewJob(id JobID, submit, runTime int64, proc int, user UserID) *Job {
	if runTime <= 0 {
		panic(fmt.Sprintf("simcore: job %s has non-positive run_time %d", id, runTime))
	}
	if proc <= 0 {
		panic(fmt.Sprintf("simcore: job %s has non-positive proc %d", id, proc))
	}
	if submit < 0 {
		panic(fmt.Sprintf("simcore: job %s has negative submit %d", id, submit))
	}
	return &Job{ID: id, Submit: submit, RunTime: runTime, Proc: proc, User: user}
}

// ValidateNodeConfiguration checks a job's optional per-node CPU shape
// against its proc count, auto-deriving whichever of nodes/pn_cpus is
// missing. Grounded on original_source's Job.validate_configuration:
// if both are zero the feature is off; if they disagree with proc,
// proc is corrected to nodes*pn_cpus and corrected reports true so the
// caller can log a warning (this is a correction, not a fatal error).
func ValidateNodeConfiguration(proc, nodes, pnCpus int) (resolvedProc, resolvedNodes, resolvedPnCpus int, corrected bool, err error) {
	if nodes == 0 && pnCpus == 0 {
		return proc, 0, 0, false, nil
	}
	if nodes > 0 && pnCpus == 0 {
		pnCpus = (proc + nodes - 1) / nodes
	} else if nodes == 0 && pnCpus > 0 {
		nodes = (proc + pnCpus - 1) / pnCpus
	}
	if nodes <= 0 || pnCpus <= 0 {
		return 0, 0, 0, false, fmt.Errorf("invalid node configuration: nodes=%d pn_cpus=%d", nodes, pnCpus)
	}
	total := nodes * pnCpus
	if total != proc {
		return total, nodes, pnCpus, true, nil
	}
	return proc, nodes, pnCpus, false, nil
}

// Reset returns the job to its pre-run state: unassigned to any
// campaign, not started, not completed, no estimate. TimeLimit is NOT
// reset — it is set once per workload, independent of run.
func (j *Job) Reset() {
	j.camp.Reset()
	j.started = false
	j.completed = false
	j.estimate = 0
	j.startTime = 0
}

// HasTimeLimit reports whether SetTimeLimit has been called yet.
func (j *Job) HasTimeLimit() bool { return j.timeLimit.IsSet() }

// TimeLimit returns the frozen time limit. Panics if unset.
func (j *Job) TimeLimit() int64 {
	if !j.timeLimit.IsSet() {
		panic(fmt.Sprintf("simcore: job %s has no time_limit set", j.ID))
	}
	return j.timeLimit.Get()
}

// SetTimeLimit freezes the job's time limit. Must be called exactly
// once, before the job ever starts, and the value must be >= RunTime.
func (j *Job) SetTimeLimit(limit int64) {
	if limit < j.RunTime {
		panic(fmt.Sprintf("simcore: job %s time_limit %d < run_time %d", j.ID, limit, j.RunTime))
	}
	j.timeLimit.Set(limit)
}

// Estimate returns the scheduler-visible predicted runtime.
func (j *Job) Estimate() int64 { return j.estimate }

// SetInitialEstimate sets the job's first estimate. Must be > 0 and
// <= TimeLimit.
func (j *Job) SetInitialEstimate(est int64) {
	if est <= 0 {
		panic(fmt.Sprintf("simcore: job %s initial estimate %d must be positive", j.ID, est))
	}
	if est > j.TimeLimit() {
		panic(fmt.Sprintf("simcore: job %s initial estimate %d exceeds time_limit %d", j.ID, est, j.TimeLimit()))
	}
	j.estimate = est
}

// RaiseEstimate replaces the job's estimate with a strictly larger
// value, as happens when an EstimateEnd event fires before the job
// actually finished.
func (j *Job) RaiseEstimate(newEstimate int64) {
	if newEstimate <= j.estimate {
		panic(fmt.Sprintf("simcore: job %s next estimate %d does not exceed previous %d", j.ID, newEstimate, j.estimate))
	}
	j.estimate = newEstimate
}

// Camp returns the campaign the job is currently assigned to, or nil.
func (j *Job) Camp() *Campaign {
	return j.camp.Get()
}

// assignCampaign freezes the job's campaign assignment. Called once by
// Campaign.AddJob.
func (j *Job) assignCampaign(c *Campaign) {
	j.camp.Set(c)
}

// Started reports whether the job has begun execution.
func (j *Job) Started() bool { return j.started }

// Completed reports whether the job has finished execution.
func (j *Job) Completed() bool { return j.completed }

// StartTime returns the time the job began execution. Panics if not started.
func (j *Job) StartTime() int64 {
	if !j.started {
		panic(fmt.Sprintf("simcore: job %s not started", j.ID))
	}
	return j.startTime
}

// EndTime returns StartTime + RunTime. Panics if not started.
func (j *Job) EndTime() int64 {
	return j.StartTime() + j.RunTime
}

// StartExecution marks the job as started at time t and notifies its
// campaign and user.
func (j *Job) StartExecution(t int64) {
	if j.started {
		panic(fmt.Sprintf("simcore: job %s already started", j.ID))
	}
	j.started = true
	j.startTime = t
	c := j.Camp()
	if c == nil {
		panic(fmt.Sprintf("simcore: job %s started without a campaign", j.ID))
	}
	c.jobStarted(j)
	c.User.jobStarted(j)
}

// EndExecution marks the job completed at time t (must equal
// StartTime+RunTime) and notifies its campaign and user.
func (j *Job) EndExecution(t int64) {
	if j.completed {
		panic(fmt.Sprintf("simcore: job %s already completed", j.ID))
	}
	if j.estimate < j.RunTime {
		panic(fmt.Sprintf("simcore: job %s ended with estimate %d < run_time %d", j.ID, j.estimate, j.RunTime))
	}
	if j.StartTime()+j.RunTime != t {
		panic(fmt.Sprintf("simcore: job %s end time %d does not match start+run_time %d", j.ID, t, j.StartTime()+j.RunTime))
	}
	j.completed = true
	c := j.Camp()
	c.jobEnded(j)
	c.User.jobEnded(j)
}

func (j *Job) String() string {
	return fmt.Sprintf("Job{%s submit=%d run=%d proc=%d user=%s}", j.ID, j.Submit, j.RunTime, j.Proc, j.User)
}
