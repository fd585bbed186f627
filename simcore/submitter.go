package simcore

import "fmt"

// Submitter assigns a job's time_limit at submission. Grounded on the
// source's submitters.py: a real scheduler sees only time_limit, never
// run_time, so every implementation must derive time_limit without
// looking at job.RunTime except where explicitly modeling an oracle
// (OracleSubmitter, and PaddedSubmitter, which pads the true run_time).
type Submitter interface {
	TimeLimit(job *Job) int64
}

// ConstantSubmitter assigns every job the same fixed time limit,
// regardless of its actual run time. Jobs whose run_time exceeds the
// constant are invalid workloads and SetTimeLimit will panic.
type ConstantSubmitter struct {
	Limit int64
}

func (s ConstantSubmitter) TimeLimit(job *Job) int64 { return s.Limit }

// OracleSubmitter assigns time_limit equal to run_time exactly —
// modeling a user who always requests precisely the time their job
// needs. Useful as a best-case baseline.
type OracleSubmitter struct{}

func (OracleSubmitter) TimeLimit(job *Job) int64 { return job.RunTime }

// PaddedSubmitter assigns time_limit as run_time scaled by a fixed
// overestimation factor (>= 1), rounded up.
type PaddedSubmitter struct {
	Factor float64
}

func (s PaddedSubmitter) TimeLimit(job *Job) int64 {
	if s.Factor < 1 {
		panic(fmt.Sprintf("simcore: padded submitter factor %v must be >= 1", s.Factor))
	}
	limit := int64(float64(job.RunTime)*s.Factor + 0.999999)
	if limit < job.RunTime {
		limit = job.RunTime
	}
	return limit
}

// WorkloadSubmitter reads a pre-assigned time_limit keyed by JobID,
// for workloads whose trace already carries a requested time limit.
type WorkloadSubmitter struct {
	Limits map[JobID]int64
}

func (s WorkloadSubmitter) TimeLimit(job *Job) int64 {
	limit, ok := s.Limits[job.ID]
	if !ok {
		panic(fmt.Sprintf("simcore: workload submitter has no time_limit for job %s", job.ID))
	}
	return limit
}
