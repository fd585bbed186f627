package simcore

import "fmt"

// Estimator supplies scheduler-visible predicted runtimes. Grounded on
// the source's BaseEstimator (estimators.py): InitialEstimate must be
// positive and within TimeLimit; NextEstimate must strictly increase.
type Estimator interface {
	InitialEstimate(job *Job) int64
	NextEstimate(job *Job, prevEstimate int64) int64
	// RecordCompletion folds a finished job's real run time back into
	// whatever history the estimator keeps. Called once per JobEnd.
	RecordCompletion(job *Job)
}

// DefaultEstimator always predicts the job's time limit exactly, and
// never expects to be asked for a next estimate — a call to
// NextEstimate under this policy indicates either a misconfigured
// workload (run_time > time_limit) or a programmer error.
type DefaultEstimator struct{}

func (DefaultEstimator) InitialEstimate(job *Job) int64 {
	return job.TimeLimit()
}

func (DefaultEstimator) NextEstimate(job *Job, prevEstimate int64) int64 {
	panic(fmt.Sprintf("simcore: default estimator cannot raise job %s's estimate; run_time exceeds time_limit", job.ID))
}

// RecordCompletion is a no-op: DefaultEstimator keeps no history.
func (DefaultEstimator) RecordCompletion(job *Job) {}

// AverageEstimator predicts the average run time of a user's last N
// completed jobs (falling back to the time limit when there is no
// history yet), and on a miss raises the estimate by the same average
// delta, strictly increasing it.
type AverageEstimator struct {
	Window int
	// history stores, per user, the run times of their last Window
	// completed jobs, oldest first.
	history map[UserID][]int64
}

// NewAverageEstimator returns an estimator averaging over the last n
// completed jobs of each user (n must be > 0).
func NewAverageEstimator(n int) *AverageEstimator {
	if n <= 0 {
		panic("simcore: average estimator window must be positive")
	}
	return &AverageEstimator{Window: n, history: make(map[UserID][]int64)}
}

func (a *AverageEstimator) InitialEstimate(job *Job) int64 {
	hist := a.history[job.User]
	if len(hist) == 0 {
		return job.TimeLimit()
	}
	var sum int64
	for _, rt := range hist {
		sum += rt
	}
	avg := sum / int64(len(hist))
	if avg <= 0 {
		avg = 1
	}
	if avg > job.TimeLimit() {
		avg = job.TimeLimit()
	}
	return avg
}

func (a *AverageEstimator) NextEstimate(job *Job, prevEstimate int64) int64 {
	hist := a.history[job.User]
	var sum int64
	for _, rt := range hist {
		sum += rt
	}
	step := prevEstimate
	if len(hist) > 0 {
		step = sum / int64(len(hist))
	}
	if step <= 0 {
		step = 1
	}
	next := prevEstimate + step
	if next <= prevEstimate {
		next = prevEstimate + 1
	}
	if next > job.TimeLimit() {
		next = job.TimeLimit()
	}
	if next <= prevEstimate {
		panic(fmt.Sprintf("simcore: average estimator could not raise job %s's estimate above time_limit %d", job.ID, job.TimeLimit()))
	}
	return next
}

// RecordCompletion folds a finished job's real run time into its
// user's rolling history, for future InitialEstimate/NextEstimate
// calls. Callers invoke this once per JobEnd.
func (a *AverageEstimator) RecordCompletion(job *Job) {
	hist := a.history[job.User]
	hist = append(hist, job.RunTime)
	if len(hist) > a.Window {
		hist = hist[len(hist)-a.Window:]
	}
	a.history[job.User] = hist
}
