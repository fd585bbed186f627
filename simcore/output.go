package simcore

import "fmt"

// Tag marks an output line as belonging to the warm/cool margin period
// or the analyzed core period, per the defining timestamp of the event
// that produced it (job.submit for jobs, camp.created for campaigns).
type Tag string

const (
	TagCore Tag = "CORE"
	TagMarg Tag = "MARG"
)

// Recorder receives one line per emitted output record. Implementations
// typically write to a file or buffer; tests can collect into a slice.
type Recorder interface {
	Record(line string)
}

// RecorderFunc adapts a plain function to Recorder.
type RecorderFunc func(line string)

func (f RecorderFunc) Record(line string) { f(line) }

func emit(rec Recorder, tag Tag, format string, args ...any) {
	rec.Record(fmt.Sprintf("%s %s", tag, fmt.Sprintf(format, args...)))
}

// EmitCampStart writes a CAMP START line. utility is cpu_used/cpu_limit
// at campaign creation.
func EmitCampStart(rec Recorder, tag Tag, camp *Campaign, utility float64) {
	emit(rec, tag, "CAMP START %d %s %d %.4f", camp.ID, camp.User.ID, camp.Created, utility)
}

// EmitCampEnd writes a CAMP END line. realEnd is the end time of the
// campaign's last job.
func EmitCampEnd(rec Recorder, tag Tag, camp *Campaign, realEnd int64) {
	jobCount := len(camp.CompletedJobs())
	emit(rec, tag, "CAMP END %d %s %d %d %d", camp.ID, camp.User.ID, realEnd, camp.Workload(), jobCount)
}

// EmitJob writes a JOB line for a completed job.
func EmitJob(rec Recorder, tag Tag, job *Job) {
	emit(rec, tag, "JOB %s %d %s %d %d %d %d %d %d",
		job.ID, job.Camp().ID, job.User, job.Submit, job.StartTime(), job.EndTime(),
		job.Estimate(), job.TimeLimit(), job.Proc)
}

// EmitUser writes a final USER summary line.
func EmitUser(rec Recorder, user *User) {
	emit(rec, TagCore, "USER %s %d %d %.4f %d",
		user.ID, countCompletedJobs(user), len(user.CompletedCamps()), user.LostVirtual(), user.FalseInactivity())
}

func countCompletedJobs(user *User) int {
	n := 0
	for _, c := range user.CompletedCamps() {
		n += len(c.CompletedJobs())
	}
	for _, c := range user.ActiveCamps() {
		n += len(c.CompletedJobs())
	}
	return n
}

// EmitUtil writes a UTIL line covering a period ending now with the
// given period length and utilization value.
func EmitUtil(rec Recorder, tag Tag, periodLength int64, value float64) {
	emit(rec, tag, "UTIL %d %.4f", periodLength, value)
}
