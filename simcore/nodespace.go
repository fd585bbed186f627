package simcore

import "fmt"

// infHorizon stands in for the NodeSpace tail interval's +∞ end. Kept
// well clear of int64 overflow so interval-length accumulation during
// a backfill walk never wraps around.
const infHorizon int64 = 1 << 62

// interval is one piece of the NodeSpace timeline: a maximal span
// `[begin, end)` over which avail/reserved capacity is constant.
type interval struct {
	begin, end      int64
	avail, reserved NodeMap
	jobEnds         int // running jobs whose start+time_limit falls at `end`
	rsrvStarts      int // reservations beginning at `begin`
	next            *interval
}

func (iv *interval) length() int64 { return iv.end - iv.begin }

// ResourceManager is the NodeSpace timeline plus the scheduling
// operations that read and mutate it: immediate scheduling and
// EASY-style conservative backfilling with reservations. A scheduling
// "session" (StartSession/EndSession) scopes the reservations made
// during a single backfill pass.
type ResourceManager struct {
	cpuLimit NodeMap
	head     *interval

	reservations     int
	window           int64
	bfWindowDuration int64

	// deltas remembers, per in-flight job, the exact NodeMap slice
	// consumed when it was placed (try_schedule or try_backfill), so
	// JobEnded restores precisely that slice rather than an arbitrary
	// same-sized one.
	deltas map[JobID]NodeMap
}

// NewResourceManager creates a manager over the given total cluster
// capacity, with a fixed backfill-window duration.
func NewResourceManager(total NodeMap, bfWindow int64) *ResourceManager {
	head := &interval{
		begin:    0,
		end:      infHorizon,
		avail:    total.Copy(),
		reserved: total.Clear(),
	}
	return &ResourceManager{
		cpuLimit:         total,
		head:             head,
		bfWindowDuration: bfWindow,
		deltas:           make(map[JobID]NodeMap),
	}
}

// SanityTest reports whether job could ever run on this cluster.
func (rm *ResourceManager) SanityTest(job *Job) bool {
	return rm.cpuLimit.CanFit(job.Proc)
}

// UsedCPUs returns the CPU count currently occupied by running jobs.
// Valid only outside an active scheduling session (reservations == 0).
func (rm *ResourceManager) UsedCPUs() int {
	return rm.cpuLimit.Size() - rm.head.avail.Size()
}

// CPULimit returns the cluster's total CPU capacity.
func (rm *ResourceManager) CPULimit() int { return rm.cpuLimit.Size() }

// StartSession advances the head interval's begin to now and opens
// the backfill window [now, now+bf_window]: a reservation may start at
// any interval whose begin does not exceed now+bf_window.
func (rm *ResourceManager) StartSession(now int64) {
	rm.head.begin = now
	if rm.head.length() <= 0 {
		panic(fmt.Sprintf("simcore: node space head interval non-positive length %d at session start", rm.head.length()))
	}
	if rm.reservations != 0 {
		panic("simcore: reservations present at session start")
	}
	rm.window = now + rm.bfWindowDuration
}

// allocateResources applies job's footprint to the interval span
// [first, last], splitting last if it overshoots job's time limit.
func (rm *ResourceManager) allocateResources(job *Job, first, last *interval, reservation bool) {
	if last.end-first.begin > job.TimeLimit() {
		newSpace := &interval{
			begin:      first.begin + job.TimeLimit(),
			end:        last.end,
			avail:      last.avail,
			reserved:   last.reserved,
			jobEnds:    last.jobEnds,
			rsrvStarts: 0,
			next:       last.next,
		}
		last.end = newSpace.begin
		last.next = newSpace
		last.jobEnds = 0
	}

	if !reservation {
		last.jobEnds++
	} else {
		first.rsrvStarts++
		rm.reservations++
	}

	delta := first.avail.Assign(job.Proc)
	rm.deltas[job.ID] = delta

	for it := first; ; it = it.next {
		it.avail = it.avail.Remove(delta)
		if reservation {
			it.reserved = it.reserved.Add(delta)
		}
		if it == last {
			break
		}
	}
}

// TrySchedule attempts to start job immediately. Requires no
// reservations are currently present on the timeline.
func (rm *ResourceManager) TrySchedule(job *Job) bool {
	if rm.reservations != 0 {
		panic("simcore: try_schedule called while reservations are present")
	}
	first := rm.head
	if !first.avail.CanFit(job.Proc) {
		return false
	}

	var totalTime int64
	var last *interval
	for it := first; ; it = it.next {
		totalTime += it.length()
		if totalTime >= job.TimeLimit() {
			last = it
			break
		}
	}

	rm.allocateResources(job, first, last, false)
	return true
}

// TryBackfill attempts to place job as early as possible given
// existing reservations, preferring a window starting at `now` (the
// head interval). Returns true iff the job could start immediately.
func (rm *ResourceManager) TryBackfill(job *Job) bool {
	var totalTime int64
	first := rm.head
	it := first
	avail := it.avail
	mustCheck := true
	var last *interval

	for {
		if mustCheck {
			avail = avail.Intersect(it.avail)
		}
		if !mustCheck || avail.CanFit(job.Proc) {
			totalTime += it.length()
			if totalTime >= job.TimeLimit() {
				last = it
				break
			}
			it = it.next
			mustCheck = it.rsrvStarts > 0
		} else {
			totalTime = 0
			first = first.next
			it = first
			avail = it.avail
			mustCheck = true
			if first.begin > rm.window {
				return false
			}
		}
	}

	canRun := first == rm.head
	rm.allocateResources(job, first, last, !canRun)
	return canRun
}

// EndSession releases all reservations made during the scheduling
// pass: reserved capacity flows back into avail, and any interval that
// was only a reservation boundary (job_ends == 0) merges with its
// successor.
func (rm *ResourceManager) EndSession() {
	var prev *interval
	it := rm.head
	for it.next != nil {
		rm.reservations -= it.rsrvStarts
		it.rsrvStarts = 0
		if it.jobEnds == 0 {
			remove := it
			it = it.next
			it.begin = remove.begin
			if prev == nil {
				rm.head = it
			} else {
				prev.next = it
			}
			remove.next = nil
		} else {
			it.avail = it.avail.Add(it.reserved)
			it.reserved = it.reserved.Clear()
			prev = it
			it = it.next
		}
	}
	if rm.reservations != 0 {
		panic("simcore: reservations not cleared at end_session")
	}
}

// JobEnded releases the resources held by job, which finished running
// (possibly before its time_limit). Requires no active session.
func (rm *ResourceManager) JobEnded(job *Job) {
	if rm.reservations != 0 {
		panic("simcore: job_ended called while reservations are present")
	}
	delta, ok := rm.deltas[job.ID]
	if !ok {
		panic(fmt.Sprintf("simcore: job %s has no recorded node-space allocation", job.ID))
	}
	delete(rm.deltas, job.ID)

	rm.head.begin = job.EndTime()
	if rm.head.length() < 0 {
		panic("simcore: node space length negative after job end")
	}

	lastSpaceEnd := job.StartTime() + job.TimeLimit()
	it := rm.head
	for it.end < lastSpaceEnd {
		it.avail = it.avail.Add(delta)
		it = it.next
	}
	if it.end != lastSpaceEnd {
		panic(fmt.Sprintf("simcore: job %s missing its last node-space interval", job.ID))
	}
	if it.jobEnds <= 0 {
		panic(fmt.Sprintf("simcore: job %s last interval has invalid job_ends count %d", job.ID, it.jobEnds))
	}

	if it.jobEnds == 1 {
		remove := it.next
		it.end = remove.end
		it.avail = remove.avail
		it.reserved = remove.reserved
		it.jobEnds = remove.jobEnds
		it.next = remove.next
		remove.next = nil
	} else {
		it.avail = it.avail.Add(delta)
		it.jobEnds--
	}
}

// IntervalSnapshot is a read-only view of one NodeSpace interval, for
// invariant checking and tests.
type IntervalSnapshot struct {
	Begin, End               int64
	AvailSize, ReservedSize  int
	JobEnds, RsrvStarts      int
}

// Snapshot returns the current timeline, head first.
func (rm *ResourceManager) Snapshot() []IntervalSnapshot {
	var out []IntervalSnapshot
	for it := rm.head; it != nil; it = it.next {
		out = append(out, IntervalSnapshot{
			Begin:        it.begin,
			End:          it.end,
			AvailSize:    it.avail.Size(),
			ReservedSize: it.reserved.Size(),
			JobEnds:      it.jobEnds,
			RsrvStarts:   it.rsrvStarts,
		})
	}
	return out
}
