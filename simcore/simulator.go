package simcore

import (
	"fmt"
	"math"
	"sort"
)

// decayInterval is the periodic ForceDecay spacing: every 5 minutes of
// simulated time, usage is decayed even absent any other event.
const decayInterval int64 = 5 * 60

// Config bundles the algorithmic knobs a Simulator needs, independent
// of how they were parsed (CLI flags, YAML file, test literal).
type Config struct {
	Policy      Policy
	Estimator   Estimator
	Submitter   Submitter
	Selector    Selector
	BfDepth     int
	BfWindow    int64
	BfInterval  int64
	CoreStart   int64
	CoreEnd     int64
	DecayFactor float64
}

// Simulator replays a submission-ordered job stream over a simulated
// cluster, driven by the event loop in spec.md §4.8. Event ordering,
// virtual/real accounting stages, scheduling/backfill passes and
// campaign-end re-estimation all happen here; Policy/Selector/
// Estimator/Submitter are pluggable strategies.
type Simulator struct {
	cfg Config
	rm  *ResourceManager
	pq  *PriorityQueue
	rec Recorder

	users map[UserID]*User
	jobs  []*Job // full submission-ordered future-job list

	nextJobIdx    int
	queuedNewJobs int
	pending       []*Job // jobs awaiting a schedule/backfill pass

	totalActiveShares float64
	totalUsage        float64

	now           int64
	prevEventAt   int64
	prevUtilEmit  int64
	diag          Diagnostics
}

// bfRunToken/forceDecayToken are the singleton entities for their
// periodic event kinds — there is only ever one live BfRun and one
// live ForceDecay event, so PriorityQueue's (kind, entity) tombstoning
// collapses re-additions onto a single slot.
type bfRunToken struct{}
type forceDecayToken struct{}

// NewSimulator builds a simulator over the given cluster capacity,
// users and submission-ordered jobs. Every user is reset and its shares
// are normalized so that they sum to 1.0 across users; every job is
// reset and, if it has no time_limit yet, will receive one from
// cfg.Submitter the moment its NewJob event fires.
func NewSimulator(cfg Config, totalCPUs NodeMap, users []*User, jobs []*Job, rec Recorder) *Simulator {
	if len(jobs) == 0 {
		panic("simcore: simulator requires at least one job")
	}
	s := &Simulator{
		cfg:   cfg,
		rm:    NewResourceManager(totalCPUs, cfg.BfWindow),
		pq:    NewPriorityQueue(),
		rec:   rec,
		users: make(map[UserID]*User, len(users)),
		jobs:  jobs,
	}
	var shareSum float64
	for _, u := range users {
		shareSum += u.Shares()
	}
	for _, u := range users {
		u.Reset()
		normalized := u.Shares() / shareSum
		u.shares.Reset()
		u.shares.Set(normalized)
		s.users[u.ID] = u
	}
	for _, j := range jobs {
		j.Reset()
	}
	s.now = jobs[0].Submit
	s.prevEventAt = s.now
	s.diag.WallClockStart = s.now
	s.diag.CorePeriodLength = cfg.CoreEnd - cfg.CoreStart
	return s
}

func (s *Simulator) tag(definingTime int64) Tag {
	if definingTime >= s.cfg.CoreStart && definingTime < s.cfg.CoreEnd {
		return TagCore
	}
	return TagMarg
}

// shareCPUValue is a user's fair-share rate of virtual progress: their
// normalized share times the larger of their currently occupied CPUs
// or 1, so a user with nothing running still accrues virtual time at a
// floor rate and idle campaigns eventually resolve.
func shareCPUValue(u *User, totalActiveShares float64) float64 {
	if totalActiveShares <= 0 {
		return 0
	}
	occ := float64(u.OccupiedCPUs())
	if occ < 1 {
		occ = 1
	}
	return (u.Shares() / totalActiveShares) * occ
}

// Run executes the full event loop to completion and returns the
// accumulated diagnostics.
func (s *Simulator) Run() Diagnostics {
	s.fillNewJobEvents()

	for !s.pq.Empty() {
		now, kind, entity, err := s.pq.Pop()
		if err != nil {
			panic(fmt.Sprintf("simcore: %v", err))
		}
		s.now = now
		if kind == KindNewJob {
			s.queuedNewJobs--
		}

		delta := s.now - s.prevEventAt
		if delta > 0 {
			s.virtualFirstStage(delta)
			s.realStage(delta)
		}
		s.prevEventAt = s.now

		schedule, backfill, campaigns := s.defaultFlagsFor(kind)
		virtualDone := false
		runVirtualSecondStage := func() {
			if !virtualDone {
				s.virtualSecondStage()
				virtualDone = true
			}
		}

		switch kind {
		case KindNewJob:
			s.handleNewJob(entity.(*Job))
		case KindJobEnd:
			s.handleJobEnd(entity.(*Job))
		case KindEstimateEnd:
			s.handleEstimateEnd(entity.(*Job))
		case KindBfRun:
			// flags already set by defaultFlagsFor
		case KindCampaignEnd:
			runVirtualSecondStage()
			campaigns = s.handleCampaignEnd(entity.(*Campaign))
		case KindForceDecay:
			s.diag.ForcedDecayEvents++
		}

		s.fillNewJobEvents()
		if nt, nk, _, err := s.pq.Peek(); err == nil && nt == s.now && nk < KindBfRun {
			continue
		}

		runVirtualSecondStage()

		if schedule {
			s.schedule(false)
			if s.cfg.BfInterval == 0 && s.cfg.BfDepth > 0 {
				backfill = true
			}
		}
		if backfill {
			s.schedule(true)
		}
		if campaigns {
			s.requeueCampaignEnds()
		}

		if !s.pq.Empty() {
			if s.cfg.BfInterval > 0 {
				s.pq.Add(s.now+s.cfg.BfInterval, KindBfRun, bfRunToken{})
			}
			s.pq.Add(s.now+decayInterval, KindForceDecay, forceDecayToken{})
		}
	}

	s.finalize()
	return s.diag
}

func (s *Simulator) defaultFlagsFor(kind EventKind) (schedule, backfill, campaigns bool) {
	switch kind {
	case KindNewJob, KindJobEnd:
		return true, false, true
	case KindEstimateEnd:
		return false, false, true
	case KindBfRun:
		return false, true, true
	case KindCampaignEnd:
		return false, false, false // handleCampaignEnd decides
	case KindForceDecay:
		return false, false, true
	default:
		return false, false, false
	}
}

// fillNewJobEvents keeps up to two NewJob lookahead events queued from
// the future-job list.
func (s *Simulator) fillNewJobEvents() {
	for s.queuedNewJobs < 2 && s.nextJobIdx < len(s.jobs) {
		j := s.jobs[s.nextJobIdx]
		s.nextJobIdx++
		s.pq.Add(j.Submit, KindNewJob, j)
		s.queuedNewJobs++
	}
}

func (s *Simulator) virtualFirstStage(delta int64) {
	for _, u := range s.activeUsers() {
		u.AddVirtual(shareCPUValue(u, s.totalActiveShares) * float64(delta))
	}
}

func (s *Simulator) realStage(delta int64) {
	decay := math.Pow(s.cfg.DecayFactor, float64(delta))
	var sumOccupied int64
	for _, u := range s.users {
		u.RealWork(delta, decay)
		sumOccupied += int64(u.OccupiedCPUs())
	}
	s.totalUsage += float64(sumOccupied) * float64(delta)
	s.totalUsage *= decay
}

func (s *Simulator) virtualSecondStage() {
	for _, u := range s.activeUsers() {
		u.VirtualWork()
	}
}

func (s *Simulator) activeUsers() []*User {
	var out []*User
	for _, u := range s.users {
		if u.Active() {
			out = append(out, u)
		}
	}
	return out
}

func (s *Simulator) handleNewJob(job *Job) {
	user := s.users[job.User]
	wasActive := user.Active()

	if !job.HasTimeLimit() {
		job.SetTimeLimit(s.cfg.Submitter.TimeLimit(job))
	}
	if !s.rm.SanityTest(job) {
		s.diag.SkippedJobs++
		return
	}

	job.SetInitialEstimate(s.cfg.Estimator.InitialEstimate(job))

	camp := s.cfg.Selector.Find(job, user)
	if camp == nil {
		camp = user.CreateCampaign(job.Submit)
		utility := 0.0
		if limit := s.rm.CPULimit(); limit > 0 {
			utility = float64(s.rm.UsedCPUs()) / float64(limit)
		}
		EmitCampStart(s.rec, s.tag(camp.Created), camp, utility)
	}
	camp.AddJob(job)
	s.pending = append(s.pending, job)

	if !wasActive && user.Active() {
		s.totalActiveShares += user.Shares()
	}
}

func (s *Simulator) handleJobEnd(job *Job) {
	if job.Estimate() < job.RunTime {
		panic(fmt.Sprintf("simcore: job %s ended with estimate %d below run_time %d", job.ID, job.Estimate(), job.RunTime))
	}
	job.EndExecution(s.now)
	s.rm.JobEnded(job)
	s.cfg.Estimator.RecordCompletion(job)
	EmitJob(s.rec, s.tag(job.Submit), job)
}

func (s *Simulator) handleEstimateEnd(job *Job) {
	if job.Estimate() >= job.RunTime {
		return // stale: superseded by a completed job or an earlier re-estimate
	}
	user := s.users[job.User]
	camp := job.Camp()

	if !user.Active() {
		user.AddFalseInactivity(s.now - user.LastActive())
		s.totalActiveShares += user.Shares()
	}
	user.reactivateIfNeeded(camp)

	old := job.Estimate()
	next := s.cfg.Estimator.NextEstimate(job, old)
	job.RaiseEstimate(next)
	camp.changeEstimate(job, old, next)

	if next < job.RunTime {
		s.pq.Add(job.StartTime()+next, KindEstimateEnd, job)
	}
}

// handleCampaignEnd processes a (possibly stale) CampaignEnd event for
// camp. Returns whether campaign-end re-estimation is owed afterward
// (false only when the event was stale and nothing changed).
func (s *Simulator) handleCampaignEnd(camp *Campaign) bool {
	user := camp.User
	active := user.ActiveCamps()
	if len(active) == 0 || active[0] != camp {
		return false
	}

	for len(user.ActiveCamps()) > 0 && user.ActiveCamps()[0].TimeLeft() <= 0 {
		head := user.ActiveCamps()[0]
		EmitCampEnd(s.rec, s.tag(head.Created), head, lastJobEnd(head))
		user.completeHeadCampaign()
	}

	if !user.Active() {
		user.SetLastActive(s.now)
		s.totalActiveShares -= user.Shares()
		if s.totalActiveShares < 0 {
			s.totalActiveShares = 0
		}
	}
	return true
}

func lastJobEnd(camp *Campaign) int64 {
	jobs := camp.CompletedJobs()
	if len(jobs) == 0 {
		return camp.Created
	}
	var end int64
	for _, j := range jobs {
		if e := j.EndTime(); e > end {
			end = e
		}
	}
	return end
}

func (s *Simulator) requeueCampaignEnds() {
	for _, u := range s.users {
		if !u.Active() {
			continue
		}
		head := u.ActiveCamps()[0]
		share := shareCPUValue(u, s.totalActiveShares)
		if share <= 0 {
			continue
		}
		estTime := s.now + int64(math.Ceil(head.TimeLeft()/share))
		s.pq.Add(estTime, KindCampaignEnd, head)
	}
}

// schedule runs one scheduling pass over the pending queue ordered by
// policy priority: bfMode selects try_backfill over try_schedule, and
// (unlike the immediate pass, which stops at the first failure) walks
// past failures up to bf_depth candidates.
func (s *Simulator) schedule(bfMode bool) {
	if bfMode {
		s.diag.BackfillPasses++
	} else {
		s.diag.SchedulePasses++
	}

	ordered := make([]*Job, len(s.pending))
	copy(ordered, s.pending)
	sort.SliceStable(ordered, func(i, j int) bool {
		return s.cfg.Policy.PriorityKey(ordered[i], s.totalUsage).Less(
			s.cfg.Policy.PriorityKey(ordered[j], s.totalUsage))
	})

	s.rm.StartSession(s.now)

	remaining := make([]*Job, 0, len(ordered))
	examined := 0
	for i, job := range ordered {
		if bfMode && examined >= s.cfg.BfDepth {
			remaining = append(remaining, ordered[i:]...)
			break
		}
		var started bool
		if bfMode {
			examined++
			started = s.rm.TryBackfill(job)
		} else {
			started = s.rm.TrySchedule(job)
		}
		if !started {
			remaining = append(remaining, job)
			if !bfMode {
				remaining = append(remaining, ordered[i+1:]...)
				break
			}
			continue
		}

		job.StartExecution(s.now)
		s.pq.Add(job.EndTime(), KindJobEnd, job)
		if job.Estimate() > job.RunTime {
			s.pq.Add(job.StartTime()+job.Estimate(), KindEstimateEnd, job)
		}
		if bfMode {
			s.diag.StartedByBackfill++
		} else {
			s.diag.StartedBySchedule++
		}
	}
	s.pending = remaining
	s.rm.EndSession()

	if limit := s.rm.CPULimit(); limit > 0 {
		util := float64(s.rm.UsedCPUs()) / float64(limit)
		periodLength := s.now - s.prevUtilEmit
		EmitUtil(s.rec, s.tag(s.now), periodLength, util)
		if s.now >= s.cfg.CoreStart && s.now < s.cfg.CoreEnd {
			s.diag.UtilizationIntegral += util * float64(periodLength)
		}
		s.prevUtilEmit = s.now
	}
}

func (s *Simulator) finalize() {
	s.diag.WallClockEnd = s.now
	for _, u := range s.users {
		EmitUser(s.rec, u)
	}
}
