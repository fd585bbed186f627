package simcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(id JobID, submit, runTime int64, proc int, timeLimit int64) *Job {
	j := NewJob(id, submit, runTime, proc, "u1")
	j.SetTimeLimit(timeLimit)
	return j
}

// runToCompletion attaches job to a fresh user/campaign and drives it
// through StartExecution/EndExecution, as the simulator would, so
// ResourceManager.JobEnded sees a job in valid post-run state.
func runToCompletion(job *Job, start int64) {
	u := NewUser(job.User)
	u.SetShares(1)
	c := u.CreateCampaign(start)
	job.SetInitialEstimate(job.RunTime)
	c.AddJob(job)
	job.StartExecution(start)
	job.EndExecution(start + job.RunTime)
}

func TestResourceManager_TrySchedule_FitsAndSplitsTail(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)

	job := newTestJob("j1", 0, 50, 10, 100)
	ok := rm.TrySchedule(job)
	require.True(t, ok)

	snap := rm.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(0), snap[0].Begin)
	assert.Equal(t, int64(100), snap[0].End)
	assert.Equal(t, 0, snap[0].AvailSize)
	assert.Equal(t, 1, snap[0].JobEnds)
	assert.Equal(t, int64(100), snap[1].Begin)
	assert.Equal(t, 10, snap[1].AvailSize)
}

func TestResourceManager_TrySchedule_FailsWhenOverCapacity(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)

	job := newTestJob("j1", 0, 50, 11, 100)
	assert.False(t, rm.TrySchedule(job))
}

func TestResourceManager_TrySchedule_PanicsWithReservationsPresent(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)
	big := newTestJob("big", 0, 500, 10, 500)
	// force a reservation: occupy everything now, then try_backfill a
	// second job so it reserves rather than runs immediately.
	require.True(t, rm.TrySchedule(big))
	other := newTestJob("other", 0, 10, 10, 10)
	rm.TryBackfill(other)

	assert.Panics(t, func() { rm.TrySchedule(newTestJob("j3", 0, 1, 1, 1)) })
}

func TestResourceManager_TryBackfill_RunsImmediatelyWhenHeadFits(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)

	job := newTestJob("j1", 0, 20, 5, 30)
	ok := rm.TryBackfill(job)
	assert.True(t, ok)

	snap := rm.Snapshot()
	assert.Equal(t, 5, snap[0].AvailSize)
}

func TestResourceManager_TryBackfill_ReservesWhenHeadDoesNotFit(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)

	// Occupy all 10 CPUs for [0, 100).
	blocker := newTestJob("blocker", 0, 50, 10, 100)
	require.True(t, rm.TrySchedule(blocker))

	// A job needing 10 CPUs for 30 ticks cannot run now, but fits in
	// the open interval starting at t=100, so it reserves there.
	job := newTestJob("j2", 0, 20, 10, 30)
	ok := rm.TryBackfill(job)
	assert.False(t, ok, "must not run immediately")

	snap := rm.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(0), snap[0].Begin)
	assert.Equal(t, int64(100), snap[0].End)
	assert.Equal(t, int64(100), snap[1].Begin)
	assert.Equal(t, int64(130), snap[1].End)
	assert.Equal(t, 0, snap[1].AvailSize)
	assert.Equal(t, 1, snap[1].RsrvStarts)
	assert.Equal(t, int64(130), snap[2].Begin)
	assert.Equal(t, 10, snap[2].AvailSize)
}

func TestResourceManager_TryBackfill_FailsOutsideWindow(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 50)
	rm.StartSession(0)

	blocker := newTestJob("blocker", 0, 200, 10, 200)
	require.True(t, rm.TrySchedule(blocker))

	// Only open space starts at t=200, far past window=50.
	job := newTestJob("j2", 0, 10, 10, 10)
	assert.False(t, rm.TryBackfill(job))
}

func TestResourceManager_TryBackfill_RestartsScanAfterCapacityMiss(t *testing.T) {
	// Regression test: a job that doesn't fit at the first candidate
	// interval must restart its total_time accumulation from the next
	// interval, not keep accumulating from the original first.
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)

	// A scheduled blocker occupies all 10 CPUs for [0, 20).
	blocker := newTestJob("blocker", 0, 10, 10, 20)
	require.True(t, rm.TrySchedule(blocker))

	// This job needs 10 CPUs for 15 ticks. [0,20) has 0 avail, so the
	// scan must restart at [20, inf) and find it fits there.
	job := newTestJob("j2", 0, 10, 10, 15)
	ok := rm.TryBackfill(job)
	assert.False(t, ok)

	snap := rm.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(20), snap[1].Begin)
	assert.Equal(t, int64(35), snap[1].End)
	assert.Equal(t, 0, snap[1].AvailSize)
}

func TestResourceManager_EndSession_MergesNonReservedBoundaryAndRestoresReserved(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)

	blocker := newTestJob("blocker", 0, 50, 10, 100)
	require.True(t, rm.TrySchedule(blocker))

	job := newTestJob("j2", 0, 20, 10, 30)
	ok := rm.TryBackfill(job)
	require.False(t, ok)
	require.Len(t, rm.Snapshot(), 3)

	rm.EndSession()

	// The reservation interval [100, 130) had job_ends == 0 (it only
	// carried a reservation start), so it must have merged into its
	// successor, leaving the blocker's interval directly followed by the
	// open tail.
	snap := rm.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(0), snap[0].Begin)
	assert.Equal(t, int64(100), snap[0].End)
	assert.Equal(t, int64(100), snap[1].Begin)
	assert.Equal(t, 0, snap[1].ReservedSize, "reserved capacity flows back into avail")
	assert.Equal(t, 0, rm.reservations)
}

func TestResourceManager_EndSession_KeepsBoundaryWithJobEnds(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)

	job := newTestJob("j1", 0, 50, 10, 100)
	require.True(t, rm.TrySchedule(job))
	rm.EndSession()

	snap := rm.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 1, snap[0].JobEnds, "boundary backed by a running job survives end_session")
}

func TestResourceManager_JobEnded_ReleasesAndMergesOnSingleJobEnd(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)

	job := newTestJob("j1", 0, 50, 10, 100)
	require.True(t, rm.TrySchedule(job))
	rm.EndSession()

	runToCompletion(job, 0) // finished early, well before its 100-tick limit

	rm.JobEnded(job)

	snap := rm.Snapshot()
	require.Len(t, snap, 1, "single remaining interval after merge")
	assert.Equal(t, 10, snap[0].AvailSize)
	assert.Equal(t, int64(50), snap[0].Begin)
}

func TestResourceManager_JobEnded_DecrementsJobEndsWhenMultipleShareBoundary(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	rm.StartSession(0)

	jobA := newTestJob("a", 0, 20, 4, 100)
	require.True(t, rm.TrySchedule(jobA))
	jobB := newTestJob("b", 0, 20, 4, 100)
	require.True(t, rm.TrySchedule(jobB))
	rm.EndSession()

	runToCompletion(jobA, 0)
	rm.JobEnded(jobA)

	snap := rm.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(20), snap[0].Begin)
	assert.Equal(t, int64(100), snap[0].End)
	assert.Equal(t, 6, snap[0].AvailSize, "a's 4 CPUs released, b's 4 still held")
	assert.Equal(t, 1, snap[0].JobEnds, "boundary still backed by b")
}

func TestResourceManager_JobEnded_PanicsOnUnknownJob(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	job := newTestJob("ghost", 0, 10, 1, 10)
	runToCompletion(job, 0)
	assert.Panics(t, func() { rm.JobEnded(job) })
}

func TestResourceManager_SanityTestAndUsedCPUs(t *testing.T) {
	rm := NewResourceManager(ScalarCPU(10), 1000)
	assert.True(t, rm.SanityTest(newTestJob("fits", 0, 1, 10, 1)))
	assert.False(t, rm.SanityTest(newTestJob("too-big", 0, 1, 11, 1)))

	rm.StartSession(0)
	job := newTestJob("j1", 0, 10, 4, 10)
	require.True(t, rm.TrySchedule(job))
	rm.EndSession()
	assert.Equal(t, 4, rm.UsedCPUs())
}
