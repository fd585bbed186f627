package simcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_VirtualWorkRedistributesAcrossActiveCampaigns(t *testing.T) {
	u := NewUser("u1")
	u.SetShares(1)

	c1 := u.CreateCampaign(0)
	j1 := NewJob("j1", 0, 5, 1, "u1")
	j1.SetTimeLimit(5)
	j1.SetInitialEstimate(5)
	c1.AddJob(j1) // workload = 5

	c2 := u.CreateCampaign(0)
	j2 := NewJob("j2", 0, 20, 1, "u1")
	j2.SetTimeLimit(20)
	j2.SetInitialEstimate(20)
	c2.AddJob(j2) // workload = 20

	u.AddVirtual(12)
	u.VirtualWork()

	assert.Equal(t, float64(5), c1.Virtual(), "c1 saturates at its own workload")
	assert.Equal(t, float64(0), c1.Offset())
	assert.Equal(t, float64(7), c2.Virtual(), "remaining 7 flows to c2")
	assert.Equal(t, float64(0), u.LostVirtual())

	// A second round with more virtual than total remaining workload
	// overflows into lost_virtual.
	u.AddVirtual(100)
	u.VirtualWork()
	assert.Equal(t, float64(5), c1.Virtual())
	assert.Equal(t, float64(20), c2.Virtual())
	assert.True(t, u.LostVirtual() > 0)
}

func TestUser_ResurrectLastCompleted(t *testing.T) {
	u := NewUser("u1")
	u.SetShares(1)
	c := u.CreateCampaign(0)
	j := NewJob("j1", 0, 5, 1, "u1")
	j.SetTimeLimit(5)
	j.SetInitialEstimate(5)
	c.AddJob(j)
	j.StartExecution(0)
	j.EndExecution(5)

	u.completeHeadCampaign()
	require.Empty(t, u.ActiveCamps())
	require.Len(t, u.CompletedCamps(), 1)

	resurrected := u.ResurrectLastCompleted()
	assert.Same(t, c, resurrected)
	assert.Empty(t, u.CompletedCamps())
	assert.Len(t, u.ActiveCamps(), 1)
}

func TestUser_ReactivateIfNeededMovesDenseSuffixBack(t *testing.T) {
	u := NewUser("u1")
	u.SetShares(1)

	complete := func(c *Campaign) {
		j := NewJob(JobID(c.String()), 0, 5, 1, "u1")
		j.SetTimeLimit(5)
		j.SetInitialEstimate(5)
		c.AddJob(j)
		j.StartExecution(0)
		j.EndExecution(5)
		u.completeHeadCampaign()
	}

	c0 := u.CreateCampaign(0)
	complete(c0)
	c1 := u.CreateCampaign(0)
	complete(c1)
	c2 := u.CreateCampaign(0)
	complete(c2)
	require.Len(t, u.CompletedCamps(), 3)

	u.reactivateIfNeeded(c1)

	require.Len(t, u.CompletedCamps(), 1)
	assert.Same(t, c0, u.CompletedCamps()[0])
	require.Len(t, u.ActiveCamps(), 2)
	assert.Same(t, c1, u.ActiveCamps()[0])
	assert.Same(t, c2, u.ActiveCamps()[1])
}

func TestUser_JobEndedFlowsOverestimateBackToVirtPool(t *testing.T) {
	u := NewUser("u1")
	u.SetShares(1)
	c := u.CreateCampaign(0)
	j := NewJob("j1", 0, 5, 2, "u1")
	j.SetTimeLimit(10)
	j.SetInitialEstimate(8) // 3 ticks over run_time
	c.AddJob(j)
	j.StartExecution(0)

	c.virtual = 4 // pretend some virtual progress already accrued

	j.EndExecution(5)

	// diff = (estimate-run_time)*proc = (8-5)*2 = 6
	assert.Equal(t, float64(4-6), c.Virtual())
	assert.Equal(t, float64(6), u.virtPool)
}
