package simcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdSelector_JoinsActiveCampaignWithinThreshold(t *testing.T) {
	u := NewUser("u1")
	u.SetShares(1)
	c := u.CreateCampaign(0)
	s := ThresholdSelector{Threshold: 10}

	job := NewJob("j1", 5, 1, 1, "u1")
	assert.Same(t, c, s.Find(job, u))
}

func TestThresholdSelector_StartsNewCampaignPastThresholdWithActiveCampaign(t *testing.T) {
	u := NewUser("u1")
	u.SetShares(1)
	u.CreateCampaign(0)
	s := ThresholdSelector{Threshold: 10}

	job := NewJob("j1", 15, 1, 1, "u1")
	assert.Nil(t, s.Find(job, u))
}

func TestThresholdSelector_ResurrectsCompletedCampaignWithinThreshold(t *testing.T) {
	u := NewUser("u1")
	u.SetShares(1)
	c := u.CreateCampaign(0)
	j := NewJob("j0", 0, 5, 1, "u1")
	j.SetTimeLimit(5)
	j.SetInitialEstimate(5)
	c.AddJob(j)
	j.StartExecution(0)
	j.EndExecution(5)
	u.completeHeadCampaign()
	require.Empty(t, u.ActiveCamps())
	require.Len(t, u.CompletedCamps(), 1)

	s := ThresholdSelector{Threshold: 10}
	job := NewJob("j1", 8, 1, 1, "u1")
	found := s.Find(job, u)
	assert.Same(t, c, found)
	assert.Empty(t, u.CompletedCamps(), "resurrection moves the campaign back to active")
	assert.Len(t, u.ActiveCamps(), 1)
}

func TestThresholdSelector_StartsNewCampaignPastThresholdWithOnlyCompleted(t *testing.T) {
	u := NewUser("u1")
	u.SetShares(1)
	c := u.CreateCampaign(0)
	j := NewJob("j0", 0, 5, 1, "u1")
	j.SetTimeLimit(5)
	j.SetInitialEstimate(5)
	c.AddJob(j)
	j.StartExecution(0)
	j.EndExecution(5)
	u.completeHeadCampaign()

	s := ThresholdSelector{Threshold: 10}
	job := NewJob("j1", 20, 1, 1, "u1")
	assert.Nil(t, s.Find(job, u))
}

func TestThresholdSelector_StartsNewCampaignForFreshUser(t *testing.T) {
	u := NewUser("u1")
	u.SetShares(1)
	s := ThresholdSelector{Threshold: 10}
	job := NewJob("j1", 0, 1, 1, "u1")
	assert.Nil(t, s.Find(job, u))
}
