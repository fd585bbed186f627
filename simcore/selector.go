package simcore

// Selector decides, for an incoming job, which of its user's campaigns
// (if any) it joins. Grounded on the source's selectors.py
// VirtualSelector.find_campaign.
type Selector interface {
	// Find returns the campaign job should join, or nil if job starts a
	// new campaign. May mutate user state (resurrecting a completed
	// campaign back onto the active list).
	Find(job *Job, user *User) *Campaign
}

// ThresholdSelector joins a job to its user's current campaign when the
// job arrives before `last.Created + Threshold`. A campaign boundary is
// inter-arrival idleness exceeding Threshold: if the user's most recent
// campaign has already completed (in virtual time) but the user merely
// paused submitting, resumption within the threshold re-enters that
// same campaign rather than fragmenting into a new one.
type ThresholdSelector struct {
	Threshold int64
}

func (s ThresholdSelector) Find(job *Job, user *User) *Campaign {
	if active := user.ActiveCamps(); len(active) > 0 {
		last := active[len(active)-1]
		if job.Submit < last.Created+s.Threshold {
			return last
		}
		return nil
	}
	if completed := user.CompletedCamps(); len(completed) > 0 {
		last := completed[len(completed)-1]
		if job.Submit < last.Created+s.Threshold {
			return user.ResurrectLastCompleted()
		}
	}
	return nil
}
