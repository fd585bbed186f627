package simcore

// Diagnostics accumulates the one-per-run counters a Simulator reports
// at finalization.
type Diagnostics struct {
	SkippedJobs         int64
	ForcedDecayEvents    int64
	SchedulePasses       int64
	BackfillPasses       int64
	StartedBySchedule    int64
	StartedByBackfill    int64
	UtilizationIntegral  float64
	CorePeriodLength     int64
	WallClockStart       int64
	WallClockEnd         int64
}

// AverageUtilization returns the mean cluster utilization over the core
// period, or 0 if the core period had no length.
func (d *Diagnostics) AverageUtilization() float64 {
	if d.CorePeriodLength <= 0 {
		return 0
	}
	return d.UtilizationIntegral / float64(d.CorePeriodLength)
}
