package cmd

import (
	"sort"

	simcore "github.com/ostrich-sim/ostrich-sim/simcore"
	"gonum.org/v1/gonum/stat"
)

// concurrentOfferedLoad samples, at every job's submit instant, the
// total proc of all jobs already submitted and not yet finished
// (using run_time as the best available offered-load proxy before any
// scheduling has happened) — an offered-load curve independent of
// scheduling decisions.
func concurrentOfferedLoad(jobs []*simcore.Job) []float64 {
	type edge struct {
		at    int64
		delta int
	}
	edges := make([]edge, 0, len(jobs)*2)
	for _, j := range jobs {
		edges = append(edges, edge{j.Submit, j.Proc})
		edges = append(edges, edge{j.Submit + j.RunTime, -j.Proc})
	}
	sort.Slice(edges, func(i, k int) bool {
		if edges[i].at != edges[k].at {
			return edges[i].at < edges[k].at
		}
		return edges[i].delta > edges[k].delta // arrivals before departures at a tie
	})

	samples := make([]float64, 0, len(jobs))
	concurrent := 0
	for _, e := range edges {
		concurrent += e.delta
		if e.delta > 0 {
			samples = append(samples, float64(concurrent))
		}
	}
	sort.Float64s(samples)
	return samples
}

// percentileCPUs sizes a single-partition cluster at the pct-th
// percentile (0-100) of concurrent offered load across the trace,
// per the simulator's percentile-based cluster sizing option.
func percentileCPUs(jobs []*simcore.Job, pct float64) int64 {
	samples := concurrentOfferedLoad(jobs)
	if len(samples) == 0 {
		return 0
	}
	q := stat.Quantile(pct/100, stat.Empirical, samples, nil)
	return int64(q + 0.5)
}
