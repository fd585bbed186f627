package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	simcore "github.com/ostrich-sim/ostrich-sim/simcore"
)

// loadJobsFromCSV reads a submission-ordered job trace:
// id,submit,run_time,proc,user_id[,time_limit[,nodes,pn_cpus]]. A blank
// time_limit column leaves the job's time limit for the configured
// Submitter to fill in. nodes/pn_cpus are optional and, when given,
// validated against proc (see simcore.ValidateNodeConfiguration).
//
// run_time>0, proc>0, submit>=0, time_limit>=run_time and id-uniqueness
// are ingress preconditions: a violation here is a malformed trace, not
// an internal bug, so it is reported as an error rather than a panic.
func loadJobsFromCSV(path string) ([]*simcore.Job, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job trace csv: %w", err)
	}
	defer file.Close() //nolint:errcheck // read-only file; close error is not actionable

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read job trace header: %w", err)
	}

	var jobs []*simcore.Job
	seen := make(map[simcore.JobID]bool)
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading job trace at row %d: %w", row, err)
		}
		if len(record) < 5 {
			return nil, fmt.Errorf("job trace row %d has %d columns, expected at least 5", row, len(record))
		}

		id := simcore.JobID(record[0])
		if seen[id] {
			return nil, fmt.Errorf("job trace row %d: duplicate job id %q", row, id)
		}
		seen[id] = true

		submit, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid submit time at row %d: %w", row, err)
		}
		if submit < 0 {
			return nil, fmt.Errorf("job trace row %d: submit %d is negative", row, submit)
		}
		runTime, err := strconv.ParseInt(record[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid run_time at row %d: %w", row, err)
		}
		if runTime <= 0 {
			return nil, fmt.Errorf("job trace row %d: run_time %d must be positive", row, runTime)
		}
		proc, err := strconv.Atoi(record[3])
		if err != nil {
			return nil, fmt.Errorf("invalid proc at row %d: %w", row, err)
		}
		if proc <= 0 {
			return nil, fmt.Errorf("job trace row %d: proc %d must be positive", row, proc)
		}

		var nodes, pnCpus int
		if len(record) > 6 && record[6] != "" {
			nodes, err = strconv.Atoi(record[6])
			if err != nil {
				return nil, fmt.Errorf("invalid nodes at row %d: %w", row, err)
			}
		}
		if len(record) > 7 && record[7] != "" {
			pnCpus, err = strconv.Atoi(record[7])
			if err != nil {
				return nil, fmt.Errorf("invalid pn_cpus at row %d: %w", row, err)
			}
		}
		resolvedProc, resolvedNodes, resolvedPnCpus, corrected, err := simcore.ValidateNodeConfiguration(proc, nodes, pnCpus)
		if err != nil {
			return nil, fmt.Errorf("job trace row %d: %w", row, err)
		}
		if corrected {
			logrus.Warnf("job trace row %d (%s): proc %d inconsistent with nodes=%d pn_cpus=%d, correcting to %d",
				row, id, proc, resolvedNodes, resolvedPnCpus, resolvedProc)
		}

		job := simcore.NewJob(id, submit, runTime, resolvedProc, simcore.UserID(record[4]))
		job.Nodes = resolvedNodes
		job.PnCpus = resolvedPnCpus

		if len(record) > 5 && record[5] != "" {
			limit, err := strconv.ParseInt(record[5], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid time_limit at row %d: %w", row, err)
			}
			if limit < runTime {
				return nil, fmt.Errorf("job trace row %d: time_limit %d is below run_time %d", row, limit, runTime)
			}
			job.SetTimeLimit(limit)
		}
		jobs = append(jobs, job)
		row++
	}

	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].Submit < jobs[j].Submit })
	return jobs, nil
}

// loadUsers builds a User per distinct user_id encountered in jobs,
// with shares assigned through a ShareAssigner: cfg.Shares entries win,
// unlisted users default to 1.
func loadUsers(cfg Config, jobs []*simcore.Job) []*simcore.User {
	seen := make(map[simcore.UserID]bool)
	var order []simcore.UserID
	for _, j := range jobs {
		if !seen[j.User] {
			seen[j.User] = true
			order = append(order, j.User)
		}
	}

	perUser := make(map[simcore.UserID]int, len(cfg.Shares))
	for id, s := range cfg.Shares {
		perUser[simcore.UserID(id)] = s
	}
	assigner := simcore.FileShareAssigner{PerUser: perUser}

	users := make([]*simcore.User, 0, len(order))
	for _, id := range order {
		u := simcore.NewUser(id)
		u.SetShares(float64(assigner.Shares(id)))
		users = append(users, u)
	}
	return users
}
