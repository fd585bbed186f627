// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	simcore "github.com/ostrich-sim/ostrich-sim/simcore"
)

var (
	configPath string
	jobsPath   string
	outputPath string
	logLevel   string

	policyName        string
	threshold         int64
	decay             int64
	bfDepth           int
	bfWindow          int64
	bfInterval        int64
	coreStart         int64
	coreEnd           int64
	clusterCPU        int64
	clusterPercentile float64
)

var rootCmd = &cobra.Command{
	Use:   "ostrich-sim",
	Short: "Discrete-event simulator for batch-cluster fairness policies",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a job trace under the configured fairness policy",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := defaultCLIConfig()
		if configPath != "" {
			cfg = loadConfig(configPath)
		}
		applyChangedFlags(cmd, &cfg)

		jobs, err := loadJobsFromCSV(jobsPath)
		if err != nil {
			logrus.Fatalf("failed to load job trace: %v", err)
		}
		users := loadUsers(cfg, jobs)

		logrus.Infof("starting run: policy=%s jobs=%d users=%d threshold=%ds decay=%ds",
			cfg.Policy, len(jobs), len(users), cfg.Threshold, cfg.Decay)

		policy, err := resolvePolicy(cfg.Policy)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		totalCPUs, err := resolveCluster(cfg, jobs)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		out, closeOut := openOutput(outputPath)
		defer closeOut()

		simCfg := simcore.Config{
			Policy:      policy,
			Estimator:   simcore.DefaultEstimator{},
			Submitter:   simcore.OracleSubmitter{},
			Selector:    simcore.ThresholdSelector{Threshold: cfg.Threshold},
			BfDepth:     cfg.BfDepth,
			BfWindow:    cfg.BfWindow,
			BfInterval:  cfg.BfInterval,
			CoreStart:   cfg.CoreStart,
			CoreEnd:     cfg.CoreEnd,
			DecayFactor: 1 - 0.693/float64(cfg.Decay),
		}

		sim := simcore.NewSimulator(simCfg, totalCPUs, users, jobs, out)
		diag := sim.Run()

		logrus.Infof("run complete: skipped=%d schedule_passes=%d backfill_passes=%d started_sched=%d started_bf=%d avg_util=%.4f wall=%ds",
			diag.SkippedJobs, diag.SchedulePasses, diag.BackfillPasses,
			diag.StartedBySchedule, diag.StartedByBackfill, diag.AverageUtilization(),
			diag.WallClockEnd-diag.WallClockStart)
	},
}

func defaultCLIConfig() Config {
	return Config{
		Policy:     "ostrich",
		Threshold:  600,
		Decay:      3600,
		BfDepth:    100,
		BfWindow:   24 * 3600,
		BfInterval: 0,
		CoreEnd:    1 << 62,
		ClusterCPU: 128,
	}
}

// applyChangedFlags overlays any CLI flag the user actually set onto
// cfg loaded from file (or the built-in default), so a config file's
// values are the base and flags are overrides — never the reverse.
func applyChangedFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy = policyName
	} else if cfg.Policy == "" {
		cfg.Policy = policyName
	}
	if flags.Changed("threshold") {
		cfg.Threshold = threshold
	}
	if flags.Changed("decay") {
		cfg.Decay = decay
	}
	if flags.Changed("bf-depth") {
		cfg.BfDepth = bfDepth
	}
	if flags.Changed("bf-window") {
		cfg.BfWindow = bfWindow
	}
	if flags.Changed("bf-interval") {
		cfg.BfInterval = bfInterval
	}
	if flags.Changed("core-start") {
		cfg.CoreStart = coreStart
	}
	if flags.Changed("core-end") {
		cfg.CoreEnd = coreEnd
	}
	if flags.Changed("cluster-cpu") {
		cfg.ClusterCPU = clusterCPU
	}
	if flags.Changed("cluster-percentile") {
		cfg.ClusterPercentile = clusterPercentile
	}
}

func resolvePolicy(name string) (simcore.Policy, error) {
	switch name {
	case "ostrich", "":
		return simcore.OStrichPolicy{}, nil
	case "fairshare":
		return simcore.FairsharePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want ostrich or fairshare)", name)
	}
}

func resolveCluster(cfg Config, jobs []*simcore.Job) (simcore.NodeMap, error) {
	if len(cfg.ClusterNodes) > 0 {
		return simcore.NewVectorCPU(cfg.ClusterNodes), nil
	}
	if cfg.ClusterPercentile > 0 {
		cpus := percentileCPUs(jobs, cfg.ClusterPercentile)
		if cpus <= 0 {
			return nil, fmt.Errorf("percentile cluster sizing produced non-positive CPU count")
		}
		return simcore.ScalarCPU(cpus), nil
	}
	if cfg.ClusterCPU <= 0 {
		return nil, fmt.Errorf("cluster_cpu must be positive when cluster_nodes/cluster_percentile are not set")
	}
	return simcore.ScalarCPU(cfg.ClusterCPU), nil
}

func openOutput(path string) (simcore.Recorder, func()) {
	if path == "" || path == "-" {
		return simcore.RecorderFunc(func(line string) { fmt.Println(line) }), func() {}
	}
	f, err := os.Create(path)
	if err != nil {
		logrus.Fatalf("failed to create output file: %v", err)
	}
	return simcore.RecorderFunc(func(line string) { fmt.Fprintln(f, line) }), func() { f.Close() }
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML config file with algorithmic settings")
	runCmd.Flags().StringVar(&jobsPath, "jobs", "", "Job trace CSV (id,submit,run_time,proc,user_id[,time_limit])")
	runCmd.Flags().StringVar(&outputPath, "output", "-", "Output event stream file, '-' for stdout")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (debug, info, warn, error)")

	runCmd.Flags().StringVar(&policyName, "policy", "ostrich", "Fairness policy: ostrich or fairshare")
	runCmd.Flags().Int64Var(&threshold, "threshold", 600, "Campaign idle-gap boundary in seconds")
	runCmd.Flags().Int64Var(&decay, "decay", 3600, "CPU-usage half-life in seconds")
	runCmd.Flags().IntVar(&bfDepth, "bf-depth", 100, "Jobs examined per backfill pass")
	runCmd.Flags().Int64Var(&bfWindow, "bf-window", 24*3600, "Backfill reservation window in seconds")
	runCmd.Flags().Int64Var(&bfInterval, "bf-interval", 0, "Periodic backfill interval in seconds, 0 disables")
	runCmd.Flags().Int64Var(&coreStart, "core-start", 0, "Core analysis window start")
	runCmd.Flags().Int64Var(&coreEnd, "core-end", 1<<62, "Core analysis window end")
	runCmd.Flags().Int64Var(&clusterCPU, "cluster-cpu", 128, "Total cluster CPU count (single-partition cluster)")
	runCmd.Flags().Float64Var(&clusterPercentile, "cluster-percentile", 0, "Size the cluster at this percentile (0-100) of concurrent offered load instead of a fixed cluster-cpu")

	if err := runCmd.MarkFlagRequired("jobs"); err != nil {
		logrus.Fatalf("failed to register required flag: %v", err)
	}

	rootCmd.AddCommand(runCmd)
}
