package cmd

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the algorithmic settings a run is configured with. All
// top-level sections must be listed to satisfy KnownFields(true)
// strict parsing.
type Config struct {
	Policy            string           `yaml:"policy"`    // "ostrich" or "fairshare"
	Threshold         int64            `yaml:"threshold"` // seconds, campaign idle-gap boundary
	Decay             int64            `yaml:"decay"`     // seconds, CPU-usage half-life
	BfDepth           int              `yaml:"bf_depth"`  // jobs examined per backfill pass
	BfWindow          int64            `yaml:"bf_window"` // seconds
	BfInterval        int64            `yaml:"bf_interval"` // seconds, 0 disables periodic backfill
	CoreStart         int64            `yaml:"core_start"`
	CoreEnd           int64            `yaml:"core_end"`
	ClusterCPU        int64            `yaml:"cluster_cpu"`                  // single-partition total, ignored if ClusterNodes is set
	ClusterPercentile float64          `yaml:"cluster_percentile,omitempty"` // if > 0, overrides ClusterCPU with a percentile sizing of the trace
	ClusterNodes      map[string]int64 `yaml:"cluster_nodes,omitempty"`
	Shares            map[string]int   `yaml:"shares,omitempty"`
}

// loadConfig parses a run configuration YAML file with strict field
// checking — an unknown key is a typo, not a silent no-op.
func loadConfig(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Fatalf("failed to read config file: %v", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		logrus.Fatalf("failed to parse config YAML: %v", err)
	}
	return cfg
}
