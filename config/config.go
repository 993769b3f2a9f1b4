// Package config loads the daemon's runtime configuration from flags and
// environment variables, in the style of sliceconfig's flag/env layering
// in the example pack.
package config

import (
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// StateMode selects how the state store persists invocation-scoped and
// reduction data.
type StateMode string

const (
	StateModeInMemory StateMode = "inmemory"
	StateModeS3       StateMode = "s3"
)

// Config holds every tunable the worker pool, scheduler, and OMP runtime
// read at startup. Fields mirror the teacher's SystemConfig in spirit: a
// flat struct populated once at process start, passed down by reference.
type Config struct {
	NodeID   string
	QueueName string

	GlobalMessageTimeoutMs int
	ChainedCallTimeoutMs   int

	StateMode      StateMode
	S3Bucket       string
	S3Region       string

	RuntimePreload bool

	PoolCapacity int

	HostsFile      string
	ResolvConfFile string

	DefaultNumThreads int
	MaxActiveLevel    int
	MaxDevices        int
}

// Default returns a Config with the same conservative defaults the
// teacher's flag definitions apply before any override is parsed.
func Default() *Config {
	return &Config{
		NodeID:                 hostnameOrDefault(),
		QueueName:              "lattice",
		GlobalMessageTimeoutMs: 5000,
		ChainedCallTimeoutMs:   60000,
		StateMode:              StateModeInMemory,
		RuntimePreload:         false,
		PoolCapacity:           4,
		HostsFile:              "/etc/lattice/hosts",
		ResolvConfFile:         "/etc/lattice/resolv.conf",
		DefaultNumThreads:      4,
		MaxActiveLevel:         8,
		MaxDevices:             3,
	}
}

// Parse populates c from command-line flags, falling back to any
// LATTICE_* environment variable already set, then to the defaults
// already present in c.
func (c *Config) Parse(args []string) error {
	fs := pflag.NewFlagSet("lattice", pflag.ContinueOnError)

	fs.StringVar(&c.NodeID, "node-id", envOr("LATTICE_NODE_ID", c.NodeID), "unique id for this node")
	fs.StringVar(&c.QueueName, "queue", envOr("LATTICE_QUEUE", c.QueueName), "global queue name this node polls")
	fs.IntVar(&c.GlobalMessageTimeoutMs, "global-message-timeout-ms", envOrInt("LATTICE_GLOBAL_MESSAGE_TIMEOUT_MS", c.GlobalMessageTimeoutMs), "global queue poll timeout")
	fs.IntVar(&c.ChainedCallTimeoutMs, "chained-call-timeout-ms", envOrInt("LATTICE_CHAINED_CALL_TIMEOUT_MS", c.ChainedCallTimeoutMs), "timeout awaiting a chained OMP thread invocation")
	fs.StringVar((*string)(&c.StateMode), "state-mode", envOr("LATTICE_STATE_MODE", string(c.StateMode)), "inmemory or s3")
	fs.StringVar(&c.S3Bucket, "s3-bucket", envOr("LATTICE_S3_BUCKET", c.S3Bucket), "bucket for external-kv state mode")
	fs.StringVar(&c.S3Region, "s3-region", envOr("LATTICE_S3_REGION", c.S3Region), "region for external-kv state mode")
	fs.BoolVar(&c.RuntimePreload, "runtime-preload", envOrBool("LATTICE_RUNTIME_PRELOAD", c.RuntimePreload), "warm a no-op invocation at pool startup")
	fs.IntVar(&c.PoolCapacity, "pool-capacity", envOrInt("LATTICE_POOL_CAPACITY", c.PoolCapacity), "maximum concurrent executor slots")
	fs.StringVar(&c.HostsFile, "hosts-file", envOr("LATTICE_HOSTS_FILE", c.HostsFile), "host file served for guest /etc/hosts opens")
	fs.StringVar(&c.ResolvConfFile, "resolv-conf-file", envOr("LATTICE_RESOLV_CONF_FILE", c.ResolvConfFile), "host file served for guest /etc/resolv.conf opens")
	fs.IntVar(&c.DefaultNumThreads, "default-num-threads", envOrInt("LATTICE_DEFAULT_NUM_THREADS", c.DefaultNumThreads), "OMP team size when unset by the guest")
	fs.IntVar(&c.MaxActiveLevel, "max-active-level", envOrInt("LATTICE_MAX_ACTIVE_LEVEL", c.MaxActiveLevel), "maximum nested OMP parallel depth that actually runs concurrently")
	fs.IntVar(&c.MaxDevices, "max-devices", envOrInt("LATTICE_MAX_DEVICES", c.MaxDevices), "number of OMP target devices exposed to omp_get_num_devices")

	return fs.Parse(args)
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil {
		return "node-0"
	}
	return h
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
