package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagChunkSize = flag.Int("chunk-size", 0, "STEP read chunk size in bytes")
	flagOut       = flag.String("out", "", "Export output directory")
	flagMetrics   = flag.String("metrics", "", "Write Prometheus metrics to this file on exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagChunkSize > 0 {
		cfg.Extract.ChunkSize = *flagChunkSize
	}
	if *flagOut != "" {
		cfg.Store.OutDir = *flagOut
	}
	if *flagMetrics != "" {
		cfg.Metrics.Textfile = *flagMetrics
	}
}
