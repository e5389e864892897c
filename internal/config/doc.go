// Package config provides loading and environment overlay for the settlement
// pipeline configuration. It exposes a Default() baseline, a JSON file
// loader, and FINTECH_* environment overrides.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/fintech.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
