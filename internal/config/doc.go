// Package config provides loading and environment overlay for dispatch and
// plant configuration. It exposes a Default() baseline, JSON file loading,
// and an MCD_* environment overlay applied on top.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/mcd.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
