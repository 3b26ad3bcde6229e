// Package config provides configuration management for the render worker.
//
// Configuration is loaded from environment variables and validated on startup.
// All configuration options have sensible defaults for development; the
// helper engine defaults to lenient tracking checks and strict lifecycle
// checks.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine := helper.NewEngine(registry, cfg.EngineOptions(), logger)
package config
