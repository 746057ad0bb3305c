// Package config provides centralized configuration management for the
// predictions report application.
//
// # Configuration Sources
//
// Configuration is built from the following sources, later ones winning:
//
//	1. Default values (Default)
//	2. A YAML file (--config, or predictions.yaml / configs/predictions.yaml)
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern NIR_<SECTION>_<FIELD>:
//
//	NIR_SERVER_PORT=8080
//	NIR_LOGGING_LEVEL=debug
//	NIR_ANALYSIS_EXCLUDED_SHEETS=Espectros,Summary
//	NIR_ANALYSIS_BASELINE=a
//	NIR_REPORT_DECIMALS=2
//	NIR_STORE_TTL=30m
//
// # Validation
//
// Every value is checked with validator struct tags at load time. Unknown
// keys in the YAML file are rejected.
//
// # Usage
//
//	cfg, err := config.Load(configPath)
//	if err != nil {
//	    return err
//	}
//
// For testing, use Default() directly; it needs no files or environment.
package config
