// Package config handles loading and validating RustFS launcher configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The API binds to 127.0.0.1 by default; it has no authentication layer
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
