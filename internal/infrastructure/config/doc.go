// Package config handles loading and validating Tracker Grid configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The Home Assistant token and JWT secret should be set via environment
//     variables (TRACKERGRID_HASS_TOKEN, TRACKERGRID_JWT_SECRET)
//   - The config file should have restricted permissions (0600)
//
// Configuration is loaded once at startup. The grid section is handed to the
// grid engine, which resolves it into its own view configuration.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Grid.Title)
package config
