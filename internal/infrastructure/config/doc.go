// Package config handles loading and validating sitedb configuration.
//
// This package manages:
//   - Loading configuration from YAML or HCL files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Database and broker passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/sitedb.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Driver)
package config
