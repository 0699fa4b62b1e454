// Package config provides configuration management for datamapper tools.
//
// Configuration is loaded from defaults, then the YAML file
// $DM_CONFIG_PATH/datamapper.yml, then environment variables. Each
// attribute remembers which of these sources set it.
//
// # Key Configuration Options
//
//   - DATABASE_URL: Database of the default repository
//   - DM_DEFAULT_REPOSITORY: Name of the default repository
//   - DM_SCHEMA_PATH: YAML model definitions
//   - DM_LOG_LEVEL, DM_LOG_FORMAT: Logging
//   - PORT, BIND_ADDRESS: Browsing server listen address
package config
