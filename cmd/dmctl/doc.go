// Command dmctl browses and serves models mapped by the datamapper.
//
// Models are defined in YAML (see pkg/schema) and mapped onto the
// repositories named in the configuration file. Each repository is backed by
// an in-memory store, PostgreSQL or SQLite.
//
// # Quick Start
//
//	# Check the model definitions
//	dmctl schema check --schema ./schema
//
//	# Run database migrations
//	dmctl db migrate --migrations ./db/migrations
//
//	# Read resources
//	dmctl get Book 1
//	dmctl all Book --limit 10 --where author_id=1
//
//	# Start the browsing server, reloading models on change
//	dmctl server --watch
//
// # Environment Variables
//
//   - DM_CONFIG_PATH: Directory holding datamapper.yml (default: /etc/datamapper)
//   - DATABASE_URL: Connection URL of the default repository
//   - DM_SCHEMA_PATH: Model definition file or directory
//   - DM_LOG_LEVEL: Log level (trace, debug, info, warn, error)
//   - PORT: Server port (default: 8080)
//
// A .env file in the working directory is loaded first.
package main
