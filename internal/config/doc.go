// Package config loads memval configuration with viper.
//
// Settings come, in increasing precedence, from built-in defaults, a YAML
// file (memval.yaml in the working directory or $HOME/.config/memval, or the
// file passed with --config), MEMVAL_* environment variables and command line
// flags bound by the CLI.
//
// # Configuration File Structure
//
//	storage:
//	  backend: bolt          # memory, bolt, sqlite or s3
//	  path: memval.db        # bolt file or sqlite DSN
//	  bucket: memval         # bolt bucket or S3 bucket
//	  table: memval_slots    # sqlite table
//	  prefix: ""             # S3 key prefix
//	  codec: json            # json or cbor
//	  timeout: 5s
//	  secure: false          # seal values at rest
//	  secret_env: MEMVAL_SECRET
//	  instrument: true
//	  s3:
//	    region: eu-central-1
//	    endpoint: ""
//	    path_style: false
//	server:
//	  addr: ":7070"
//	  read_timeout: 60s
//	  write_timeout: 10s
//	  heartbeat: 30s
//	  allowed_origins: []
//	warnings: true
//
// Nested keys map to environment variables with dots replaced by
// underscores, e.g. MEMVAL_STORAGE_BACKEND or MEMVAL_SERVER_ADDR.
package config
