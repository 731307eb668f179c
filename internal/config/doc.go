// Package config handles configuration loading for pause-notify.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PAUSE_NOTIFY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/pause-notify/config.yaml
//  3. ~/.config/pause-notify/config.yaml
//
// Files ending in .toml are parsed as TOML, everything else as YAML. Any
// field left out keeps its value from Default.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	relay:
//	  jwt_secret: "${PAUSE_NOTIFY_JWT_SECRET}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	subscription:
//	  initial_backoff: "500ms"
//	  max_backoff: "10s"
//
// # Configuration Sections
//
//	identity:
//	  user_id: "alice"
//	  token: "${PAUSE_NOTIFY_TOKEN}"
//	feed:
//	  url: "http://localhost:8080"
//	permission:
//	  mode: "prompt"          # prompt | granted | denied
//	subscription:
//	  max_attempts: 3
//	  queue_size: 256
//	dedupe:
//	  capacity: 4096
//	relay:
//	  http_addr: "localhost:8080"
//	  jwt_secret: "${PAUSE_NOTIFY_JWT_SECRET}"
//	  ping_interval: "25s"
//	database:
//	  path: "/var/lib/pause-notify/inbox.db"
//	notify:
//	  terminal: {enabled: true, bell: false}
//	  inbox: {enabled: true}
//	  matrix:
//	    enabled: false
//	    homeserver: "https://matrix.org"
//	    user_id: "@notify:matrix.org"
//	    access_token: "${MATRIX_TOKEN}"
//	    room_id: "!room:matrix.org"
//	logging:
//	  level: "info"           # debug | info | warn | error
//	  format: "text"          # text | json
//
// Validate checks values every command relies on; ValidateWatch and
// ValidateRelay add the requirements of those commands.
package config
