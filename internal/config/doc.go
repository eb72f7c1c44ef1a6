// Package config provides configuration parsing for ctrlbind hosts.
//
// The configuration lives in ctrlbind.json or ctrlbind.yaml at the project
// root. JSON is checked first; both share one schema.
//
// # Configuration File Structure
//
//	server:
//	  addr: ":8080"
//	  wsPath: /ws
//	  readTimeout: 60s
//	metrics:
//	  enabled: true
//	  namespace: ctrlbind
//	  path: /metrics
//	tracing:
//	  enabled: false
//	  tracerName: ctrlbind
//	log:
//	  level: info
//	  format: text
//	controllers:
//	  disabled: ["LoginController"]
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := cfg.Logger(os.Stderr)
package config
