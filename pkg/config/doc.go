// Package config loads the farmcart client configuration.
//
// Configuration is resolved in layers: built-in defaults, a YAML, TOML or
// JSON file, FARMCART_* environment variables and finally command-line
// overrides. The result is an immutable Config value that is passed to the
// marketplace at construction time; nothing in this package keeps global
// state.
//
// Example config.yaml:
//
//	apiUrl: https://api.farmcart.example/api
//	role: customer
//	timeout: 20s
//	log:
//	  level: info
//	resources:
//	  vegetables:
//	    path: /catalog/vegetables
package config
