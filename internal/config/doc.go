// Package config provides the configuration of sitemirror: defaults, CLI
// option validation and the optional YAML file with per-site settings.
//
// The file (.sitemirror or $XDG_CONFIG_HOME/sitemirror/config.yaml) looks
// like:
//
//	defaults:
//	  delay: 500ms
//	sites:
//	  example.com:
//	    depth: 5
//	    headers:
//	      Accept-Language: "ja"
package config
