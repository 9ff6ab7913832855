// Package config handles configuration loading, parsing, and validation.
// Values come from defaults, an optional YAML file and DOCFLOW_* environment
// variables, and are validated with struct tags before use.
package config
