// Package config loads SDK configuration from defaults, an optional TOML
// file and ZCN_* environment variables, and validates it before any network
// call is attempted.
package config
