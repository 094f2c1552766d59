// Package config loads runtime configuration for the pool services and the
// watcher from YAML files, environment variables and CLI flags, with
// precedence: CLI flags > Environment variables > YAML config > Defaults.
// It exposes strongly typed settings to the rest of the application.
package config
