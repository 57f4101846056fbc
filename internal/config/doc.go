// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables optionally seeded from a .env file, CLI flags) with
// precedence: CLI flags > YAML config > Environment variables > Defaults. It
// exposes strongly typed settings for the HTTP server, logging, the applicant
// store and the premium cache.
package config
