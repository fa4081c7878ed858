// Package config provides environment-based configuration.
//
// Loads from the environment with an optional .env overlay (godotenv).
// Validates required fields at startup so misconfiguration fails fast.
package config
