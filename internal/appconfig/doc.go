// Package appconfig loads the conduitd configuration from environment variables,
// optionally seeded from a .env file.
package appconfig
