// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file and TASKBOARD_-prefixed environment
// variables. It provides type-safe access to the settings of the HTTP server,
// the database, the scheduler, and the optional Redis and RabbitMQ
// integrations.
package config
