// Package infra holds the adapters to external systems: zerolog, Sentry,
// Prometheus, InfluxDB, MQTT and rotating diagnostic files. They implement
// interfaces of the core packages, which never import them.
package infra
