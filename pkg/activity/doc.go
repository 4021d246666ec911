// Package activity fans configuration lifecycle events (created, migrated,
// updated) out to pluggable hooks such as an audit log.
package activity
