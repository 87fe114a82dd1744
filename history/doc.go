// Package history records standardization and search operations in an
// embedded BadgerDB store with bounded retention. The Recorder
// interface lets callers disable persistence with Noop.
package history
