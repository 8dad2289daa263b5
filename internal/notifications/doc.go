// Package notifications delivers upload events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-category switches (uploads, failures, sessions) suppress
// events the operator does not want pushed.
//
// All engine code depends only on the Service interface.
package notifications
