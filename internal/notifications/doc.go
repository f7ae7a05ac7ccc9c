// Package notifications delivers worker events via ntfy.
//
// The ntfy implementation publishes to the topic URL configured in
// config.toml and degrades to a no-op when no topic is set. Completion and
// failure messages can be toggled independently.
package notifications
