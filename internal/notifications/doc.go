// Package notifications delivers recording events via ntfy.
//
// The ntfy implementation posts to the topic URL configured in config.toml and
// degrades to a no-op when no topic is set. Per-category toggles in the
// [notifications] section suppress recording, library, or error events
// independently; the test event is always sent.
package notifications
