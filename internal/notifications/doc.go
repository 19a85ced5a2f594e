// Package notifications pushes job and summary events to ntfy.
//
// Each event type can be switched off in the [notifications] config section;
// with no topic configured every event is dropped. Callers depend only on the
// Service interface.
package notifications
