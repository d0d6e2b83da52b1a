// Package mediabuyservice owns the media buy lifecycle: creation at
// pending_creative, creative completeness, the approval gate, backend
// go-live, operator pause/resume and flight close-out. Every status change
// runs through one guarded storage primitive that writes the audit row in
// the same transaction, so concurrent writers lose cleanly instead of
// corrupting the state machine.
package mediabuyservice
