// Package approvalservice is the durable task and approval queue gating
// media-buy state transitions.
//
// Tasks are optimistically locked: every status-changing write carries the
// version it read and the store applies it as a single compare-and-swap,
// so two reviewers racing on the same task can never both win.
package approvalservice
