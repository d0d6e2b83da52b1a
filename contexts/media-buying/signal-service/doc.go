// Package signalservice tracks asynchronous audience-signal activations on
// backend ad servers. Activation results arrive through two channels, a
// scheduled poll reconciler and an operator-facing webhook, and the store
// merges them under compare-and-swap guards so each activation reaches
// exactly one terminal state regardless of arrival order.
package signalservice
