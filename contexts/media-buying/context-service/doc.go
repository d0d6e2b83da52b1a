// Package contextservice stores conversational sessions shared by the
// protocol front-ends. Message ordering is a store concern: sequence
// numbers are assigned under the context row's lock, strictly increasing
// and gap-free, and a completed Append is visible to the next Read.
package contextservice
