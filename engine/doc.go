// Package engine orchestrates the handling of inbound chat events. For each
// event it records the message, compiles the assistant's context, runs the
// assistant loop, and applies the resulting actions to the chat and storage
// collaborators.
//
// Events are handled on independent goroutines with no per-channel ordering;
// concurrent writes to the same channel resolve last-write-wins at the
// storage layer.
package engine
