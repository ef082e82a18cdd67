// Package core provides the foundational domain types used across the triage
// bot. It defines the core abstractions for:
//
//   - ChatEvent (immutable inbound platform messages)
//   - Action (the closed set of typed outcomes of a model turn)
//   - Channel records (replace-only directive, append-only context entries)
//   - CompiledContext (the ephemeral per-event aggregate fed to the assistant)
//
// The package intentionally keeps implementation concerns (persistence, model
// providers, orchestration) out of scope so collaborator packages depend on
// small shared types rather than on each other.
package core
