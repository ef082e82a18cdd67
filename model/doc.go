// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside the triage bot.
//
// Core goals:
//   - Normalize request/response shapes (labeled segments in, a closed set of
//     output items out) independent of any vendor SDK
//   - Carry response chaining, JSON-schema reply enforcement and tool
//     definitions through one Request type
//   - Provide a retry wrapper (RetryModel) with per-attempt timeouts and
//     bounded exponential backoff
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (agents, the engine) remain decoupled from vendor
// SDKs.
package model
