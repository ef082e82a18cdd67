// Package testutil contains shared test doubles for the pipeline's
// collaborators (chat service, store, helper model, toolset) used across
// package tests to reduce boilerplate. The doubles record their inputs and
// serve scripted outputs. These helpers are intentionally minimal and avoid
// adding third-party dependencies. They are not intended for production
// usage.
package testutil
