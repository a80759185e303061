// Package integration provides end-to-end tests for the repository
// custodian server. Each spec runs a fully wired server instance with
// the in-memory store and the inline execution backend against fixture
// repositories served over the Git smart HTTP protocol, and drives the
// complete lifecycle through the public API.
package integration
