// Package app assembles a runtime from configuration: logger, capability
// registry, loaded packages and limits, and exposes the operations the CLI
// drives, decoupled from any specific entrypoint.
package app
