// Package cli is responsible for the weave command tree: parsing flags,
// merging them with the configuration file, and handling process-level
// concerns like exit codes. Each command builds an app.App and prints its
// results to the command's output stream.
package cli
