// Package dag models package dependencies as a directed graph. It performs
// the full-graph depth-first cycle scan used by the package-dependency guard
// and produces a topological order (dependencies first) when the graph is
// acyclic.
package dag
