// Package formula evaluates Formula trees against a data root.
//
// Evaluate never panics and never returns an error. Every failure, whether
// a path miss, an unresolved capability, a depth or argument ceiling, a
// runtime cycle or a panicking handler, is reported to the context's
// diag.Sink and the failing node evaluates to nil. Evaluation is synchronous
// recursion with no suspension points.
package formula
