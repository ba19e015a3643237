// Package limits holds the safety guards used while interpreting
// user-authored trees: a table of numeric ceilings that can be overridden
// and reset, and cycle detectors that keep a stack of active identity keys
// per domain.
//
// A ceiling breach is reported as a *LimitExceededError and a repeated key
// as a *CycleError. Neither is fatal on its own; the evaluator and executor
// fold both into their soft-failure handling.
package limits
