// Package action executes Action trees against component instances.
//
// An Instance owns a reactive data container, a memoization cache and the
// external capabilities its actions call through. The Executor walks action
// lists strictly in order; each action finishes its synchronous part before
// the next starts. A failing action is reported to the error sink and
// skipped, and its siblings still run. Fetch continuations arrive later,
// possibly on another goroutine, and carry the scope they were started in.
package action
