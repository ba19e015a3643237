// Package walk traverses Formula, Action, Node, API and Component trees
// without evaluating them.
//
// Every walker returns an iter.Seq that is lazy, ordered and restartable:
// ranging over it twice produces the same visits. Each visit carries the
// structural path from the walk root and the package inherited at that
// point. Paths follow the exact field and index route the evaluator and
// executor take, so tooling that addresses a path targets the node that
// would run. Named children are visited in lexical key order.
package walk
