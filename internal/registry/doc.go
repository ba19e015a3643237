// Package registry maps the names used in formulas and actions to the
// capabilities that implement them.
//
// Formula functions and custom actions resolve through a fixed chain: the
// versioned table keyed by (package, name) first, then the legacy
// single-name table. Formula definitions loaded from packages live in the
// versioned table next to Go handlers, so a package formula and a built-in
// are called the same way. A name that resolves nowhere is not an error at
// lookup time; the caller decides how to degrade.
package registry
