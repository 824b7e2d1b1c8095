// Package preflight checks that the directories photoprep reads and writes
// are usable before any stage runs.
//
// The doctor command prints every result; the pipeline itself does not call
// these checks and relies on stage errors instead.
package preflight
