// Package stagerun applies a per-image transformation to every member of an
// image set and writes the results into the stage's output folder.
//
// Batches isolate per-item faults: a file that fails to decode, transform,
// or encode is recorded in the Report and the batch continues. Only
// batch-level problems (invalid parameters, an uncreatable output folder,
// cancellation) abort the call.
package stagerun
