// Package pipeline chains the preparation stages for one run.
//
// A run keeps a single "current images folder". Extraction (or scanning an
// existing folder) establishes it, and each enabled stage replaces it with
// the folder it wrote into. Reconstruction and the viewer consume whatever
// folder is current when they are reached. Stages run strictly in sequence.
//
// Only one run may be active per output directory; the lock file
// <output_dir>/.photoprep.lock enforces that across processes.
package pipeline
