// Package services defines shared utilities consumed by the pipeline stages
// and the external tool adapters.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers and stage names for logging.
//   - Structured error markers plus the Wrap helper so every failure surfaces
//     as a distinguishable condition (source unavailable, bad metadata,
//     invalid parameter, per-item failure, toolchain failure).
//
// Use these helpers when wiring new stage logic so failures stay uniform
// across extraction, resize, background removal, and reconstruction.
package services
