// Package frames samples a video stream at a target output rate and writes
// the selected frames as numbered PNG files.
//
// Key types:
//   - VideoSource: a sequential frame reader with an intrinsic rate
//   - Opener: opens a VideoSource for a path (OpenCV or ffmpeg backed)
//   - Sampler: drives extraction and reports written paths
//
// The stride between kept frames is floor(fps / target); a stride of zero
// (target above the source rate) keeps every frame. Kept frames are renumbered
// from zero as frame_0000.png, frame_0001.png, and so on.
package frames
