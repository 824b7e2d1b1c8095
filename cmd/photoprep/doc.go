// Command photoprep prepares image sets for photogrammetry: it samples frames
// from video, resizes them, strips backgrounds, and drives the external
// COLMAP / OpenMVS scripts.
package main
