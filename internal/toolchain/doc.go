// Package toolchain launches the external photogrammetry scripts.
//
// Reconstruction scripts receive positional arguments
//
//	<project_path> <folder_name> <texture_size> <gpu_flag> <output_format>
//
// where gpu_flag is -1 for GPU and -2 for CPU. Exit code 0 is success; any
// other code is reported once as an *ExitError and never retried. The model
// viewer is started detached and not waited on.
package toolchain
