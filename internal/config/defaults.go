package config

const (
	BackendRembg    = "rembg"
	BackendBriaRMBG = "briarmbg"

	SourceOpenCV = "opencv"
	SourceFFmpeg = "ffmpeg"

	ModePointCloud = "point_cloud"
	ModeModel      = "model"
)

const (
	defaultOutputDir        = "~/photoprep"
	defaultLogDir           = "~/.local/share/photoprep/logs"
	defaultStateDir         = "~/.local/share/photoprep"
	defaultScriptsDir       = "~/.local/share/photoprep/scripts"
	defaultFrameRate        = 6
	defaultSource           = SourceOpenCV
	defaultScalePercent     = 100
	defaultBackend          = BackendRembg
	defaultRembgBinary      = "rembg"
	defaultBriaModelPath    = "~/.cache/photoprep/models/briarmbg-1.4.onnx"
	defaultBriaInputSize    = 1024
	defaultMode             = ModePointCloud
	defaultTextureSize      = 2048
	defaultOutputFormat     = "obj"
	defaultPointCloudScript = "colmap_demo.sh"
	defaultModelScript      = "colmap_openmvs.sh"
	defaultViewerScript     = "run_viewer.sh"
	defaultFFmpeg           = "ffmpeg"
	defaultFFprobe          = "ffprobe"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultRetentionDays    = 30
)

// TextureSizes lists the texture sizes the reconstruction scripts accept.
var TextureSizes = []int{512, 1024, 2048, 4096, 8192}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
			ScriptsDir: defaultScriptsDir,
		},
		Extraction: Extraction{
			FrameRate: defaultFrameRate,
			Source:    defaultSource,
		},
		Resize: Resize{
			ScalePercent: defaultScalePercent,
		},
		Background: Background{
			Backend:       defaultBackend,
			RembgBinary:   defaultRembgBinary,
			BriaModelPath: defaultBriaModelPath,
			BriaInputSize: defaultBriaInputSize,
		},
		Reconstruction: Reconstruction{
			Mode:             defaultMode,
			TextureSize:      defaultTextureSize,
			OutputFormat:     defaultOutputFormat,
			PointCloudScript: defaultPointCloudScript,
			ModelScript:      defaultModelScript,
			ViewerScript:     defaultViewerScript,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
	}
}
