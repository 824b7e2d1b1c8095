package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"photoprep/internal/config"
	"photoprep/internal/imageset"
	"photoprep/internal/pipeline"
	"photoprep/internal/services"
)

// thumbnailBox matches the preview size of the original desktop tool.
const thumbnailBox = 100

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var rate int
	cmd := &cobra.Command{
		Use:   "extract <video>",
		Short: "Sample frames from a video into <output_dir>/<stem>/images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, cmd, func(cfg *config.Config) (pipeline.Options, error) {
				params := cfg.Pipeline()
				if cmd.Flags().Changed("rate") {
					params.FrameRate = rate
				}
				video, err := config.ExpandPath(args[0])
				if err != nil {
					return pipeline.Options{}, err
				}
				return pipeline.Options{Video: video, Params: params}, nil
			})
		},
	}
	cmd.Flags().IntVarP(&rate, "rate", "r", 0, "Frames per second to keep (default extraction.frame_rate)")
	return cmd
}

func newResizeCommand(ctx *commandContext) *cobra.Command {
	var scale int
	cmd := &cobra.Command{
		Use:   "resize <images-folder>",
		Short: "Scale every image in a folder into the sibling resize/images folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, cmd, func(cfg *config.Config) (pipeline.Options, error) {
				params := cfg.Pipeline()
				if cmd.Flags().Changed("scale") {
					params.ResizePercent = scale
				}
				return imagesOptions(args[0], params, func(o *pipeline.Options) { o.Resize = true })
			})
		},
	}
	cmd.Flags().IntVarP(&scale, "scale", "s", 0, "Scale percentage (default resize.scale_percent)")
	return cmd
}

func newRemoveBackgroundCommand(ctx *commandContext) *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:     "rmbg <images-folder>",
		Aliases: []string{"remove-background"},
		Short:   "Remove backgrounds into the sibling rmbg/images folder",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, cmd, func(cfg *config.Config) (pipeline.Options, error) {
				params := cfg.Pipeline()
				if b := strings.TrimSpace(backend); b != "" {
					params.Backend = strings.ToLower(b)
				}
				return imagesOptions(args[0], params, func(o *pipeline.Options) { o.RemoveBackground = true })
			})
		},
	}
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "Segmentation backend: rembg or briarmbg (default background.backend)")
	return cmd
}

func newReconstructCommand(ctx *commandContext) *cobra.Command {
	var view bool
	cmd := &cobra.Command{
		Use:   "reconstruct <images-folder>",
		Short: "Run the configured COLMAP / OpenMVS script on an images folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyReconstructionFlags(cmd, ctx); err != nil {
				return err
			}
			return runPipeline(ctx, cmd, func(cfg *config.Config) (pipeline.Options, error) {
				return imagesOptions(args[0], cfg.Pipeline(), func(o *pipeline.Options) {
					o.Reconstruct = true
					o.View = view
				})
			})
		},
	}
	addReconstructionFlags(cmd)
	cmd.Flags().BoolVar(&view, "view", false, "Launch the viewer after a successful reconstruction")
	return cmd
}

func newViewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "view [viewer-args...]",
		Short: "Launch the model viewer script without waiting for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			script := s.cfg.ScriptPath(s.cfg.Reconstruction.ViewerScript)
			if err := s.toolchain().LaunchViewer(commandCtx(cmd), script, args...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Viewer launched: %s\n", script)
			return nil
		},
	}
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var thumbs bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan <folder>",
		Short: "List the images photoprep would process in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			set, err := imageset.Scan(folder)
			if err != nil {
				return services.Wrap(services.ErrValidation, "scan", "walk", folder, err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(cmd, struct {
					Folder string   `json:"folder"`
					Images []string `json:"images"`
				}{folder, set})
			}
			rows := make([][]string, 0, len(set))
			for i, path := range set {
				rel, err := filepath.Rel(folder, path)
				if err != nil {
					rel = path
				}
				rows = append(rows, []string{strconv.Itoa(i + 1), rel})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"#", "Image"}, rows, []columnAlignment{alignRight, alignLeft}))
			}
			fmt.Fprintf(out, "%d images in %s\n", len(set), folder)
			if !thumbs || len(set) == 0 {
				return nil
			}

			s, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			report, err := s.stages().Thumbnails(commandCtx(cmd), set, thumbnailBox, thumbnailBox)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %d thumbnails to %s\n", len(report.Output), report.Folder)
			for _, failure := range report.Failures {
				fmt.Fprintf(out, "  skipped %s: %v\n", failure.Path, failure.Err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&thumbs, "thumbs", false, "Write 100x100 previews into the sibling thumbs folder")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the image list as JSON")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		rate        int
		scale       int
		backend     string
		resize      bool
		rmbg        bool
		reconstruct bool
		view        bool
	)
	cmd := &cobra.Command{
		Use:   "run <video|images-folder>",
		Short: "Run extraction (or scan) followed by the selected stages",
		Long: "Run threads one images folder through every selected stage: each stage\n" +
			"reads the folder the previous one produced. A video is extracted first;\n" +
			"a directory is scanned as-is.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyReconstructionFlags(cmd, ctx); err != nil {
				return err
			}
			return runPipeline(ctx, cmd, func(cfg *config.Config) (pipeline.Options, error) {
				params := cfg.Pipeline()
				if cmd.Flags().Changed("rate") {
					params.FrameRate = rate
				}
				if cmd.Flags().Changed("scale") {
					params.ResizePercent = scale
				}
				if b := strings.TrimSpace(backend); b != "" {
					params.Backend = strings.ToLower(b)
				}
				input, err := config.ExpandPath(args[0])
				if err != nil {
					return pipeline.Options{}, err
				}
				info, err := os.Stat(input)
				if err != nil {
					return pipeline.Options{}, services.Wrap(services.ErrSourceUnavailable, "pipeline", "inspect input", input, err)
				}
				opts := pipeline.Options{
					Params:           params,
					Resize:           resize,
					RemoveBackground: rmbg,
					Reconstruct:      reconstruct,
					View:             view,
				}
				if info.IsDir() {
					opts.Images = input
				} else {
					opts.Video = input
				}
				return opts, nil
			})
		},
	}
	cmd.Flags().IntVarP(&rate, "rate", "r", 0, "Frames per second to keep (default extraction.frame_rate)")
	cmd.Flags().IntVarP(&scale, "scale", "s", 0, "Scale percentage (default resize.scale_percent)")
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "Segmentation backend (default background.backend)")
	cmd.Flags().BoolVar(&resize, "resize", false, "Resize the images")
	cmd.Flags().BoolVar(&rmbg, "rmbg", false, "Remove backgrounds")
	cmd.Flags().BoolVar(&reconstruct, "reconstruct", false, "Run the reconstruction script")
	cmd.Flags().BoolVar(&view, "view", false, "Launch the viewer when the run succeeds")
	addReconstructionFlags(cmd)
	return cmd
}

type optionsFunc func(cfg *config.Config) (pipeline.Options, error)

func runPipeline(ctx *commandContext, cmd *cobra.Command, build optionsFunc) error {
	s, err := ctx.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts, err := build(s.cfg)
	if err != nil {
		return err
	}
	result, err := s.pipeline().Run(commandCtx(cmd), opts)
	printResult(cmd.OutOrStdout(), result)
	return err
}

func imagesOptions(arg string, params config.Pipeline, apply func(*pipeline.Options)) (pipeline.Options, error) {
	folder, err := config.ExpandPath(arg)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{Images: folder, Params: params}
	apply(&opts)
	return opts, nil
}

func addReconstructionFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "Reconstruction mode: point_cloud or model (default reconstruction.mode)")
	cmd.Flags().Int("texture-size", 0, "Texture size passed to the toolchain (default reconstruction.texture_size)")
	cmd.Flags().Bool("gpu", false, "Pass the GPU flag to the toolchain (default reconstruction.use_gpu)")
	cmd.Flags().String("format", "", "Model output format (default reconstruction.output_format)")
}

// applyReconstructionFlags folds the reconstruction flags into the loaded
// configuration and revalidates it.
func applyReconstructionFlags(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("mode") {
		v, _ := flags.GetString("mode")
		cfg.Reconstruction.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if flags.Changed("texture-size") {
		cfg.Reconstruction.TextureSize, _ = flags.GetInt("texture-size")
	}
	if flags.Changed("gpu") {
		cfg.Reconstruction.UseGPU, _ = flags.GetBool("gpu")
	}
	if flags.Changed("format") {
		v, _ := flags.GetString("format")
		cfg.Reconstruction.OutputFormat = strings.ToLower(strings.TrimSpace(v))
	}
	if err := cfg.Validate(); err != nil {
		return services.Wrap(services.ErrInvalidParameter, "reconstruct", "flags", "invalid reconstruction flags", err)
	}
	return nil
}
