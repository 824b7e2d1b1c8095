//go:build !noopencv

package main

import (
	"photoprep/internal/frames"
	"photoprep/internal/matting"
	"photoprep/internal/matting/opencvnet"
	"photoprep/internal/video/opencv"
)

func openCVOpener() frames.Opener { return opencv.Opener{} }

func briaLoader() matting.PredictorLoader { return opencvnet.Load }
