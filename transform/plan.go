package transform

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pithecene-io/reel/types"
)

// Plan is one validated operation: it knows the name of the file it produces
// and the tool arguments that produce it.
type Plan interface {
	// Operation returns the operation this plan performs.
	Operation() types.Operation
	// OutputName derives the output file name from the uploaded file name.
	OutputName(filename string) string
	// Args returns the tool arguments placed between the input and output.
	Args() []string
}

// NewPlan validates the descriptor's operation and options and returns the
// matching plan.
//
// Errors are *types.JobError:
//   - KindUnknownOperation when the operation is not supported
//   - KindMissingOption when a required option is absent or empty
//   - KindMalformedRequest when an option would escape the output directory
func NewPlan(job *types.JobDescriptor) (Plan, error) {
	switch job.Operation {
	case types.OperationCompress:
		return compressPlan{}, nil

	case types.OperationChangeResolution:
		res, err := pathSafeOption(job, types.OptionResolution)
		if err != nil {
			return nil, err
		}
		return resolutionPlan{resolution: res}, nil

	case types.OperationChangeAspectRatio:
		ratio, err := pathSafeOption(job, types.OptionAspectRatio)
		if err != nil {
			return nil, err
		}
		return aspectRatioPlan{ratio: ratio}, nil

	case types.OperationExtractAudio:
		return extractAudioPlan{}, nil

	case types.OperationCreateGIF:
		c, err := clipOptions(job)
		if err != nil {
			return nil, err
		}
		return gifPlan{clip: c}, nil

	case types.OperationCreateWebM:
		c, err := clipOptions(job)
		if err != nil {
			return nil, err
		}
		return webmPlan{clip: c}, nil

	default:
		return nil, types.NewUnknownOperation(job.Operation)
	}
}

func requireOption(job *types.JobDescriptor, key string) (string, error) {
	v, ok := job.Option(key)
	if !ok {
		return "", types.NewMissingOption(job.Operation, key)
	}
	return v, nil
}

// pathSafeOption requires an option whose value becomes part of the output name.
func pathSafeOption(job *types.JobDescriptor, key string) (string, error) {
	v, err := requireOption(job, key)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(v, `/\`) || v == "." || v == ".." {
		return "", types.NewMalformedRequest(fmt.Sprintf("option %q has invalid value %q", key, v), nil)
	}
	return v, nil
}

type clip struct {
	start    string
	duration string
}

func clipOptions(job *types.JobDescriptor) (clip, error) {
	start, err := requireOption(job, types.OptionStartTime)
	if err != nil {
		return clip{}, err
	}
	duration, err := requireOption(job, types.OptionDuration)
	if err != nil {
		return clip{}, err
	}
	return clip{start: start, duration: duration}, nil
}

func (c clip) args() []string {
	return []string{"-ss", c.start, "-t", c.duration}
}

func withExt(filename, ext string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	// Leading dots belong to the stem: ".mp4" has no extension.
	if strings.Trim(filepath.Base(stem), ".") == "" {
		stem = filename
	}
	return stem + ext
}

type compressPlan struct{}

func (compressPlan) Operation() types.Operation { return types.OperationCompress }

func (compressPlan) OutputName(filename string) string { return "compress_" + filename }

func (compressPlan) Args() []string {
	return []string{"-vcodec", "libx264", "-crf", "28"}
}

type resolutionPlan struct {
	resolution string
}

func (resolutionPlan) Operation() types.Operation { return types.OperationChangeResolution }

func (p resolutionPlan) OutputName(filename string) string {
	return "resolution_" + p.resolution + "_" + filename
}

func (p resolutionPlan) Args() []string {
	return []string{"-vf", "scale=" + p.resolution, "-c:a", "copy"}
}

type aspectRatioPlan struct {
	ratio string
}

func (aspectRatioPlan) Operation() types.Operation { return types.OperationChangeAspectRatio }

func (p aspectRatioPlan) OutputName(filename string) string {
	return "aspect_ratio_" + p.ratio + "_" + filename
}

func (p aspectRatioPlan) Args() []string {
	return []string{"-vf", "setdar=" + p.ratio, "-c:a", "copy"}
}

type extractAudioPlan struct{}

func (extractAudioPlan) Operation() types.Operation { return types.OperationExtractAudio }

func (extractAudioPlan) OutputName(filename string) string { return withExt(filename, ".mp3") }

func (extractAudioPlan) Args() []string {
	return []string{"-q:a", "0", "-map", "a"}
}

type gifPlan struct {
	clip clip
}

func (gifPlan) Operation() types.Operation { return types.OperationCreateGIF }

func (gifPlan) OutputName(filename string) string { return withExt(filename, ".gif") }

func (p gifPlan) Args() []string {
	return append(p.clip.args(), "-vf", "fps=10,scale=320:-1:flags=lanczos")
}

type webmPlan struct {
	clip clip
}

func (webmPlan) Operation() types.Operation { return types.OperationCreateWebM }

func (webmPlan) OutputName(filename string) string { return withExt(filename, ".webm") }

func (p webmPlan) Args() []string {
	return append(p.clip.args(), "-c:v", "libvpx", "-b:v", "1M", "-c:a", "libvorbis")
}
