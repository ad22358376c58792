// Package types defines core domain types for the reel server and client.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"path/filepath"
	"strings"
)

// Operation names a media transformation requested by a client.
type Operation string

// Supported operations.
const (
	OperationCompress          Operation = "compress"
	OperationChangeResolution  Operation = "change_resolution"
	OperationChangeAspectRatio Operation = "change_aspect_ratio"
	OperationExtractAudio      Operation = "extract_audio"
	OperationCreateGIF         Operation = "create_gif"
	OperationCreateWebM        Operation = "create_webm"
)

// Operations lists every supported operation in a stable order.
func Operations() []Operation {
	return []Operation{
		OperationCompress,
		OperationChangeResolution,
		OperationChangeAspectRatio,
		OperationExtractAudio,
		OperationCreateGIF,
		OperationCreateWebM,
	}
}

// IsKnown reports whether o is one of the supported operations.
func (o Operation) IsKnown() bool {
	for _, known := range Operations() {
		if o == known {
			return true
		}
	}
	return false
}

// Option keys read by operations.
const (
	OptionResolution  = "resolution"
	OptionAspectRatio = "aspect_ratio"
	OptionStartTime   = "start_time"
	OptionDuration    = "duration"
)

// MediaType is the media container tag sent alongside an upload.
type MediaType string

// Known media types.
const (
	MediaMP4 MediaType = "mp4"
	MediaAVI MediaType = "avi"
	MediaMP3 MediaType = "mp3"
)

// ParseMediaType normalizes a wire media-type tag ("MP4", " .avi") to a MediaType.
func ParseMediaType(tag string) MediaType {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return MediaType(strings.TrimPrefix(tag, "."))
}

// MediaTypeFromFilename derives a MediaType from a filename extension.
func MediaTypeFromFilename(filename string) MediaType {
	return ParseMediaType(filepath.Ext(filename))
}

// Transformable reports whether media of this type may be transformed.
func (m MediaType) Transformable() bool {
	return m == MediaMP4 || m == MediaAVI
}

// JobDescriptor is the decoded request carried in the descriptor section of a
// request frame.
type JobDescriptor struct {
	// Filename is the name the upload is stored under (required).
	Filename string `json:"filename" validate:"required"`
	// Operation is the requested transformation (required).
	// Unknown values survive decoding and are rejected at dispatch.
	Operation Operation `json:"operation" validate:"required"`
	// Options carries operation parameters. Never nil after decoding.
	Options map[string]string `json:"options"`
}

// Option returns the named option and whether it was present and non-empty.
func (j *JobDescriptor) Option(key string) (string, bool) {
	v, ok := j.Options[key]
	return v, ok && v != ""
}
