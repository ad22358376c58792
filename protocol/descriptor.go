package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/pithecene-io/reel/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// wireDescriptor accepts scalar option values of any JSON type.
type wireDescriptor struct {
	Filename  string         `json:"filename"`
	Operation string         `json:"operation"`
	Options   map[string]any `json:"options"`
}

// DecodeDescriptor parses the descriptor section of a request.
//
// Options may hold strings, numbers, or booleans; all are normalized to their
// textual form. A missing or null options object decodes to an empty map.
//
// Errors are *FrameError with Kind=FrameErrorDecode.
func DecodeDescriptor(raw []byte) (*types.JobDescriptor, error) {
	if !utf8.Valid(raw) {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "descriptor is not valid UTF-8"}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var wire wireDescriptor
	if err := dec.Decode(&wire); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "descriptor is not valid JSON", Err: err}
	}
	if dec.More() {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "descriptor has trailing data"}
	}

	job := &types.JobDescriptor{
		Filename:  wire.Filename,
		Operation: types.Operation(wire.Operation),
		Options:   make(map[string]string, len(wire.Options)),
	}
	for key, value := range wire.Options {
		s, err := optionString(value)
		if err != nil {
			return nil, &FrameError{
				Kind: FrameErrorDecode,
				Msg:  fmt.Sprintf("option %q", key),
				Err:  err,
			}
		}
		job.Options[key] = s
	}

	if err := validate.Struct(job); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &FrameError{
				Kind: FrameErrorDecode,
				Msg:  fmt.Sprintf("descriptor field %q is %s", verrs[0].Field(), verrs[0].Tag()),
			}
		}
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "invalid descriptor", Err: err}
	}

	return job, nil
}

func optionString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", fmt.Errorf("must be a string, number, or boolean, got %T", v)
	}
}

// EncodeDescriptor serializes a descriptor for the request descriptor section.
// A nil options map is sent as {}.
func EncodeDescriptor(job *types.JobDescriptor) ([]byte, error) {
	out := *job
	if out.Options == nil {
		out.Options = map[string]string{}
	}
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	if len(data) > MaxDescriptorLen {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("descriptor is %d bytes, max %d", len(data), MaxDescriptorLen),
		}
	}
	return data, nil
}
