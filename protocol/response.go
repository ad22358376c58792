package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/reel/types"
)

// MaxNameLen bounds the output name a reader will accept.
const MaxNameLen = 4096

// MaxEnvelopeSize bounds the error envelope a reader will accept.
const MaxEnvelopeSize = 64 * 1024

// ResponseHeader is the prefix of a response frame.
type ResponseHeader struct {
	Name string
	Size int64
}

// Failed reports whether the response is a failure frame.
func (h ResponseHeader) Failed() bool {
	return h.Size == 0
}

// WriteSuccess writes a success frame: the output name, its size, and exactly
// size bytes copied from body using buf.
// Returns the number of body bytes written.
func WriteSuccess(w io.Writer, name string, size int64, body io.Reader, buf []byte) (int64, error) {
	switch {
	case name == "" || len(name) > MaxNameLen:
		return 0, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("output name length %d outside [1, %d]", len(name), MaxNameLen),
		}
	case size <= 0 || size > MaxOutputSize:
		return 0, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("output size %d outside [1, %d]", size, int64(MaxOutputSize)),
		}
	}

	prefix := make([]byte, 0, 2*LengthPrefixSize+len(name))
	prefix = binary.BigEndian.AppendUint32(prefix, uint32(len(name)))
	prefix = append(prefix, name...)
	prefix = binary.BigEndian.AppendUint32(prefix, uint32(size))
	if _, err := w.Write(prefix); err != nil {
		return 0, fmt.Errorf("failed to write response header: %w", err)
	}

	n, err := io.CopyBuffer(w, io.LimitReader(body, size), buf)
	if err != nil {
		return n, fmt.Errorf("failed to write output: %w", err)
	}
	if n != size {
		return n, fmt.Errorf("output truncated at %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF)
	}
	return n, nil
}

// WriteFailure writes a failure frame carrying env.
func WriteFailure(w io.Writer, env types.ErrorEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode error envelope: %w", err)
	}
	frame := make([]byte, 2*LengthPrefixSize, 2*LengthPrefixSize+len(body))
	frame = append(frame, body...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write failure response: %w", err)
	}
	return nil
}

// ReadResponseHeader reads the name and size prefix of a response.
// A failure frame yields an empty name and zero size.
func ReadResponseHeader(r io.Reader) (ResponseHeader, error) {
	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return ResponseHeader{}, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read name length", Err: err}
	}
	nameLen := binary.BigEndian.Uint32(prefix[:])
	if nameLen > MaxNameLen {
		return ResponseHeader{}, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("output name length %d exceeds %d", nameLen, MaxNameLen),
		}
	}

	name, err := ReadSection(r, int(nameLen), "output name")
	if err != nil {
		return ResponseHeader{}, err
	}

	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return ResponseHeader{}, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read output size", Err: err}
	}

	return ResponseHeader{
		Name: string(name),
		Size: int64(binary.BigEndian.Uint32(prefix[:])),
	}, nil
}

// ReadErrorEnvelope reads the JSON envelope that follows a failure header.
// The envelope runs to the end of the stream.
func ReadErrorEnvelope(r io.Reader) (*types.ErrorEnvelope, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxEnvelopeSize+1))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read error envelope", Err: err}
	}
	if len(data) > MaxEnvelopeSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("error envelope exceeds %d bytes", MaxEnvelopeSize),
		}
	}
	var env types.ErrorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "error envelope is not valid JSON", Err: err}
	}
	return &env, nil
}
