// Package protocol implements the reel wire format.
//
// A request is an 8-byte header followed by three length-delimited sections:
//
//	[2B descriptorLen][1B mediaTypeLen][5B payloadLen]
//	[descriptorLen bytes: UTF-8 JSON job descriptor]
//	[mediaTypeLen bytes: UTF-8 media type tag]
//	[payloadLen bytes: file content]
//
// A response is either a success frame
//
//	[4B nameLen][name][4B size][size bytes]
//
// or a failure frame
//
//	[4B 0][4B 0][UTF-8 JSON error envelope]
//
// All integers are big-endian. A zero output size is the only marker that
// distinguishes failure from success.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Size limits of the wire format.
const (
	// HeaderSize is the fixed request header size in bytes.
	HeaderSize = 8
	// MaxDescriptorLen is the largest descriptor section (2-byte length).
	MaxDescriptorLen = 1<<16 - 1
	// MaxMediaTypeLen is the largest media type section (1-byte length).
	MaxMediaTypeLen = 1<<8 - 1
	// MaxPayloadLen is the largest payload (5-byte length).
	MaxPayloadLen = 1<<40 - 1
	// LengthPrefixSize is the size of response length prefixes.
	LengthPrefixSize = 4
	// MaxOutputSize is the largest output a success frame can carry.
	MaxOutputSize = 1<<32 - 1
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates the stream ended inside a frame section.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a length outside the wire limits.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a section that is not valid UTF-8 or JSON.
	FrameErrorDecode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	default:
		return fmt.Sprintf("FrameErrorKind(%d)", int(k))
	}
}

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError reports whether err is a *FrameError of the given kind.
func IsFrameError(err error, kind FrameErrorKind) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind == kind
	}
	return false
}

// Header is the fixed-size request header.
type Header struct {
	DescriptorLen int
	MediaTypeLen  int
	PayloadLen    int64
}

// EncodeHeader packs the three section lengths into an 8-byte header.
func EncodeHeader(descriptorLen, mediaTypeLen int, payloadLen int64) ([HeaderSize]byte, error) {
	var buf [HeaderSize]byte

	switch {
	case descriptorLen < 0 || descriptorLen > MaxDescriptorLen:
		return buf, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("descriptor length %d outside [0, %d]", descriptorLen, MaxDescriptorLen),
		}
	case mediaTypeLen < 0 || mediaTypeLen > MaxMediaTypeLen:
		return buf, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("media type length %d outside [0, %d]", mediaTypeLen, MaxMediaTypeLen),
		}
	case payloadLen < 0 || payloadLen > MaxPayloadLen:
		return buf, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload length %d outside [0, %d]", payloadLen, int64(MaxPayloadLen)),
		}
	}

	binary.BigEndian.PutUint16(buf[0:2], uint16(descriptorLen))
	buf[2] = byte(mediaTypeLen)
	// 5-byte big-endian payload length: write 8 bytes and keep the low 5.
	var wide [8]byte
	binary.BigEndian.PutUint64(wide[:], uint64(payloadLen))
	copy(buf[3:8], wide[3:8])

	return buf, nil
}

// Encode packs h. See EncodeHeader.
func (h Header) Encode() ([HeaderSize]byte, error) {
	return EncodeHeader(h.DescriptorLen, h.MediaTypeLen, h.PayloadLen)
}

// DecodeHeader unpacks an 8-byte header.
// Fewer than 8 bytes is a FrameErrorPartial.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  fmt.Sprintf("header is %d bytes, want %d", len(b), HeaderSize),
		}
	}

	var wide [8]byte
	copy(wide[3:8], b[3:8])

	return Header{
		DescriptorLen: int(binary.BigEndian.Uint16(b[0:2])),
		MediaTypeLen:  int(b[2]),
		PayloadLen:    int64(binary.BigEndian.Uint64(wide[:])),
	}, nil
}

// ReadHeader reads exactly one header from r.
//
// Errors:
//   - *FrameError with Kind=FrameErrorPartial if the stream ends first.
//     The cause is io.EOF when no byte was read at all.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read header",
			Err:  err,
		}
	}
	return DecodeHeader(buf[:])
}

// ReadSection reads exactly n bytes of a variable-length section.
func ReadSection(r io.Reader, n int, name string) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  fmt.Sprintf("failed to read %s", name),
			Err:  err,
		}
	}
	return buf, nil
}
