// Package client sends one media job to a reel server and receives the
// transformed file.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pithecene-io/reel/iox"
	"github.com/pithecene-io/reel/protocol"
	"github.com/pithecene-io/reel/types"
)

// DefaultDialTimeout bounds connection setup.
const DefaultDialTimeout = 10 * time.Second

// DefaultChunkSize is the buffer size for payload and output streaming.
const DefaultChunkSize = 64 * 1024

// Job is one request.
type Job struct {
	Descriptor types.JobDescriptor
	// MediaType is sent as the media type tag. Empty lets the server fall
	// back to the filename extension.
	MediaType string
	// Payload supplies exactly Size bytes.
	Payload io.Reader
	Size    int64
}

// Result describes a successful response.
type Result struct {
	Name string
	Size int64
}

// RemoteError is an error envelope returned by the server.
type RemoteError struct {
	Envelope types.ErrorEnvelope
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Envelope.Code, e.Envelope.Description)
}

// IsRemote reports whether err carries a server error envelope.
func IsRemote(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote)
}

// Client dials a reel server.
type Client struct {
	Address     string
	DialTimeout time.Duration
	ChunkSize   int
}

// New creates a client for address.
func New(address string) *Client {
	return &Client{
		Address:     address,
		DialTimeout: DefaultDialTimeout,
		ChunkSize:   DefaultChunkSize,
	}
}

// Send dials the server, runs job and writes the output body to out.
func (c *Client) Send(ctx context.Context, job *Job, out io.Writer) (*Result, error) {
	dialer := net.Dialer{Timeout: c.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.Address, err)
	}
	defer iox.DiscardClose(conn)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	return Do(conn, job, out, c.ChunkSize)
}

// Do runs job over an established connection. The payload is streamed while
// the response is read, so an early error envelope is seen without waiting
// for the upload to finish. The caller closes conn.
func Do(conn net.Conn, job *Job, out io.Writer, chunkSize int) (*Result, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	prefix, err := encodeRequest(job)
	if err != nil {
		return nil, err
	}

	sent := make(chan error, 1)
	go func() {
		sent <- upload(conn, prefix, job, chunkSize)
	}()

	br := bufio.NewReaderSize(conn, chunkSize)
	hdr, err := protocol.ReadResponseHeader(br)
	if err != nil {
		if upErr := <-sent; upErr != nil {
			return nil, upErr
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if hdr.Failed() {
		env, envErr := protocol.ReadErrorEnvelope(br)
		if envErr != nil {
			return nil, fmt.Errorf("failed to read error envelope: %w", envErr)
		}
		return nil, &RemoteError{Envelope: *env}
	}

	n, err := io.CopyBuffer(out, io.LimitReader(br, hdr.Size), make([]byte, chunkSize))
	if err != nil {
		return nil, fmt.Errorf("failed to receive output: %w", err)
	}
	if n != hdr.Size {
		return nil, fmt.Errorf("output truncated at %d of %d bytes: %w", n, hdr.Size, io.ErrUnexpectedEOF)
	}
	if err := <-sent; err != nil {
		return nil, err
	}
	return &Result{Name: hdr.Name, Size: n}, nil
}

func encodeRequest(job *Job) ([]byte, error) {
	desc, err := protocol.EncodeDescriptor(&job.Descriptor)
	if err != nil {
		return nil, err
	}
	hdr, err := protocol.EncodeHeader(len(desc), len(job.MediaType), job.Size)
	if err != nil {
		return nil, err
	}
	prefix := make([]byte, 0, protocol.HeaderSize+len(desc)+len(job.MediaType))
	prefix = append(prefix, hdr[:]...)
	prefix = append(prefix, desc...)
	prefix = append(prefix, job.MediaType...)
	return prefix, nil
}

func upload(w io.Writer, prefix []byte, job *Job, chunkSize int) error {
	if _, err := w.Write(prefix); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if job.Size == 0 {
		return nil
	}
	n, err := io.CopyBuffer(w, io.LimitReader(job.Payload, job.Size), make([]byte, chunkSize))
	if err != nil {
		return fmt.Errorf("failed to send payload: %w", err)
	}
	if n != job.Size {
		return fmt.Errorf("payload ended at %d of %d bytes: %w", n, job.Size, io.ErrUnexpectedEOF)
	}
	return nil
}

// FileJob describes a job built from a local file.
type FileJob struct {
	Path      string
	Operation types.Operation
	Options   map[string]string
	// MediaType defaults to the file extension.
	MediaType string
}

// SendFile uploads a local file and stores the output in outDir.
// Returns the path of the stored output.
func (c *Client) SendFile(ctx context.Context, fj FileJob, outDir string) (string, error) {
	in, err := os.Open(fj.Path)
	if err != nil {
		return "", err
	}
	defer iox.DiscardClose(in)

	info, err := in.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", fj.Path)
	}

	filename := filepath.Base(fj.Path)
	media := fj.MediaType
	if media == "" {
		media = strings.TrimPrefix(filepath.Ext(filename), ".")
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(outDir, ".reel-download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	res, sendErr := c.Send(ctx, &Job{
		Descriptor: types.JobDescriptor{
			Filename:  filename,
			Operation: fj.Operation,
			Options:   fj.Options,
		},
		MediaType: media,
		Payload:   in,
		Size:      info.Size(),
	}, tmp)
	closeErr := tmp.Close()
	if sendErr != nil {
		return "", sendErr
	}
	if closeErr != nil {
		return "", fmt.Errorf("failed to write download: %w", closeErr)
	}

	name, err := localName(res.Name)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(outDir, name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("failed to store download: %w", err)
	}
	return dst, nil
}

// localName rejects server-supplied names that would escape the output dir.
func localName(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) {
		return "", fmt.Errorf("server returned unusable output name %q", name)
	}
	return name, nil
}
