package transfer

import (
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the chunk size used when none is configured (32KB)
const DefaultChunkSize = 32 * 1024

// UnknownTotal is passed as the total when the payload length is not known
const UnknownTotal int64 = -1

// ProgressFunc is called after each chunk with the cumulative number of bytes
// written and the total expected size (UnknownTotal if not known)
type ProgressFunc func(transferred, total int64)

// Op identifies which side of a transfer failed
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// Error is returned when the source or destination fails mid-transfer.
// Destination data written before the failure is left in place.
type Error struct {
	Op          Op
	Transferred int64
	Err         error
}

// Error returns the error message
func (e *Error) Error() string {
	return fmt.Sprintf("transfer %s failed after %d bytes: %v", e.Op, e.Transferred, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

var errInvalidWrite = errors.New("invalid write result")

// Executor copies a byte stream in bounded-size chunks
type Executor struct {
	chunkSize int
}

// New creates an Executor. A non-positive chunk size selects DefaultChunkSize.
func New(chunkSize int) *Executor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Executor{chunkSize: chunkSize}
}

// ChunkSize returns the configured chunk size in bytes
func (e *Executor) ChunkSize() int {
	return e.chunkSize
}

// Copy moves src into dst chunk by chunk, calling progress after every chunk
// is written. It returns the number of bytes written to dst.
func (e *Executor) Copy(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, e.chunkSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			if wn < 0 || wn > n {
				wn = 0
				if writeErr == nil {
					writeErr = errInvalidWrite
				}
			}
			written += int64(wn)

			if writeErr == nil && wn != n {
				writeErr = io.ErrShortWrite
			}
			if writeErr != nil {
				return written, &Error{Op: OpWrite, Transferred: written, Err: writeErr}
			}

			if progress != nil {
				progress(written, total)
			}
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, &Error{Op: OpRead, Transferred: written, Err: readErr}
		}
	}
}

// Copy runs a transfer with the default chunk size
func Copy(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	return New(DefaultChunkSize).Copy(dst, src, total, progress)
}
