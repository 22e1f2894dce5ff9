// Package payload acquires the job payload to submit.
//
// A Source yields the exact bytes to enqueue. The payload is read fully into
// memory and never inspected; schema validation belongs to the workers.
package payload

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrPayloadRead reports a payload that could not be read.
var ErrPayloadRead = errors.New("payload read failed")

// StdinPath selects standard input in FromPath.
const StdinPath = "-"

// Source yields a job payload.
type Source interface {
	Read() ([]byte, error)
}

// Inline is a payload given directly on the command line.
type Inline string

func (s Inline) Read() ([]byte, error) {
	return []byte(s), nil
}

// File reads the payload from a file path.
type File string

func (f File) Read() ([]byte, error) {
	if f == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrPayloadRead)
	}
	b, err := os.ReadFile(string(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadRead, err)
	}
	return b, nil
}

// Reader reads the payload from an io.Reader until EOF.
type Reader struct {
	name string
	r    io.Reader
}

// NewReader returns a Source reading r. name only appears in errors.
func NewReader(name string, r io.Reader) *Reader {
	return &Reader{name: name, r: r}
}

func (r *Reader) Read() ([]byte, error) {
	b, err := io.ReadAll(r.r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPayloadRead, r.name, err)
	}
	return b, nil
}

// FromPath returns a Source for path, reading stdin for StdinPath.
func FromPath(path string, stdin io.Reader) Source {
	if path == StdinPath {
		return NewReader("stdin", stdin)
	}
	return File(path)
}
