package trace

import (
	"io"
	"os"
	"path/filepath"
)

// DefaultTraceNames are the benchmark traces looked up when no trace is named.
var DefaultTraceNames = []string{
	"gcc.trace",
	"gzip.trace",
	"mcf.trace",
	"swim.trace",
	"twolf.trace",
}

// An Opener turns a trace name into a readable stream.
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}

// FileOpener opens traces from the file system. Relative names are resolved
// against Dir.
type FileOpener struct {
	Dir string
}

// Open opens the named trace file.
func (o FileOpener) Open(name string) (io.ReadCloser, error) {
	path := name
	if o.Dir != "" && !filepath.IsAbs(name) {
		path = filepath.Join(o.Dir, name)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &TraceUnavailableError{Name: name, Err: err}
	}

	return f, nil
}
