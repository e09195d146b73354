package tracing

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/simulation"
)

// CSVAccessTracer is a hook that writes every access into a CSV file.
type CSVAccessTracer struct {
	lock sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer

	closed bool
}

// NewCSVAccessTracer creates a tracer writing to path + ".csv". An empty path
// picks a unique name.
func NewCSVAccessTracer(path string) *CSVAccessTracer {
	return &CSVAccessTracer{path: path}
}

// Path returns the file name once the tracer is initialized.
func (t *CSVAccessTracer) Path() string {
	return t.path + ".csv"
}

// Init creates the csv file. It fails if the file already exists. The file is
// flushed and closed at exit.
func (t *CSVAccessTracer) Init() error {
	if t.path == "" {
		t.path = "cachesim_access_" + xid.New().String()
	}

	filename := t.Path()
	_, err := os.Stat(filename)
	if err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	t.file = file
	t.w = bufio.NewWriter(file)

	fmt.Fprintf(t.w, "Trace, Seq, Address, Tag, Set, Offset, Hit, Way, Evicted\n")

	atexit.Register(func() {
		err := t.Close()
		if err != nil {
			panic(err)
		}
	})

	return nil
}

// Func writes access events and ignores the rest.
func (t *CSVAccessTracer) Func(ctx simulation.HookCtx) {
	if ctx.Pos != simulation.HookPosAccess {
		return
	}

	info := ctx.Item.(simulation.AccessInfo)

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.closed {
		return
	}

	fmt.Fprintf(t.w, "%s, %d, 0x%08x, 0x%x, %d, %d, %t, %d, %t\n",
		info.Trace,
		info.Seq,
		info.Address,
		info.Fields.Tag,
		info.Fields.Index,
		info.Fields.Offset,
		info.Hit,
		info.Way,
		!info.Hit && info.Eviction.Evicted(),
	)
}

// Close flushes the buffered rows and closes the file. Closing twice is a
// no-op.
func (t *CSVAccessTracer) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.closed || t.file == nil {
		return nil
	}

	t.closed = true

	err := t.w.Flush()
	if err != nil {
		t.file.Close()
		return err
	}

	return t.file.Close()
}
