package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// Environment variables that override the flag defaults. They can also be
// set in a .env file.
const (
	envWays        = "CACHESIM_WAYS"
	envCacheSizeKB = "CACHESIM_CACHE_SIZE_KB"
	envBlockSize   = "CACHESIM_BLOCK_SIZE"
	envTraceDir    = "CACHESIM_TRACE_DIR"
)

type runConfig struct {
	ways        int
	cacheSizeKB int
	blockSize   int
	prompt      bool

	traceDir      string
	addressOffset int
	addressWidth  int
	parallelism   int

	recordPath     string
	recordAccesses bool
	accessCSVPath  string

	monitor     bool
	monitorPort int
	openBrowser bool
}

func (c *runConfig) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.IntVarP(&c.ways, "ways", "w", envInt(envWays, 1),
		"Number of ways per set")
	f.IntVarP(&c.cacheSizeKB, "cache-size", "s", envInt(envCacheSizeKB, 1),
		"Cache size in kilobytes")
	f.IntVarP(&c.blockSize, "block-size", "b", envInt(envBlockSize, 64),
		"Block size in bytes")
	f.BoolVar(&c.prompt, "prompt", false,
		"Ask for the cache geometry on standard input")

	f.StringVar(&c.traceDir, "trace-dir", envString(envTraceDir, "traces"),
		"Directory that relative trace names are resolved against")
	f.IntVar(&c.addressOffset, "address-offset", 4,
		"Character offset of the address in every record")
	f.IntVar(&c.addressWidth, "address-width", 8,
		"Number of hex digits of the address in every record")
	f.IntVarP(&c.parallelism, "parallel", "j", 1,
		"Number of traces replayed at the same time, 0 for one per CPU")

	f.StringVar(&c.recordPath, "record", "",
		"Record the results into the SQLite database <path>.sqlite3")
	f.BoolVar(&c.recordAccesses, "record-accesses", false,
		"With --record, also store every access")
	f.StringVar(&c.accessCSVPath, "access-csv", "",
		"Write every access into the CSV file <path>.csv")

	f.BoolVar(&c.monitor, "monitor", false,
		"Serve the progress of the simulation over HTTP")
	f.IntVar(&c.monitorPort, "monitor-port", 0,
		"Port of the monitoring server, random if unset")
	f.BoolVar(&c.openBrowser, "open-browser", false,
		"With --monitor, open the monitoring page in a browser")
}

func (c *runConfig) validate() error {
	if c.recordAccesses && c.recordPath == "" {
		return fmt.Errorf("--record-accesses requires --record")
	}

	if c.openBrowser && !c.monitor {
		return fmt.Errorf("--open-browser requires --monitor")
	}

	if c.addressOffset < 0 || c.addressWidth <= 0 || c.addressWidth > 8 {
		return fmt.Errorf("invalid address field: offset %d, width %d",
			c.addressOffset, c.addressWidth)
	}

	return nil
}

// promptGeometry asks for the three geometry values the way the interactive
// simulator always did.
func (c *runConfig) promptGeometry(in io.Reader, out io.Writer) error {
	questions := []struct {
		text  string
		value *int
	}{
		{"Enter the number of ways: ", &c.ways},
		{"Enter the cache size in kilobytes: ", &c.cacheSizeKB},
		{"Enter the block size in bytes: ", &c.blockSize},
	}

	for _, q := range questions {
		fmt.Fprint(out, q.text)

		_, err := fmt.Fscan(in, q.value)
		if err != nil {
			return fmt.Errorf("reading geometry: %w", err)
		}
	}

	return nil
}

func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring %s=%q: not an integer\n", name, v)
		return def
	}

	return n
}

func envString(name, def string) string {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}

	return v
}
