// Command cachesim replays memory-access traces against a set-associative
// LRU cache and reports the hit and miss statistics of every trace.
package main

import "github.com/sarchlab/cachesim/cachesim/cmd"

func main() {
	cmd.Execute()
}
