// Package cmd provides the command-line interface of cachesim.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "cachesim simulates a set-associative LRU cache over memory traces.",
	Long: `cachesim replays memory-access traces against a set-associative ` +
		`cache with LRU replacement and reports hits, misses and rates ` +
		`for every trace.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Exiting goes through atexit so recorders are flushed.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Ignoring .env file: %v\n", err)
	}

	rootCmd.AddCommand(newRunCmd())
}
