package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/report"
	"github.com/sarchlab/cachesim/simulation"
	"github.com/sarchlab/cachesim/trace"
	"github.com/sarchlab/cachesim/tracing"
)

func newRunCmd() *cobra.Command {
	cfg := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run [trace...]",
		Short: "Replay traces and report hit and miss statistics.",
		Long: "`run` replays every named trace against a fresh cache. " +
			"Without arguments the gcc, gzip, mcf, swim and twolf traces " +
			"in the trace directory are used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.prompt {
				err := cfg.promptGeometry(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}

			if len(args) == 0 {
				args = trace.DefaultTraceNames
			}

			return runSimulation(cfg, args, cmd.OutOrStdout())
		},
	}

	cfg.bindFlags(cmd)

	return cmd
}

type closer interface {
	Close() error
}

func runSimulation(cfg *runConfig, traceNames []string, out io.Writer) error {
	err := cfg.validate()
	if err != nil {
		return err
	}

	s, err := simulation.MakeBuilder().
		WithWays(cfg.ways).
		WithCacheSizeKB(cfg.cacheSizeKB).
		WithBlockSize(cfg.blockSize).
		WithOpener(trace.FileOpener{Dir: cfg.traceDir}).
		WithFormat(trace.Format{
			AddressOffset: cfg.addressOffset,
			AddressWidth:  cfg.addressWidth,
		}).
		WithParallelism(cfg.parallelism).
		Build()
	if err != nil {
		return err
	}

	log.Printf("Run %s: %d traces on a %s cache",
		s.ID(), len(traceNames), s.Geometry())

	closers, err := attachRecorders(cfg, s)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Printf("closing recorder: %v", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	if cfg.monitor {
		stop, err := startMonitor(cfg, s, len(traceNames))
		if err != nil {
			return err
		}
		defer stop()
	}

	results := s.Run(traceNames)

	for _, r := range results {
		if r.Skipped() {
			log.Printf("Skipped %s: %v", r.Trace, r.Err)
		}
	}

	return report.NewWriter(out).WriteAll(results)
}

func attachRecorders(
	cfg *runConfig,
	s *simulation.Simulation,
) ([]closer, error) {
	var closers []closer

	if cfg.recordPath != "" {
		recorder, err := datarecording.New(cfg.recordPath)
		if err != nil {
			return closers, fmt.Errorf("creating recorder: %w", err)
		}
		closers = append(closers, recorder)

		s.AcceptResultHandler(
			tracing.NewDBResultRecorder(s, recorder).Record)

		if cfg.recordAccesses {
			s.AcceptHook(tracing.NewDBAccessTracer(s.ID(), recorder))
		}
	}

	if cfg.accessCSVPath != "" {
		csvTracer := tracing.NewCSVAccessTracer(cfg.accessCSVPath)
		err := csvTracer.Init()
		if err != nil {
			return closers, fmt.Errorf("creating access csv: %w", err)
		}
		closers = append(closers, csvTracer)

		s.AcceptHook(csvTracer)
	}

	return closers, nil
}

func startMonitor(
	cfg *runConfig,
	s *simulation.Simulation,
	numTraces int,
) (stop func(), err error) {
	m := monitoring.NewMonitor()
	if cfg.monitorPort != 0 {
		m.WithPortNumber(cfg.monitorPort)
	}
	m.RegisterSimulation(s)

	bar := m.TrackTraces(s, numTraces)
	s.AcceptResultHandler(m.RecordResult)

	url, err := m.StartServer()
	if err != nil {
		return nil, fmt.Errorf("starting monitor: %w", err)
	}

	if cfg.openBrowser {
		err := browser.OpenURL(url + "/api/progress")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return func() {
		m.CompleteProgressBar(bar)
		m.StopServer()
	}, nil
}
