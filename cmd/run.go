package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Siddhant-K-code/cabinets/pkg/collective/localmem"
	"github.com/Siddhant-K-code/cabinets/pkg/engine"
	"github.com/Siddhant-K-code/cabinets/pkg/export"
	"github.com/Siddhant-K-code/cabinets/pkg/ioadapter"
	"github.com/Siddhant-K-code/cabinets/pkg/metrics"
	"github.com/Siddhant-K-code/cabinets/pkg/partition"
	"github.com/Siddhant-K-code/cabinets/pkg/shard"
	"github.com/Siddhant-K-code/cabinets/pkg/telemetry"
	"github.com/Siddhant-K-code/cabinets/pkg/types"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cluster a document corpus with in-process workers",
	Long: `Reads a document corpus from a whitespace-delimited input file, partitions
it across W in-process workers, and runs the six-step iteration contract
(merge, fold, broadcast, distance refresh, reassign, convergence probe)
to a fixed point.

Example:
  cabinets run --file corpus.txt --output assignments.txt --workers 4

Environment Variables:
  PINECONE_API_KEY    For the pinecone export backend
  (the qdrant export backend takes its host from --export-host; QDRANT_URL is not read)`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("file", "f", "", "path to the input corpus file (required)")
	_ = runCmd.MarkFlagRequired("file")
	runCmd.Flags().StringP("output", "o", "", "path to write final assignments (default: stdout)")
	runCmd.Flags().IntP("cabinets", "c", 0, "number of cabinets (0 = use the input file's default)")
	runCmd.Flags().IntP("workers", "w", 1, "number of in-process workers")
	runCmd.Flags().Int("max-iterations", 0, "cap on iterations (0 = no cap)")
	runCmd.Flags().Bool("progress", true, "show a progress bar during dispatch/gather")
	runCmd.Flags().Bool("tracing", false, "enable OpenTelemetry tracing")

	runCmd.Flags().String("export-backend", "", "centroid export sink: pinecone, qdrant, or empty to skip")
	runCmd.Flags().String("export-index", "", "export index/collection name")
	runCmd.Flags().String("export-host", "", "export host (qdrant)")
	runCmd.Flags().String("export-namespace", "", "export namespace (pinecone)")

	_ = viper.BindPFlag("run.cabinets", runCmd.Flags().Lookup("cabinets"))
	_ = viper.BindPFlag("run.workers", runCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("run.max_iterations", runCmd.Flags().Lookup("max-iterations"))
	_ = viper.BindPFlag("export.backend", runCmd.Flags().Lookup("export-backend"))
	_ = viper.BindPFlag("export.index", runCmd.Flags().Lookup("export-index"))
	_ = viper.BindPFlag("export.host", runCmd.Flags().Lookup("export-host"))
	_ = viper.BindPFlag("export.namespace", runCmd.Flags().Lookup("export-namespace"))
}

func runRun(cmd *cobra.Command, args []string) error {
	filePath, _ := cmd.Flags().GetString("file")
	outputPath, _ := cmd.Flags().GetString("output")
	cabinetsOverride := viper.GetInt("run.cabinets")
	workers := viper.GetInt("run.workers")
	maxIterations := viper.GetInt("run.max_iterations")
	showProgress, _ := cmd.Flags().GetBool("progress")
	tracingEnabled, _ := cmd.Flags().GetBool("tracing")

	exportBackend := viper.GetString("export.backend")
	exportIndex := viper.GetString("export.index")
	exportHost := viper.GetString("export.host")
	exportNamespace := viper.GetString("export.namespace")

	if workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling run...")
		cancel()
	}()

	in, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer in.Close()

	header, err := peekHeader(in)
	if err != nil {
		return err
	}

	cabinets := header.DefaultCabinets
	if cabinetsOverride > 0 {
		cabinets = cabinetsOverride
	}
	if cabinets == 0 || header.Subjects == 0 || workers > header.Documents {
		return fmt.Errorf("invalid configuration: cabinets=%d subjects=%d workers=%d documents=%d",
			cabinets, header.Subjects, workers, header.Documents)
	}

	if _, err := in.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind input file: %w", err)
	}
	_, docs, err := ioadapter.ReadAll(in, cabinets)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	plan := partition.New(len(docs), workers)

	var tracer *telemetry.Provider
	if tracingEnabled {
		tracer, err = telemetry.Init(ctx, telemetry.DefaultConfig())
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() { _ = tracer.Shutdown(ctx) }()
	}
	m := metrics.New()

	hub := localmem.NewHub(workers)

	var dispatchBar, gatherBar *progressbar.ProgressBar
	if showProgress {
		dispatchBar = ioadapter.NewProgressBar(len(docs), "Dispatching")
		gatherBar = ioadapter.NewProgressBar(len(docs), "Gathering")
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	runs := make([]*engine.Run, workers)
	var mu sync.Mutex
	var runErr error
	var stats *types.RunStats
	var wg sync.WaitGroup

	for rank := 0; rank < workers; rank++ {
		backend := hub.Backend(rank)
		wg.Add(1)
		go func(rank int, backend *localmem.Backend) {
			defer wg.Done()

			var owned []types.Document
			var err error
			if rank == 0 {
				owned, err = ioadapter.Dispatch(ctx, backend, docs, plan, dispatchBar)
			} else {
				owned, err = ioadapter.Receive(ctx, backend, header.Subjects, cabinets)
			}
			if err != nil {
				mu.Lock()
				runErr = err
				mu.Unlock()
				return
			}

			sh := shard.New(owned, cabinets)
			r := engine.New(backend, sh, cabinets, header.Subjects)
			r.Metrics = m
			r.Tracer = tracer
			r.RunID = filePath
			runs[rank] = r

			rs, err := r.RunToConvergence(ctx, maxIterations)
			if err != nil {
				mu.Lock()
				runErr = err
				mu.Unlock()
				return
			}
			if rank == 0 {
				rs.Documents = len(docs)
				mu.Lock()
				stats = rs
				mu.Unlock()
			}

			if err := ioadapter.Gather(ctx, backend, r.Shard.Assignments(), out, gatherBar); err != nil {
				mu.Lock()
				runErr = fmt.Errorf("gather assignments: %w", err)
				mu.Unlock()
			}
		}(rank, backend)
	}
	wg.Wait()

	if runErr != nil {
		return runErr
	}

	if exportBackend != "" {
		if err := exportCentroids(ctx, exportBackend, exportIndex, exportHost, exportNamespace, runs[0]); err != nil {
			return fmt.Errorf("export centroids: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "\nConverged in %d iterations, objective %.6f\n", stats.Iterations, stats.FinalObjective())
	return nil
}

// peekHeader reads just the header line without consuming the rest
// of the file, so the caller can decide the cabinet count before the
// full parse.
func peekHeader(f *os.File) (ioadapter.Header, error) {
	var headerLine string
	buf := make([]byte, 0, 256)
	tmp := make([]byte, 1)
	for {
		n, err := f.Read(tmp)
		if n > 0 {
			if tmp[0] == '\n' {
				break
			}
			buf = append(buf, tmp[0])
		}
		if err != nil {
			break
		}
	}
	headerLine = string(buf)
	return ioadapter.ParseHeader(headerLine)
}

func exportCentroids(ctx context.Context, backend, index, host, namespace string, r *engine.Run) error {
	centroids := export.FromReplica(r.CentroidReplica(), r.Cabinets, r.Subjects)

	var sink export.Sink
	var err error
	switch backend {
	case "pinecone":
		cfg := export.DefaultPineconeConfig()
		cfg.APIKey = os.Getenv("PINECONE_API_KEY")
		cfg.IndexName = index
		cfg.Namespace = namespace
		sink, err = export.NewPineconeSink(ctx, cfg)
	case "qdrant":
		sink, err = export.NewQdrantSink(ctx, export.QdrantConfig{
			Host:       host,
			Collection: index,
		})
	default:
		return fmt.Errorf("unsupported export backend: %s", backend)
	}
	if err != nil {
		return err
	}
	defer sink.Close()

	return sink.UpsertCentroids(ctx, centroids)
}
