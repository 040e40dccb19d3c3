package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Siddhant-K-code/cabinets/pkg/collective/grpcc"
	"github.com/Siddhant-K-code/cabinets/pkg/engine"
	"github.com/Siddhant-K-code/cabinets/pkg/ioadapter"
	"github.com/Siddhant-K-code/cabinets/pkg/metrics"
	"github.com/Siddhant-K-code/cabinets/pkg/partition"
	"github.com/Siddhant-K-code/cabinets/pkg/shard"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var coordinateCmd = &cobra.Command{
	Use:   "coordinate",
	Short: "Host a multi-process clustering run over the grpcc backend",
	Long: `Starts a gRPC listener acting as rank 0 of a distributed run, reads
the input corpus, dispatches one block per rank, and drives the
six-step iteration contract alongside the workers that dial in via
"cabinets worker". Blocks until every worker's final assignments have
been gathered, then writes the combined result.

Example:
  cabinets coordinate --file corpus.txt --listen :7000 --size 4 --output assignments.txt

Workers then join with:
  cabinets worker --coordinator <host>:7000 --rank 1 --world 4 --cabinets 8 --subjects 128`,
	RunE: runCoordinate,
}

func init() {
	rootCmd.AddCommand(coordinateCmd)

	coordinateCmd.Flags().StringP("file", "f", "", "path to the input corpus file (required)")
	_ = coordinateCmd.MarkFlagRequired("file")
	coordinateCmd.Flags().StringP("output", "o", "", "path to write final assignments (default: stdout)")
	coordinateCmd.Flags().String("listen", ":7000", "address to listen on for worker connections")
	coordinateCmd.Flags().IntP("cabinets", "c", 0, "number of cabinets (0 = use the input file's default)")
	coordinateCmd.Flags().IntP("size", "s", 1, "total number of ranks, coordinator included")
	coordinateCmd.Flags().Int("max-iterations", 0, "cap on iterations (0 = no cap)")
	coordinateCmd.Flags().Bool("progress", true, "show a progress bar during dispatch/gather")

	coordinateCmd.Flags().String("export-backend", "", "centroid export sink: pinecone, qdrant, or empty to skip")
	coordinateCmd.Flags().String("export-index", "", "export index/collection name")
	coordinateCmd.Flags().String("export-host", "", "export host (qdrant)")
	coordinateCmd.Flags().String("export-namespace", "", "export namespace (pinecone)")
}

func runCoordinate(cmd *cobra.Command, args []string) error {
	filePath, _ := cmd.Flags().GetString("file")
	outputPath, _ := cmd.Flags().GetString("output")
	listenAddr, _ := cmd.Flags().GetString("listen")
	cabinetsOverride, _ := cmd.Flags().GetInt("cabinets")
	size, _ := cmd.Flags().GetInt("size")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	showProgress, _ := cmd.Flags().GetBool("progress")

	exportBackend, _ := cmd.Flags().GetString("export-backend")
	exportIndex, _ := cmd.Flags().GetString("export-index")
	exportHost, _ := cmd.Flags().GetString("export-host")
	exportNamespace, _ := cmd.Flags().GetString("export-namespace")

	if size < 1 {
		return fmt.Errorf("size must be at least 1")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling coordinator...")
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
	if cabinets == 0 || header.Subjects == 0 || size > header.Documents {
		return fmt.Errorf("invalid configuration: cabinets=%d subjects=%d size=%d documents=%d",
			cabinets, header.Subjects, size, header.Documents)
	}

	if _, err := in.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind input file: %w", err)
	}
	_, docs, err := ioadapter.ReadAll(in, cabinets)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	plan := partition.New(len(docs), size)

	coord := grpcc.NewCoordinator(size)
	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- grpcc.Serve(ctx, listenAddr, coord) }()

	fmt.Fprintf(os.Stderr, "Coordinator listening on %s, waiting for %d worker(s)...\n", listenAddr, size-1)

	backend := grpcc.NewRootBackend(coord, size)
	m := metrics.New()

	var dispatchBar, gatherBar *progressbar.ProgressBar
	if showProgress {
		dispatchBar = ioadapter.NewProgressBar(len(docs), "Dispatching")
		gatherBar = ioadapter.NewProgressBar(len(docs), "Gathering")
	}

	owned, err := ioadapter.Dispatch(ctx, backend, docs, plan, dispatchBar)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	sh := shard.New(owned, cabinets)
	r := engine.New(backend, sh, cabinets, header.Subjects)
	r.Metrics = m
	r.RunID = filePath

	stats, err := r.RunToConvergence(ctx, maxIterations)
	if err != nil {
		return fmt.Errorf("run to convergence: %w", err)
	}
	stats.Documents = len(docs)

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := ioadapter.Gather(ctx, backend, sh.Assignments(), out, gatherBar); err != nil {
		return fmt.Errorf("gather assignments: %w", err)
	}

	if exportBackend != "" {
		if err := exportCentroids(ctx, exportBackend, exportIndex, exportHost, exportNamespace, r); err != nil {
			return fmt.Errorf("export centroids: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "\nConverged in %d iterations, objective %.6f\n", stats.Iterations, stats.FinalObjective())

	cancel()
	select {
	case err := <-serveErrCh:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("grpc server: %w", err)
		}
	default:
	}
	return nil
}
