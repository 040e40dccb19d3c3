package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Siddhant-K-code/cabinets/pkg/cabinetserr"
	"github.com/Siddhant-K-code/cabinets/pkg/collective/grpcc"
	"github.com/Siddhant-K-code/cabinets/pkg/engine"
	"github.com/Siddhant-K-code/cabinets/pkg/ioadapter"
	"github.com/Siddhant-K-code/cabinets/pkg/metrics"
	"github.com/Siddhant-K-code/cabinets/pkg/shard"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Join a distributed run as a non-coordinator rank over grpcc",
	Long: `Dials a running coordinator (started with "cabinets coordinate") and
participates in its clustering run as one rank of the grpcc collective
backend: receives this rank's document block, runs the six-step
iteration contract to convergence, then sends its final assignments
back to the coordinator for gathering.

Example:
  cabinets worker --coordinator 10.0.0.1:7000 --rank 1 --world 4 --cabinets 8 --subjects 128`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("coordinator", "", "coordinator address (host:port)")
	_ = workerCmd.MarkFlagRequired("coordinator")
	workerCmd.Flags().Int("rank", 0, "this worker's rank (must be > 0)")
	_ = workerCmd.MarkFlagRequired("rank")
	workerCmd.Flags().Int("world", 0, "total number of ranks in the run, coordinator included")
	_ = workerCmd.MarkFlagRequired("world")
	workerCmd.Flags().Int("cabinets", 0, "number of cabinets")
	_ = workerCmd.MarkFlagRequired("cabinets")
	workerCmd.Flags().Int("subjects", 0, "number of subjects per document vector")
	_ = workerCmd.MarkFlagRequired("subjects")
	workerCmd.Flags().Int("max-iterations", 0, "cap on iterations (0 = no cap)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("coordinator")
	rank, _ := cmd.Flags().GetInt("rank")
	size, _ := cmd.Flags().GetInt("world")
	cabinets, _ := cmd.Flags().GetInt("cabinets")
	subjects, _ := cmd.Flags().GetInt("subjects")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")

	if rank <= 0 {
		return fmt.Errorf("%w: worker rank must be > 0 (rank 0 is the coordinator)", cabinetserr.ErrConfigInvalid)
	}
	if size <= rank {
		return fmt.Errorf("%w: world size must be greater than rank", cabinetserr.ErrConfigInvalid)
	}
	if cabinets <= 0 || subjects <= 0 {
		return fmt.Errorf("%w: cabinets and subjects must be positive", cabinetserr.ErrConfigInvalid)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling worker...")
		cancel()
	}()

	backend, err := grpcc.Dial(ctx, addr, rank, size)
	if err != nil {
		return fmt.Errorf("dial coordinator: %w", err)
	}
	defer backend.Close()

	owned, err := ioadapter.Receive(ctx, backend, subjects, cabinets)
	if err != nil {
		return fmt.Errorf("receive shard: %w", err)
	}

	sh := shard.New(owned, cabinets)
	r := engine.New(backend, sh, cabinets, subjects)
	r.Metrics = metrics.New()
	r.RunID = fmt.Sprintf("worker-%d", rank)

	rs, err := r.RunToConvergence(ctx, maxIterations)
	if err != nil {
		return fmt.Errorf("run to convergence: %w", err)
	}

	if err := ioadapter.Gather(ctx, backend, sh.Assignments(), nil, nil); err != nil {
		return fmt.Errorf("gather assignments: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Worker %d converged in %d iterations\n", rank, rs.Iterations)
	return nil
}
