package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/logging"
)

var workerOnce bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the monthly bill digest on its schedule",
	Long: `Emails every consumer with saved usage a summary of their bill so far.
Only one instance runs a digest at a time; others skip while the lock is held.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "run a single digest and exit")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	d := a.digest()
	if workerOnce {
		res, err := d.RunOnce(ctx)
		if err != nil {
			return err
		}
		if res.LockHeld {
			fmt.Println("digest already running elsewhere; skipped")
			return nil
		}
		fmt.Printf("digest: %d users, %d sent, %d skipped, %d failed\n", res.Total, res.Sent, res.Skipped, len(res.Failures))
		return nil
	}

	logging.Info("digest worker starting", zap.String("configured_schedule", a.cfg.Digest.Schedule))
	if err := d.Run(ctx, a.cfg.Digest.Schedule); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
