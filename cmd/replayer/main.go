package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/datapulse/catalog/common/bootstrap"
	"github.com/datapulse/catalog/common/replay"
)

// replayer rebuilds the blob store and rewrites every version from the
// stored raw snapshots. One-shot: runs to completion and exits.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Setup(ctx, "replayer",
		bootstrap.WithoutRedis(),
		bootstrap.WithoutQueue(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap replayer: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	replayer := replay.NewReplayer(
		components.Stores,
		components.Config.Versioning.ReplayBatchSize,
		components.Logger,
	)

	stats, err := replayer.Run(ctx)
	if err != nil {
		components.Logger.Error("replay failed", "error", err)
		os.Exit(1)
	}

	components.Logger.Info("replay complete",
		"versions", stats.Versions,
		"blobs", stats.Blobs,
		"skipped", stats.Skipped,
	)
}
