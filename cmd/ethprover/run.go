package ethprover

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/certenio/ethprover/pkg/config"
	"github.com/certenio/ethprover/pkg/pipeline"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Continuously prove this instance's striped share of the chain head",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runPipeline(ctx)
		},
	}
}

func runPipeline(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if a.rpcClient == nil {
		return fmt.Errorf("run: rpc_url is required")
	}

	source := blocksourceContinuous(a, cfg)
	worker, err := a.newProverWorker(ctx)
	if err != nil {
		return err
	}
	cacheManager := pipeline.NewCacheManager(a.cache, a.pipelineCachePolicy())
	submitter := a.newSubmitter()

	return pipeline.Run(ctx, source, worker, cacheManager, submitter, pipeline.ContinuousBlockChannelCapacity)
}
