package ethprover

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/certenio/ethprover/pkg/blocksource"
	"github.com/certenio/ethprover/pkg/config"
	"github.com/certenio/ethprover/pkg/pipeline"
)

func newBlockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "block [block_number]",
		Short: "Prove a single block, the chain head if block_number is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var number *uint64
			if len(args) == 1 {
				n, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return err
				}
				number = &n
			}

			return runSingleBlock(ctx, number)
		},
	}
}

func runSingleBlock(ctx context.Context, number *uint64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	source := &blocksource.Single{
		Number:      number,
		Client:      a.rpcClient,
		Cache:       a.cache,
		CachePolicy: a.blocksourceCachePolicy(),
	}

	worker, err := a.newProverWorker(ctx)
	if err != nil {
		return err
	}
	cacheManager := pipeline.NewCacheManager(a.cache, a.pipelineCachePolicy())
	submitter := a.newSubmitter()

	return pipeline.Run(ctx, source, worker, cacheManager, submitter, pipeline.SingleBlockChannelCapacity)
}
