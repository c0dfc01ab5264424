package ethprover

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/certenio/ethprover/pkg/blocksource"
	"github.com/certenio/ethprover/pkg/cache"
	"github.com/certenio/ethprover/pkg/config"
	"github.com/certenio/ethprover/pkg/crashreport"
	"github.com/certenio/ethprover/pkg/ethproofs"
	"github.com/certenio/ethprover/pkg/metrics"
	"github.com/certenio/ethprover/pkg/pipeline"
	"github.com/certenio/ethprover/pkg/prover"
)

// app bundles the components every subcommand needs after loading
// configuration, so `block` and `run` only differ in which
// pipeline.BlockSource they build.
type app struct {
	cfg       *config.Config
	cache     *cache.Store
	reporter  crashreport.Reporter
	metrics   *metrics.Metrics
	rpcClient *blocksource.RPCClient
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store := cache.New(cfg.CacheDir)

	reporter := crashreport.Reporter(crashreport.NoOp{})
	if cfg.SentryDSN != "" {
		sentryReporter, err := crashreport.NewSentryReporter(cfg.SentryDSN)
		if err != nil {
			return nil, fmt.Errorf("init crash reporter: %w", err)
		}
		reporter = sentryReporter
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var rpcClient *blocksource.RPCClient
	if cfg.RPCURL != "" {
		client, err := blocksource.Dial(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("dial rpc: %w", err)
		}
		rpcClient = client
	}

	return &app{cfg: cfg, cache: store, reporter: reporter, metrics: m, rpcClient: rpcClient}, nil
}

func (a *app) blocksourceCachePolicy() blocksource.CachePolicy {
	switch a.cfg.CachePolicy {
	case config.CachePolicyOff:
		return blocksource.CacheOff
	case config.CachePolicyAlways:
		return blocksource.CacheAlways
	default:
		return blocksource.CacheOnFailure
	}
}

func (a *app) pipelineCachePolicy() pipeline.CachePolicy {
	switch a.cfg.CachePolicy {
	case config.CachePolicyOff:
		return pipeline.CacheOff
	case config.CachePolicyAlways:
		return pipeline.CacheAlways
	default:
		return pipeline.CacheOnFailure
	}
}

func (a *app) onFailure() pipeline.OnFailure {
	if a.cfg.OnFailure == config.OnFailureContinue {
		return pipeline.OnFailureContinue
	}
	return pipeline.OnFailureExit
}

// newProverWorker builds the ProverWorker matching the configured
// mode.
func (a *app) newProverWorker(ctx context.Context) (pipeline.ProverWorker, error) {
	switch a.cfg.Mode {
	case config.ModeCPUWitness:
		generator := prover.NewCPUWitnessGenerator(a.cfg.AppBinPath)
		// a.rpcClient is only assigned to the ReceiptFetcher interface
		// when non-nil: a nil *blocksource.RPCClient boxed into a
		// non-nil interface would make the task's "is debug replay
		// available" check pass, then panic on first use.
		var fetcher pipeline.ReceiptFetcher
		if a.rpcClient != nil {
			fetcher = a.rpcClient
		}
		return pipeline.NewCPUWitnessTask(generator, a.onFailure(), a.metrics, fetcher, a.cache), nil
	case config.ModeGPUProve:
		supervisor, err := prover.NewSupervisor(ctx, a.cfg.AppBinPath)
		if err != nil {
			return nil, fmt.Errorf("start gpu prover supervisor: %w", err)
		}
		return pipeline.NewGPUProveTask(supervisor, a.reporter, a.onFailure(), a.metrics), nil
	default:
		return nil, fmt.Errorf("unsupported mode %q", a.cfg.Mode)
	}
}

// newSubmitter builds the Submitter matching the configured
// ethproofs_submission setting.
func (a *app) newSubmitter() pipeline.Submitter {
	if !a.cfg.EthproofsSubmission.Enabled() {
		return pipeline.NoOpSubmitter{}
	}

	baseURL := a.cfg.EthproofsSubmission.BaseURL(ethproofs.StagingURL, ethproofs.ProductionURL)
	clusterID := uint64(0)
	if a.cfg.EthproofsClusterID != nil {
		clusterID = *a.cfg.EthproofsClusterID
	}
	client := ethproofs.NewClient(baseURL, a.cfg.EthproofsToken, clusterID, a.metrics)
	return pipeline.NewEthproofsSubmitter(client)
}

func blocksourceContinuous(a *app, cfg *config.Config) *blocksource.Continuous {
	return blocksource.NewContinuous(a.rpcClient, cfg.ProverID, cfg.BlockMod, a.cache, a.blocksourceCachePolicy())
}

func (a *app) close() {
	if a.rpcClient != nil {
		a.rpcClient.Close()
	}
}
