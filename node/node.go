package node

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AvaProtocol/ap-oracle/core/apicaller"
	"github.com/AvaProtocol/ap-oracle/core/chainio"
	"github.com/AvaProtocol/ap-oracle/core/config"
	"github.com/AvaProtocol/ap-oracle/metrics"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
	"github.com/AvaProtocol/ap-oracle/storage"
	"github.com/AvaProtocol/ap-oracle/version"
)

type status int

const (
	initStatus status = iota
	runningStatus
	shutdownStatus
)

// Node schedules one Provider per configured chain and serves the node API.
type Node struct {
	config    *config.NodeConfig
	logger    logger.Logger
	db        storage.Storage
	registry  *prometheus.Registry
	providers []*Provider
	scheduler gocron.Scheduler
	http      *echo.Echo

	mu     sync.RWMutex
	status status
}

// NewNodeFromConfig opens the storage and connects to every chain. The
// mnemonic must already be set on c.
func NewNodeFromConfig(ctx context.Context, c *config.NodeConfig) (*Node, error) {
	if err := c.RequireMnemonic(); err != nil {
		return nil, err
	}

	l, err := logger.New(c.Production)
	if err != nil {
		return nil, err
	}

	db, err := storage.NewWithPath(c.DbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open storage at %s: %w", c.DbPath, err)
	}

	registry := prometheus.NewRegistry()
	var recorder metrics.Recorder = metrics.Noop{}
	if c.EnableMetrics {
		recorder = metrics.NewOracleMetrics(registry)
	}

	caller := apicaller.NewHTTPCaller(c.Endpoints, c.Timeouts.ApiCallTimeout, l)

	providers := make([]*Provider, 0, len(c.Chains))
	for _, chain := range c.Chains {
		client, err := chainio.Dial(ctx, chain.ID, chain.RpcURL,
			chainio.WithRateLimit(chain.RpcRateLimit),
			chainio.WithMetrics(recorder),
			chainio.WithLogger(l),
		)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("cannot connect to chain %s: %w", chain.ID, err)
		}

		provider, err := NewProvider(ProviderOptions{
			Chain:    chain,
			Timeouts: c.Timeouts,
			Mnemonic: c.Mnemonic,
			Client:   client,
			Caller:   caller,
			Db:       db,
			Logger:   l,
			Metrics:  recorder,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("cannot set up chain %s: %w", chain.ID, err)
		}
		providers = append(providers, provider)
	}

	return NewNode(c, providers, db, registry, l)
}

// NewNode wires already built providers together. registry may be nil when
// metrics are disabled.
func NewNode(c *config.NodeConfig, providers []*Provider, db storage.Storage, registry *prometheus.Registry, l logger.Logger) (*Node, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	n := &Node{
		config:    c,
		logger:    logger.EnsureLogger(l),
		db:        db,
		registry:  registry,
		providers: providers,
		scheduler: scheduler,
		status:    initStatus,
	}
	n.http = n.newHttpServer()
	return n, nil
}

// Start schedules every chain and serves the API until ctx is cancelled or
// the process receives SIGINT or SIGTERM.
func (n *Node) Start(ctx context.Context) error {
	n.logger.Infof("Starting ap-oracle node %s", version.Get())

	if err := n.schedule(ctx); err != nil {
		return err
	}
	n.scheduler.Start()

	go func() {
		n.logger.Info("node api listening", "address", n.config.NodeApiIpPortAddress)
		if err := n.http.Start(n.config.NodeApiIpPortAddress); err != nil && err != http.ErrServerClosed {
			n.logger.Error("node api stopped", "err", err)
		}
	}()
	n.setStatus(runningStatus)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-ctx.Done():
	case <-sigs:
	}

	n.logger.Infof("Shutting down...")
	return n.Stop()
}

// schedule registers one polling job per chain. Singleton mode makes a cycle
// that overruns the poll interval delay the next one instead of overlapping
// it.
func (n *Node) schedule(ctx context.Context) error {
	for _, p := range n.providers {
		_, err := n.scheduler.NewJob(
			gocron.DurationJob(n.config.PollInterval),
			gocron.NewTask(func() {
				// a failed cycle is logged and recorded by the provider
				_, _ = p.RunCycle(ctx)
			}),
			gocron.WithName("cycle-"+p.ChainID()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return fmt.Errorf("cannot schedule chain %s: %w", p.ChainID(), err)
		}
		n.logger.Info("scheduled chain", "chain_id", p.ChainID(), "provider_id", p.ProviderID().Hex(), "interval", n.config.PollInterval)
	}
	return nil
}

func (n *Node) Stop() error {
	n.setStatus(shutdownStatus)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.http.Shutdown(shutdownCtx); err != nil {
		n.logger.Warn("cannot stop node api", "err", err)
	}

	if err := n.scheduler.Shutdown(); err != nil {
		n.logger.Warn("cannot stop scheduler", "err", err)
	}

	if n.db != nil {
		return n.db.Close()
	}
	return nil
}

func (n *Node) setStatus(s status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = s
}

func (n *Node) isRunning() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status == runningStatus
}
