// Command replicad runs a single delta-state CRDT replica: the
// anti-entropy engine, its transport, an optional diagnostic audit log,
// and a status HTTP server that is read-only apart from adding neighbours.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rechain/delta-crdt/internal/audit"
	"github.com/rechain/delta-crdt/internal/config"
	"github.com/rechain/delta-crdt/internal/replica"
	"github.com/rechain/delta-crdt/internal/statusapi"
	"github.com/rechain/delta-crdt/internal/transport"

	_ "github.com/rechain/delta-crdt/pkg/crdt"
)

func main() {
	configFile := flag.String("config", "./config/replicad.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	nodeID, err := config.RandomNodeID()
	if err != nil {
		logger.Fatal("failed to generate node id", zap.Error(err))
	}

	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		auditLog, err = audit.Open(cfg.Audit.Path, cfg.Audit.Capacity)
		if err != nil {
			logger.Fatal("failed to open audit log", zap.Error(err))
		}
		defer auditLog.Close()
	}

	var replicaConfig replica.Config
	replicaConfig.Name = cfg.Node.Name
	replicaConfig.Lattice = cfg.Lattice.Type
	replicaConfig.NodeID = nodeID
	replicaConfig.ShipDebounce = cfg.Replica.ShipDebounce
	replicaConfig.Logger = logger
	replicaConfig.Notifier = &replica.LogNotifier{Logger: logger}
	if auditLog != nil {
		replicaConfig.Audit = auditLog
	}
	if cfg.Replica.NotifyEndpoint != "" {
		replicaConfig.Notify = &replica.NotifyTarget{
			Endpoint: replica.Endpoint(cfg.Replica.NotifyEndpoint),
			Message:  cfg.Replica.NotifyMessage,
		}
	}

	var tr replica.Transport
	switch cfg.Transport.Kind {
	case "loopback":
		tr = transport.NewLoopback()
	case "libp2p":
		// built after the replica exists, since the stream handler needs
		// an Inbox to deliver into; see below.
	default:
		logger.Fatal("unknown transport kind", zap.String("kind", cfg.Transport.Kind))
	}
	replicaConfig.Transport = tr

	r, err := replica.New(replicaConfig)
	if err != nil {
		logger.Fatal("failed to start replica", zap.Error(err))
	}

	if cfg.Transport.Kind == "libp2p" {
		lp, err := transport.NewLibP2P(cfg.Transport.ListenAddr, cfg.Lattice.Type, r, logger)
		if err != nil {
			logger.Fatal("failed to start libp2p transport", zap.Error(err))
		}
		defer lp.Close()
	} else if lb, ok := tr.(*transport.Loopback); ok {
		lb.Register(replica.Endpoint(cfg.Node.Name), r)
	}

	ctx := context.Background()
	for _, n := range cfg.Replica.Neighbours {
		if err := r.AddNeighbour(ctx, replica.Endpoint(n)); err != nil {
			logger.Warn("failed to add neighbour", zap.String("neighbour", n), zap.Error(err))
		}
	}

	driver := replica.NewPeriodicDriver(r, cfg.Replica.ShipInterval)
	driver.Start()
	defer driver.Stop()

	var statusSrv *statusapi.Server
	if cfg.HTTP.Enabled {
		statusSrv = statusapi.NewServer(r, logger)
		go func() {
			if err := statusSrv.Start(cfg.HTTP.Address); err != nil {
				logger.Info("status server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("replica started",
		zap.String("name", cfg.Node.Name),
		zap.Uint64("node_id", nodeID),
		zap.String("lattice", cfg.Lattice.Type),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	if statusSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := statusSrv.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping status server", zap.Error(err))
		}
		cancel()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		logger.Warn("error stopping replica", zap.Error(err))
	}
}

func buildLogger(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	l := zap.InfoLevel
	if err := l.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(l)
	}
	return cfg.Build()
}
