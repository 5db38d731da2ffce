// Command agentbridge runs one bridge agent: it serves the A2A endpoint,
// answers locally through its agent logic, and forwards @-mentions to peers.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/a2alab/agentbridge/agentlogic"
	"github.com/a2alab/agentbridge/config"
	"github.com/a2alab/agentbridge/console"
	"github.com/a2alab/agentbridge/directory"
	"github.com/a2alab/agentbridge/discovery"
	"github.com/a2alab/agentbridge/dispatch"
	"github.com/a2alab/agentbridge/domain"
	"github.com/a2alab/agentbridge/logging"
	"github.com/a2alab/agentbridge/policy"
	"github.com/a2alab/agentbridge/server"
	"github.com/a2alab/agentbridge/telemetry"
	"github.com/a2alab/agentbridge/transport"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	// A generated suffix keeps concurrently started bridges with the same
	// base identifier distinguishable; prefix resolution still finds them.
	agentID := cfg.AgentID
	if !strings.Contains(agentID, "-") {
		agentID = fmt.Sprintf("%s-%s", agentID, uuid.New().String()[:6])
	}

	logger.Info("starting bridge",
		"agent_id", agentID,
		"port", cfg.HTTPPort,
		"directory_backend", cfg.DirectoryBackend,
		"logic", cfg.Logic)

	dir, closeDir, err := buildDirectory(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize directory: %v", err)
	}
	defer closeDir()

	logic, err := buildLogic(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize agent logic: %v", err)
	}

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	metrics := telemetry.New(agentID)
	hub := console.NewHub(logger)

	dispatcher := dispatch.New(agentID, dir, transport.NewClient(), logic, func(o *dispatch.Options) {
		o.Policy = policyEngine
		o.Metrics = metrics
		o.Logger = logger
		o.Searcher = discovery.NewSearcher(dir)
		o.TargetTimeout = cfg.TargetTimeout
		o.RegistryURL = cfg.RegistryURL
	})

	card := domain.AgentCard{
		Name:         cfg.AgentName,
		Description:  cfg.Description,
		URL:          cfg.PublicURL,
		Capabilities: cfg.Capabilities,
	}
	h := server.NewHandler(agentID, card, dispatcher, func(o *server.Options) {
		o.Hub = hub
		o.Metrics = metrics.Handler()
		o.Logger = logger
	})
	e := server.NewEcho(h)

	// Register with the directory so peers can resolve us, then keep the
	// record fresh for as long as we run.
	record := &domain.AgentRecord{
		AgentID:      agentID,
		Endpoint:     cfg.PublicURL,
		Description:  cfg.Description,
		Capabilities: cfg.Capabilities,
	}
	if err := dir.Register(ctx, record); err != nil {
		logger.Warn("self-registration failed", "error", err)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go heartbeatLoop(heartbeatCtx, dir, agentID, cfg.HeartbeatEvery, logger)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Info("bridge started", "url", cfg.PublicURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down bridge")
	stopHeartbeat()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	logger.Info("bridge stopped")
}

func buildDirectory(cfg *config.Config) (directory.Directory, func(), error) {
	switch cfg.DirectoryBackend {
	case config.BackendSQLite:
		store, err := directory.NewSQLiteStore(cfg.DatabaseURL, cfg.StalenessWindow)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.BackendRegistry:
		if cfg.RegistryURL == "" {
			return nil, nil, fmt.Errorf("REGISTRY_URL is required for the registry backend")
		}
		return directory.NewRemote(cfg.RegistryURL, cfg.RegistryTimeout), func() {}, nil
	case config.BackendMemory:
		return directory.NewMemory(cfg.StalenessWindow), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown directory backend %q", cfg.DirectoryBackend)
	}
}

func buildLogic(cfg *config.Config) (agentlogic.Func, error) {
	if cfg.Logic == "claude" {
		claude := agentlogic.NewClaude(func(o *agentlogic.ClaudeOptions) {
			if cfg.AnthropicModel != "" {
				o.Model = anthropic.Model(cfg.AnthropicModel)
			}
			o.APIKey = cfg.AnthropicAPIKey
		})
		return claude.Func(), nil
	}
	logic, ok := agentlogic.FromName(cfg.Logic)
	if !ok {
		return nil, fmt.Errorf("unknown agent logic %q", cfg.Logic)
	}
	return logic, nil
}

// heartbeatLoop keeps the directory record fresh until ctx is canceled.
func heartbeatLoop(ctx context.Context, dir directory.Directory, agentID string, every time.Duration, logger logging.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := dir.Heartbeat(hbCtx, agentID); err != nil {
				logger.Warn("heartbeat failed", "error", err)
			}
			cancel()
		}
	}
}
