package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/siampass/internal/api"
	"github.com/kalambet/siampass/internal/arbridge"
	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/config"
	"github.com/kalambet/siampass/internal/guide"
	"github.com/kalambet/siampass/internal/loyalty"
	"github.com/kalambet/siampass/internal/nav"
	"github.com/kalambet/siampass/internal/ollama"
	"github.com/kalambet/siampass/internal/openrouter"
	"github.com/kalambet/siampass/internal/recommend"
	"github.com/kalambet/siampass/internal/storage"
	"github.com/kalambet/siampass/internal/tracker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the siampass server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show siampass system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", true, "serve MCP tools over stdin/stdout")
}

// app is everything runServer wires together.
type app struct {
	ctrl    *nav.Controller
	backend guide.Backend
	cache   *recommend.Cache
	loyalty *loyalty.Manager
	hub     *tracker.Hub
	store   *storage.Store
}

// buildApp composes the session's components. The controller owns every
// view-scoped instance; the recommendation memo, loyalty account and AR hub
// live for the whole process.
func buildApp(cfg config.Config, backend guide.Backend) (*app, error) {
	store, err := storage.Open()
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	loy := loyalty.NewManager(store)
	if err := loy.Seed(cfg.AR.TargetURL); err != nil {
		store.Close()
		return nil, fmt.Errorf("seeding loyalty account: %w", err)
	}

	cache := recommend.NewCache(backend)
	hub := tracker.NewHub()
	target := arbridge.Target{MarkerURL: cfg.AR.TargetURL, ModelURL: cfg.AR.ModelURL}

	ctrl := nav.New(nav.Deps{
		NewChat: func() *chat.Session {
			return chat.NewSession(backend, cfg.Guide.Greeting)
		},
		Recommendations: cache,
		NewBridge: func() *arbridge.Bridge {
			b := arbridge.New(hub, target)
			b.OnLock(func(t arbridge.Target) {
				collected, err := loy.CollectMarker(t.MarkerURL)
				if err != nil {
					slog.Warn("awarding marker stamp failed", "marker", t.MarkerURL, "error", err)
					return
				}
				if collected {
					slog.Info("marker stamp awarded", "marker", t.MarkerURL)
				}
			})
			return b
		},
	})

	return &app{ctrl: ctrl, backend: backend, cache: cache, loyalty: loy, hub: hub, store: store}, nil
}

func (a *app) Close() {
	a.ctrl.Close()
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "siampass version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start twice on the same port.
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		printWarning("siampass is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Guide.Provider == config.ProviderOllama {
		if err := ollama.EnsureReady(ctx, ollama.New(cfg.Ollama.BaseURL), cfg.Ollama.ChatModel, os.Stderr); err != nil {
			return err
		}
	}

	backend, err := guide.Detect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("configuring guide backend: %w", err)
	}
	slog.Info("guide backend ready", "provider", backend.Name())

	a, err := buildApp(cfg, backend)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Recommend.Prefetch {
		go func() {
			if err := a.cache.Prefetch(ctx, recommend.PopularProvinces); err != nil {
				slog.Warn("prefetching popular provinces", "error", err)
				return
			}
			slog.Info("popular provinces prefetched", "count", a.cache.Len())
		}()
	}

	if cfg.Server.Token == "" {
		slog.Warn("server.token is not set; the app API accepts unauthenticated requests")
	}

	handler := api.NewAppHandler(api.AppDeps{
		Nav:      a.ctrl,
		Loyalty:  a.loyalty,
		AREvents: a.hub.Handler(),
		Token:    cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Recommendations: a.cache,
			Guide:           a.backend,
			Loyalty:         a.loyalty,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "siampass listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Guide", "%s", cfg.Guide.Provider)
	switch cfg.Guide.Provider {
	case config.ProviderOllama:
		if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
		printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
	case config.ProviderGemini:
		printStatus("Chat model", "%s", cfg.Gemini.Model)
	case config.ProviderOpenRouter:
		printStatus("Chat model", "%s", cfg.OpenRouter.Model)
		if cfg.OpenRouter.APIKey == "" {
			printStatus("OpenRouter", "no API key")
		} else if models, err := openrouter.NewClient(cfg.OpenRouter.APIKey).ListModels(ctx); err != nil {
			printStatus("OpenRouter", "unreachable (%v)", err)
		} else {
			printStatus("OpenRouter", "reachable, %d models", len(models))
		}
	}
	printStatus("AR target", "%s", cfg.AR.TargetURL)

	if !running {
		return nil
	}
	ac := &apiClient{baseURL: serverURL, token: cfg.Server.Token, httpClient: client}
	stateResp, err := ac.get(ctx, "/state")
	if err != nil {
		return nil
	}
	var st nav.State
	if err := decodeJSON(stateResp, &st); err != nil {
		printStatus("State", "unavailable (%v)", err)
		return nil
	}
	printStatus("View", "%s", st.View)
	if st.OverlayAR && st.Tracking != nil {
		printStatus("AR overlay", "open (%s)", *st.Tracking)
	} else {
		printStatus("AR overlay", "closed")
	}
	return nil
}
