package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"photoscore-server/internal/app/sidecar"
	"photoscore-server/internal/core/providers/vision"
	platformconfig "photoscore-server/internal/platform/config"
	platformerrors "photoscore-server/internal/platform/errors"
	platformlogging "photoscore-server/internal/platform/logging"
	httptransport "photoscore-server/internal/transport/http"
	httpanalyze "photoscore-server/internal/transport/http/analyze"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config     *platformconfig.Config
	configPath string
	logger     *platformlogging.Logger
	provider   *vision.Provider
	publisher  *sidecar.Publisher
}

// Run drives the whole service lifecycle: configuration, dependency
// initialisation, serving, and graceful shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.provider == nil || state.publisher == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"provider/publisher not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	state.publisher.Start(groupCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return fmt.Errorf("start HTTP service: %w", err)
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		state.publisher.Stop()
		return err
	}

	state.publisher.Stop()
	if err := state.provider.Cleanup(); err != nil {
		logger.WarnTag("BOOT", "provider cleanup failed: %v", err)
	}

	logger.InfoTag("BOOT", "service stopped cleanly")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "initialisation order")
	for _, step := range steps {
		logger.InfoTag("BOOT", "  %s", step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "model:init-provider",
			Title:     "Initialise model provider",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initModelProviderStep,
		},
		{
			ID:        "sidecar:init-publisher",
			Title:     "Initialise sidecar publisher",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initSidecarStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	path := strings.TrimSpace(os.Getenv("CONFIG_PATH"))

	loader := platformconfig.NewLoader().WithDotEnv(true)
	if path != "" {
		loader = loader.WithPath(path)
	}

	config, err := loader.Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}

	state.config = config
	if path == "" {
		path = "env:defaults"
	}
	state.configPath = path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	platformlogging.DefaultLogger = logger

	logger.InfoTag("BOOT", "logging ready [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func initModelProviderStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"model:init-provider",
			"missing config/logger",
		)
	}

	provider := vision.NewProvider(&state.config.Model, state.logger)
	if err := provider.Initialize(); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "model:init-provider", "failed to initialize model provider", err)
	}

	state.provider = provider
	return nil
}

func initSidecarStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"sidecar:init-publisher",
			"missing config/logger",
		)
	}

	state.publisher = sidecar.NewPublisher(&state.config.Sidecar, state.logger)
	return nil
}

func startHTTPServer(
	state *appState,
	g *errgroup.Group,
	groupCtx context.Context,
) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			httptransport.RespondError(c, http.StatusNotFound, "Not found")
			return
		}
		if config.Web.StaticDir != "" {
			c.File(config.Web.StaticDir + "/index.html")
			return
		}
		c.Status(http.StatusNotFound)
	})

	analyzeService, err := httpanalyze.NewService(config, logger, state.provider, state.publisher)
	if err != nil {
		logger.ErrorTag("BOOT", "analyze service initialisation failed: %v", err)
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "analyze:new-service", "failed to create analyze service", err)
	}
	analyzeService.Register(httpRouter.API)

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(config.Web.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "server listening on http://localhost:%d", config.Web.Port)
		logger.InfoTag("HTTP", "analysis endpoint: http://localhost:%d/api/analyze", config.Web.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server shut down cleanly")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutdown signal received (%v), cleaning up", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("BOOT", "shutdown timed out, forcing exit")
		return errors.New("shutdown timed out")
	}
	return nil
}
