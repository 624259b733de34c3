package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/metrics"
	transport "live-quiz-service/internal/transport/http"
)

func newStartCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(cfg)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	m := metrics.New()
	service := app.NewGameService(stores.sessions, stores.players, stores.answers, stores.quizzes, stores.broker,
		app.WithLogger(log),
		app.WithMetrics(m),
	)
	tokens := transport.NewHostTokens(cfg.Auth.Secret, config.TTLDuration(cfg.Auth.TokenTTL, 12*time.Hour))

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(service, tokens, transport.Options{
		PublicURL: cfg.Server.PublicURL,
		Logger:    log,
		Metrics:   m,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}
	policy := app.ReapPolicy{
		EndedRetention: config.TTLDuration(cfg.Game.EndedRetention, time.Hour),
		IdleTimeout:    config.TTLDuration(cfg.Game.IdleTimeout, 2*time.Hour),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Server.Port).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return service.RunReaper(gctx, config.TTLDuration(cfg.Game.ReapInterval, time.Minute), policy)
	})
	return g.Wait()
}
