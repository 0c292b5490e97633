package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spigell/mentor-matcher/internal/httpapi"
	"github.com/spigell/mentor-matcher/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the recommendation, chat and mentorship HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "address to listen on (default :8080)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS origins allowed to call the API (default any)")

	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
	viper.BindPFlag("server.allowed-origins", serveCmd.Flags().Lookup("allowed-origins"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := mustSetup(ctx)
	defer svc.Close()

	svc.logger.Info("starting the mentor-matcher", zap.String("version", version))

	api := httpapi.New(httpapi.Deps{
		Recommender: svc.recommend,
		Chat:        svc.chat,
		Lifecycle:   svc.lifecycle,
		Tools:       svc.tools,
		Logger:      logger.Named(svc.logger, "http"),
	}, httpapi.WithAllowedOrigins(svc.config.Server.AllowedOrigins))

	server := &http.Server{
		Addr:              svc.config.Server.Address,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svc.logger.Info("listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		svc.logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		svc.logger.Error("server stopped", zap.Error(err))
		return
	}

	svc.logger.Info("server stopped")
}
