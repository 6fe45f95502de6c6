package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-intake/internal/metrics"
	"github.com/goliatone/go-intake/internal/session"
	"github.com/goliatone/go-intake/internal/store"
	httptransport "github.com/goliatone/go-intake/internal/transport/http"
	"github.com/goliatone/go-intake/pkg/intake"
	"github.com/goliatone/go-intake/pkg/openapi"
	"github.com/goliatone/go-intake/pkg/review"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wizards over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger

	defs, err := a.definitions()
	if err != nil {
		return err
	}

	handle, err := store.Open(ctx, a.cfg, logger)
	if err != nil {
		return err
	}
	defer handle.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)

	sessions, err := session.NewManager(handle, defs,
		session.WithLogger(logger),
		session.WithMetrics(recorder),
		session.WithIdleTimeout(a.cfg.Session.IdleTimeout),
		session.WithSeed(intake.NewDraft),
	)
	if err != nil {
		return err
	}

	var reviewOpts []review.Option
	if dir := a.cfg.Review.TemplateDir; dir != "" {
		reviewOpts = append(reviewOpts, review.WithBaseDir(dir))
	}
	renderer, err := review.New(reviewOpts...)
	if err != nil {
		return err
	}

	doc, err := openapi.Build(ctx, defs, openapi.Info{Title: "Intake API", Version: version})
	if err != nil {
		return err
	}
	apiDoc, err := openapi.Handler(doc)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: a.cfg.HTTP.Addr,
		Handler: httptransport.NewRouter(httptransport.Deps{
			Sessions:    sessions,
			Review:      renderer,
			Metrics:     recorder,
			Logger:      logger,
			UserHeader:  a.cfg.HTTP.UserHeader,
			SaveTimeout: a.cfg.Session.SaveTimeout,
			Ready:       handle.Ping,
			APIDoc:      apiDoc,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sessions.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("store", handle.Driver),
			zap.Strings("wizards", sessions.Kinds()),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
