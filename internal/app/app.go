package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ibeloyar/payrelay/internal/config"
	"github.com/ibeloyar/payrelay/internal/metrics"
	"github.com/ibeloyar/payrelay/internal/notifier"
	"github.com/ibeloyar/payrelay/internal/repository/memory"
	"github.com/ibeloyar/payrelay/internal/repository/pg"
	"github.com/ibeloyar/payrelay/internal/service"
	"github.com/ibeloyar/payrelay/pgk/logger"
	"github.com/ibeloyar/payrelay/pgk/retryablehttp"
	"github.com/ibeloyar/payrelay/pgk/webhooksig"
	"go.uber.org/zap"

	httpController "github.com/ibeloyar/payrelay/internal/controller/http"
)

const shutdownTimeout = 10 * time.Second

type ledger interface {
	service.Ledger
	Shutdown() error
}

func Run(cfg config.Config, lg *zap.SugaredLogger) error {
	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return fmt.Errorf("display timezone: %w", err)
	}

	storage, err := newLedger(signalCtx, cfg, lg)
	if err != nil {
		return err
	}

	m := metrics.New()

	hub := notifier.NewHub()
	publisher, dispatcher, closers := newPublisher(cfg, hub, m, lg)

	reconciler := service.NewReconciler(newVerifier(cfg, lg), storage, publisher, m, cfg.OrderPrefix, lg)

	s := service.New(storage, service.Options{
		OrderPrefix: cfg.OrderPrefix,
		Location:    loc,
		QR: service.QRConfig{
			BankID:      cfg.QR.BankID,
			AccountNo:   cfg.QR.AccountNo,
			AccountName: cfg.QR.AccountName,
			Template:    cfg.QR.Template,
		},
		StreamSecret:   cfg.StreamSecret(),
		StreamLifetime: cfg.Stream.Lifetime,
	})

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(logger.LoggingMiddleware(lg))
	router.Use(m.Middleware)
	router.Use(middleware.Recoverer)

	handlers := httpController.New(s, reconciler, hub, httpController.Options{
		SignatureHeader: cfg.Webhook.SignatureHeader,
		StreamSecret:    cfg.StreamSecret(),
	}, lg)
	router = httpController.InitRoutes(router, handlers,
		httpController.NewLimiter(cfg.Orders.Limit, cfg.Orders.Burst),
		m.Handler(),
	)

	srv := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if dispatcher != nil {
		dispatcher.Start()
	}

	lg.Infof("starting server on %s (environment: %s)", cfg.RunAddress, cfg.Environment)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-signalCtx.Done():
	case err := <-serverErr:
		lg.Errorf("server ListenAndServe error: %v", err)
		stop()
	}

	lg.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown (server) error: %w", err))
	}

	if dispatcher != nil {
		if err := dispatcher.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown (notifications) error: %w", err))
		}
	}

	for _, closer := range closers {
		if err := closer(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown (publisher) error: %w", err))
		}
	}

	if err := storage.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("shutdown (repo) error: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	lg.Info("server shutdown success")
	return nil
}

func newLedger(ctx context.Context, cfg config.Config, lg *zap.SugaredLogger) (ledger, error) {
	if cfg.DatabaseURI == "" {
		lg.Warn("no database configured, orders are kept in memory and lost on restart")
		return memory.New(), nil
	}

	storage, err := pg.New(ctx, cfg.DatabaseURI, cfg.LedgerTimeout, lg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	return storage, nil
}

func newVerifier(cfg config.Config, lg *zap.SugaredLogger) *webhooksig.Verifier {
	if cfg.SkipSignatureVerification() {
		lg.Warn("webhook signature verification is DISABLED, never run like this outside development")
		return webhooksig.NewInsecureVerifier()
	}

	return webhooksig.NewVerifier(cfg.Webhook.Secret)
}

// newPublisher always delivers to the in-process hub. Kafka and the HTTP relay
// are optional and go through the dispatcher queue.
func newPublisher(cfg config.Config, hub *notifier.Hub, m *metrics.Metrics, lg *zap.SugaredLogger) (service.Publisher, *notifier.Dispatcher, []func() error) {
	var (
		backends notifier.Fanout
		closers  []func() error
	)

	if brokers := notifier.SplitBrokers(cfg.Notify.KafkaBrokers); len(brokers) > 0 {
		kafkaPublisher := notifier.NewKafkaPublisher(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		backends = append(backends, kafkaPublisher)
		closers = append(closers, kafkaPublisher.Close)
		lg.Infof("publishing payment confirmations to kafka topic %s", cfg.Notify.KafkaTopic)
	}

	if cfg.Notify.RelayURL != "" {
		backends = append(backends, notifier.NewRelayPublisher(cfg.Notify.RelayURL, retryablehttp.RetryConfig{
			MaxRetries: 3,
			BaseDelay:  200 * time.Millisecond,
			MaxDelay:   5 * time.Second,
			MaxJitter:  100 * time.Millisecond,
			Timeout:    5 * time.Second,
		}))
		lg.Info("publishing payment confirmations to the realtime relay")
	}

	if len(backends) == 0 {
		return hub, nil, nil
	}

	var target notifier.Publisher = backends
	if len(backends) == 1 {
		target = backends[0]
	}

	dispatcher := notifier.NewDispatcher(target, cfg.Notify.Workers, cfg.Notify.QueueSize, m, lg)

	return notifier.Fanout{hub, dispatcher}, dispatcher, closers
}
