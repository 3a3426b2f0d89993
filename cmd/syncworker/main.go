package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jimpitan/internal/adapter/repo"
	"jimpitan/internal/apiclient"
	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
	"jimpitan/internal/infra/credentials"
	"jimpitan/internal/queue"
)

type syncWorker struct {
	queue    *queue.Queue
	client   *apiclient.Client
	target   string
	interval time.Duration
	timeout  time.Duration
	logger   infra.Logger
}

func main() {
	var (
		onceFlag     bool
		intervalFlag time.Duration
	)
	flag.BoolVar(&onceFlag, "once", false, "drain the queue a single time and exit")
	flag.DurationVar(&intervalFlag, "interval", 0, "drain interval (defaults to BACKGROUND_SYNC_SECONDS)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "syncworker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := infra.OpenSQLite(ctx, cfg.QueueDBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("syncworker: failed to open queue database")
	}
	defer db.Close()
	runner := infra.NewSQLRunner(db, logger)

	client, err := apiclient.NewClient(apiclient.Options{
		BaseURL:        cfg.APIBaseURL,
		HTTPClient:     &http.Client{Timeout: cfg.HTTPClientTimeout},
		Logger:         &logger,
		RequestTimeout: cfg.HTTPClientTimeout,
		Tokens:         credentials.NewStore(runner),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("syncworker: failed to configure api client")
	}

	interval := intervalFlag
	if interval <= 0 {
		interval = cfg.BackgroundSync
	}
	w := &syncWorker{
		queue: queue.New(queue.Options{
			Repo:     repo.NewPendingRepository(runner),
			Replayer: client,
			Logger:   &logger,
			OnReplayed: func(item domain.PendingSyncItem) {
				logger.Info().Int64("item_id", item.ID).Str("idempotency_key", item.IdempotencyKey).Msg("syncworker: item replayed")
			},
		}),
		client:   client,
		target:   cfg.ConnectivityURL,
		interval: interval,
		timeout:  cfg.HTTPClientTimeout,
		logger:   logger,
	}

	if onceFlag {
		if err := w.tick(ctx); err != nil {
			logger.Fatal().Err(err).Msg("syncworker: drain failed")
		}
		return
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("syncworker: stopped with error")
	}
	logger.Info().Msg("syncworker: stopped")
}

// Run drains the queue on every interval until ctx is done.
func (w *syncWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return errors.New("syncworker: interval must be positive")
	}
	w.logger.Info().Dur("interval", w.interval).Msg("syncworker: started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.tick(ctx); err != nil {
			w.logger.Error().Err(err).Msg("syncworker: drain failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *syncWorker) tick(ctx context.Context) error {
	n, err := w.queue.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		w.logger.Debug().Msg("syncworker: queue empty")
		return nil
	}

	pingCtx, cancel := ctx, context.CancelFunc(func() {})
	if w.timeout > 0 {
		pingCtx, cancel = context.WithTimeout(ctx, w.timeout)
	}
	err = w.client.Ping(pingCtx, w.target)
	cancel()
	if err != nil {
		w.logger.Info().Err(err).Int("pending", n).Msg("syncworker: offline, skipping drain")
		return nil
	}

	res, err := w.queue.DrainAll(ctx)
	if err != nil {
		return err
	}
	for _, f := range res.Failures {
		w.logger.Warn().Err(f.Err).Int64("item_id", f.ItemID).Bool("retryable", domain.Retryable(f.Err)).Msg("syncworker: item kept for retry")
	}
	return nil
}
