package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"jimpitan/internal/adapter/repo"
	"jimpitan/internal/apiclient"
	"jimpitan/internal/connectivity"
	"jimpitan/internal/domain"
	"jimpitan/internal/gatekeeper"
	"jimpitan/internal/http/handlers"
	httpapi "jimpitan/internal/http/httpapi"
	"jimpitan/internal/i18n"
	"jimpitan/internal/infra"
	"jimpitan/internal/infra/credentials"
	"jimpitan/internal/queue"
	"jimpitan/internal/roster"
	"jimpitan/internal/session"
	"jimpitan/internal/submission"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rosters, err := roster.Load(cfg.RosterFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.RosterFile).Msg("collector: invalid roster file")
	}

	db, err := infra.OpenSQLite(ctx, cfg.QueueDBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.QueueDBPath).Msg("collector: failed to open queue database")
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
		logger.Fatal().Err(err).Msg("collector: failed to configure api client")
	}

	broker := session.NewBroker(&logger)
	gate := gatekeeper.New(gatekeeper.Options{
		Checker:  client,
		Dates:    repo.NewUploadDateRepository(runner),
		Location: cfg.Location,
		Logger:   &logger,
		OnChange: func(s domain.CategoryUploadState) { broker.Publish(session.UploadStateEvent(s)) },
	})
	if err := gate.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("collector: upload dates unavailable, starting without fallback history")
	}

	q := queue.New(queue.Options{
		Repo:       repo.NewPendingRepository(runner),
		Replayer:   client,
		Logger:     &logger,
		OnReplayed: func(item domain.PendingSyncItem) { broker.Publish(session.ReplayedEvent(item)) },
	})

	monitor := connectivity.NewMonitor(connectivity.MonitorOptions{
		Prober:   client,
		Target:   cfg.ConnectivityURL,
		Interval: cfg.ConnectivityProbe,
		Timeout:  cfg.HTTPClientTimeout,
		Initial:  true,
		Logger:   &logger,
	})

	coord := submission.New(submission.Options{
		Writer:       client,
		Gate:         gate,
		Queue:        q,
		Connectivity: monitor,
		Logger:       &logger,
		Delay:        cfg.SubmitDelay,
		FollowUp:     cfg.FollowUpRefresh,
	})

	sess := session.New(session.Options{
		Roster:             rosters,
		Gate:               gate,
		Coordinator:        coord,
		Queue:              q,
		Monitor:            monitor,
		Broker:             broker,
		Logger:             &logger,
		RefreshInterval:    cfg.StatusRefresh,
		DayInterval:        cfg.DayCheckInterval,
		BackgroundInterval: cfg.BackgroundSync,
	})
	go sess.Run(ctx)

	app := handlers.NewApp(sess, i18n.New(cfg.DefaultLocale), &logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("api", client.BaseURL()).Msgf("collector listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("collector stopped")
}
