package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/punchamoorthee/reconops/internal/api"
	"github.com/punchamoorthee/reconops/internal/auth"
	"github.com/punchamoorthee/reconops/internal/config"
	"github.com/punchamoorthee/reconops/internal/feed"
	"github.com/punchamoorthee/reconops/internal/jobs"
	"github.com/punchamoorthee/reconops/internal/match"
	"github.com/punchamoorthee/reconops/internal/notify"
	"github.com/punchamoorthee/reconops/internal/service"
	"github.com/punchamoorthee/reconops/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer st.Close()

	// Notification sink: kafka when brokers are configured, in-process
	// buffer otherwise (dev mode).
	var sink notify.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("Unable to build kafka publisher: %v", err)
		}
		defer kp.Close()
		sink = kp
	} else {
		log.Println("KAFKA_BROKERS not set, events buffered in process")
		sink = notify.NewMemoryPublisher()
	}

	var locker *redis.Client
	if cfg.RedisAddr != "" {
		locker = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
		defer locker.Close()
	}

	// Initialize Layers
	authorizer := auth.NewAllowlistAuthorizer(cfg.AdminIDs)
	matcher := service.NewMatcher(st, match.SubstringStrategy{})
	writer := service.NewWriter(st, sink)
	precharger := service.NewPrecharger(st, st, authorizer, sink)
	reporter := service.NewReporter(st, 0)

	feedClient := feed.NewHTTPClient(cfg.FeedBaseURL, cfg.FeedLinkID, cfg.FeedSecretKey, cfg.FeedTimeout)
	collector := service.NewCollector(feedClient, st, matcher, writer, cfg.FeedAccountRef, cfg.LookbackDays)

	if cfg.FeedBaseURL != "" {
		runner := jobs.NewRunner(collector, reporter, locker, cfg.CollectInterval, cfg.SweepHour)
		runner.Start(ctx)
	} else {
		log.Println("FEED_BASE_URL not set, polling disabled; webhook ingestion only")
	}

	handler := api.NewHandler(st, st, collector, writer, precharger, reporter, authorizer, cfg.AdminToken)

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/accounts", handler.CreateAccountHandler).Methods("POST")
	apiV1.HandleFunc("/accounts/{id}", handler.GetAccountHandler).Methods("GET")
	apiV1.HandleFunc("/accounts/{id}/entries", handler.GetAccountEntriesHandler).Methods("GET")
	apiV1.HandleFunc("/charge-requests", handler.CreateChargeRequestHandler).Methods("POST")
	apiV1.HandleFunc("/charge-requests/{id}", handler.GetChargeRequestHandler).Methods("GET")
	apiV1.HandleFunc("/webhook/bank-transactions", handler.BankWebhookHandler).Methods("POST")
	apiV1.HandleFunc("/reports/unmatched", handler.UnmatchedReportHandler).Methods("GET")
	apiV1.HandleFunc("/admin/confirmations", handler.RequireAdmin(handler.ManualConfirmHandler)).Methods("POST")
	apiV1.HandleFunc("/admin/precharges", handler.RequireAdmin(handler.PrechargeHandler)).Methods("POST")
	apiV1.HandleFunc("/admin/rematch", handler.RequireAdmin(handler.RematchHandler)).Methods("POST")

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		log.Println("Shutting down")
		srv.Shutdown(context.Background())
	}()

	log.Printf("Server starting on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
