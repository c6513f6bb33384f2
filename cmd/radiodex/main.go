package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiodex/radiodex/internal/cache"
	"github.com/radiodex/radiodex/internal/config"
	"github.com/radiodex/radiodex/internal/engage"
	"github.com/radiodex/radiodex/internal/metrics"
	"github.com/radiodex/radiodex/internal/prober"
	"github.com/radiodex/radiodex/internal/server"
	"github.com/radiodex/radiodex/internal/service"
	"github.com/radiodex/radiodex/internal/store"
)

// jobLockTTL bounds how long a crashed instance can hold the shared
// background-job lock.
const jobLockTTL = 2 * time.Hour

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use environment")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Open (and migrate) the catalog.
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to Redis if REDIS_URL is configured.
	var rds *cache.Redis
	var appStore store.Store = db
	var seen engage.FingerprintCache = engage.NewMemoryCache()
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer rds.Close()

		if err := rds.Ping(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "redis ping: %v\n", err)
			os.Exit(1)
		}

		appStore = store.NewCachedStore(db, rds)
		seen = engage.NewRedisCache(rds)
		fmt.Fprintln(os.Stderr, "redis connected (caching and shared throttling enabled)")
	} else {
		fmt.Fprintln(os.Stderr, "redis disabled (REDIS_URL not set)")
	}

	pc := prober.NewClient(cfg.ProbeTimeout, cfg.UserAgent)
	tracker := engage.NewTracker(appStore, seen)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runCatalogJobs(ctx, cfg, appStore, pc, rds)

	srv := server.New(appStore, cfg, tracker, pc)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

// runCatalogJobs runs the maintenance cycle: an ingestion pass at startup
// when a directory URL is configured, then revalidation plus duplicate sweep
// on the configured interval. When Redis is available the cycle is guarded
// by a distributed lock so only one instance per catalog runs it.
func runCatalogJobs(ctx context.Context, cfg *config.Config, s store.Store, pc *prober.Client, rds *cache.Redis) {
	if cfg.DirectoryURL != "" {
		runLocked(ctx, rds, "jobs:ingest", func() {
			res, err := service.Ingest(ctx, s, pc, cfg.DirectoryURL, cfg.UserAgent, cfg.FetchTimeout, cfg.IngestConcurrency)
			if err != nil {
				log.Printf("startup ingest: %v", err)
				return
			}
			metrics.StationsIngested.Add(float64(res.Added))
		})
	}

	ticker := time.NewTicker(cfg.RevalidateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("catalog jobs stopping")
			return
		case <-ticker.C:
		}

		runLocked(ctx, rds, "jobs:revalidate", func() {
			stats, err := service.Revalidate(ctx, s, pc)
			if err != nil {
				log.Printf("revalidate: %v", err)
				return
			}
			metrics.RevalidationsRun.Inc()
			metrics.StationsOnline.Set(float64(stats.Online))
			metrics.StationsTotal.Set(float64(stats.Total))

			if flagged, err := service.SweepDuplicates(ctx, s); err != nil {
				log.Printf("dedup: %v", err)
			} else if flagged > 0 {
				log.Printf("dedup: flagged %d duplicate stations", flagged)
			}
		})
	}
}

// runLocked executes job under the named distributed lock when Redis is
// configured, or directly otherwise. A held lock means another instance is
// already on it, so the job is skipped, not queued.
func runLocked(ctx context.Context, rds *cache.Redis, key string, job func()) {
	if rds == nil {
		job()
		return
	}
	unlock, err := cache.TryLock(ctx, rds, key, jobLockTTL)
	if err != nil {
		if err == cache.ErrLocked {
			log.Printf("%s: already running on another instance", key)
		} else {
			log.Printf("%s: lock: %v", key, err)
		}
		return
	}
	defer unlock()
	job()
}
