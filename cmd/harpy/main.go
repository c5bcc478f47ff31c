// Command harpy runs the full live-tracking backbone: per-provider polling,
// current-state caching, fusion rule evaluation, relay fanout to connected
// clients, and the HTTP surface that fronts all of it.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/harpy-platform/harpy-core/internal/api"
	"github.com/harpy-platform/harpy-core/internal/bus"
	"github.com/harpy-platform/harpy-core/internal/buildinfo"
	"github.com/harpy-platform/harpy-core/internal/config"
	"github.com/harpy-platform/harpy-core/internal/fusion"
	"github.com/harpy-platform/harpy-core/internal/geo"
	"github.com/harpy-platform/harpy-core/internal/health"
	"github.com/harpy-platform/harpy-core/internal/metrics"
	"github.com/harpy-platform/harpy-core/internal/model"
	"github.com/harpy-platform/harpy-core/internal/provider"
	"github.com/harpy-platform/harpy-core/internal/relay"
	"github.com/harpy-platform/harpy-core/internal/scanloop"
	"github.com/harpy-platform/harpy-core/internal/store"
)

func main() {
	log.Printf("harpy %s (commit %s, built %s) starting", buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildTime)

	// Phase 1: env config, fatal on error.
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		fatalf("%v", err)
	}

	// Phase 2: persistence bootstrap (migrations + repos).
	engine, dbCloser, err := store.PersistenceBootstrap(envCfg.StateDir, envCfg.CacheDir)
	if err != nil {
		fatalf("persistence bootstrap: %v", err)
	}

	// Phase 3: runtime config, loaded from state.db or defaulted, held
	// behind an atomic.Pointer so future admin edits can swap it in place.
	runtimeCfg := &atomic.Pointer[config.RuntimeConfig]{}
	runtimeCfg.Store(loadRuntimeConfig(engine.StateRepo))

	// Phase 4: in-memory current-state cache fronting the dirty-set engine.
	cache := store.NewStateCache(200_000, time.Hour)

	flushWorker := store.NewCacheFlushWorker(
		engine,
		cache.Readers(),
		func() int { return 500 },
		func() time.Duration { return 5 * time.Second },
		time.Second,
	)
	flushWorker.Start()
	log.Println("cache flush worker started")

	// Phase 5: health supervisor, one circuit breaker per provider.
	rc := runtimeCfg.Load()
	supervisor := health.NewSupervisor(rc.CircuitFailureThreshold, rc.CircuitResetTimeout.Std())

	// Phase 6: bus — in-process fanout, optionally mirrored to Redis.
	busCfg := bus.DefaultConfig()
	var liveBus bus.Bus
	if envCfg.RedisURL != "" {
		liveBus, err = bus.NewRedisBus(redisAddr(envCfg.RedisURL), busCfg)
		if err != nil {
			fatalf("connect redis bus: %v", err)
		}
		log.Printf("bus: mirroring to redis at %s", envCfg.RedisURL)
	} else {
		liveBus = bus.NewMemBus(busCfg)
		log.Println("bus: in-process only (REDIS_URL unset)")
	}

	// Phase 7: metrics, wired to the relay hub's live client count once it
	// exists (Phase 9).
	var clientCounter atomic.Int64
	collectors := metrics.New(func() float64 { return float64(clientCounter.Load()) })

	// Phase 8: fusion engine + rule-evaluation loop publishing derived
	// alerts/links back onto the bus.
	fusionEngine := fusion.NewEngine(fusion.Config{
		H3Resolution:     rc.FusionH3Resolution,
		ProximityMeters:  rc.FusionProximityMeters,
		SpeedAnomalyMps:  rc.FusionSpeedAnomalyMps,
		AltitudeAnomalyM: rc.FusionAltitudeAnomalyM,
		DedupTTL:         rc.FusionAlertDedupTTL.Std(),
	})

	fusionStopCh := make(chan struct{})
	go scanloop.Run(fusionStopCh, 5*time.Second, time.Second, func() {
		var tracks []model.CurrentTrack
		cache.RangeTracks(func(t model.CurrentTrack) bool {
			tracks = append(tracks, t)
			return true
		})
		out := fusionEngine.Evaluate(tracks, time.Now())
		for _, group := range out.Groups {
			liveBus.PublishAlert(group.Alert)
			if err := engine.InsertAlert(group.Alert); err != nil {
				log.Printf("[fusion] insert alert failed: %v", err)
			}
			for _, link := range group.Links {
				liveBus.PublishLink(link)
				if err := engine.InsertLink(link); err != nil {
					log.Printf("[fusion] insert link failed: %v", err)
				}
			}
		}
	})
	log.Println("fusion evaluation loop started")

	// Phase 9: relay hub — subscription registry, filter pipeline, two-queue
	// writer, playback and seek all live behind this.
	relayHub := relay.NewHub(relay.ConfigFromRuntime(rc), liveBus, engine.DeltaRepo, collectors)
	relayCtx, cancelRelay := context.WithCancel(context.Background())
	go relayHub.Run(relayCtx)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-relayCtx.Done():
				return
			case <-ticker.C:
				clientCounter.Store(int64(relayHub.ClientCount()))
			}
		}
	}()
	log.Println("relay hub started")

	// Phase 10: snapshot job + retention sweep.
	snapshotJob := store.NewSnapshotJob(engine.StateRepo, cache, time.Duration(envCfg.SnapshotIntervalSecs)*time.Second)
	snapshotStopCh := make(chan struct{})
	go snapshotJob.Run(snapshotStopCh)
	log.Println("snapshot job started")

	retentionSweep, err := store.NewRetentionSweep(
		engine.DeltaRepo,
		envCfg.RetentionSweepSchedule,
		time.Duration(envCfg.DeltaLogRetentionHours)*time.Hour,
	)
	if err != nil {
		fatalf("retention sweep: %v", err)
	}
	retentionSweep.Start()
	log.Println("retention sweep started")

	// Phase 11: providers, one poller goroutine each.
	providerStopCh := make(chan struct{})
	if envCfg.EnableRealProviders {
		startProviders(envCfg, supervisor, cache, engine, liveBus, collectors, providerStopCh)
		log.Println("providers started")
	} else {
		log.Println("providers disabled (ENABLE_REAL_PROVIDERS=false)")
	}

	// Phase 12: HTTP server.
	httpServer := api.NewServer(envCfg.HTTPPort, relayHub, fusionEngine, engine.StateRepo, engine.DeltaRepo, collectors)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()
	log.Printf("http server listening on :%d", envCfg.HTTPPort)

	// Phase 13: wait for shutdown signal or a fatal server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runtimeErr error
	select {
	case sig := <-quit:
		log.Printf("received signal %v, shutting down", sig)
	case err := <-serverErrCh:
		log.Printf("http server error: %v", err)
		runtimeErr = err
	}

	// Phase 14: graceful shutdown, reverse dependency order.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	close(providerStopCh)
	cancelRelay()
	close(snapshotStopCh)
	retentionSweep.Stop()
	close(fusionStopCh)
	flushWorker.Stop()
	if err := dbCloser.Close(); err != nil {
		log.Printf("db close error: %v", err)
	}

	if runtimeErr != nil {
		fatalf("exiting after server error: %v", runtimeErr)
	}
	log.Println("shutdown complete")
}

func loadRuntimeConfig(repo *store.StateRepo) *config.RuntimeConfig {
	cfg, version, err := repo.GetSystemConfig()
	if err != nil {
		fatalf("load system config: %v", err)
	}
	if cfg == nil {
		log.Println("no persisted runtime config found, using defaults")
		return config.NewDefaultRuntimeConfig()
	}
	log.Printf("loaded persisted runtime config (version %d)", version)
	return cfg
}

// startProviders wires every enabled Provider's Poller: OnBatch folds
// normalised deltas into the cache and marks them dirty for the flush
// worker, then republishes the batch on the live bus; OnPollResult feeds the
// poll-outcome counters.
func startProviders(
	envCfg *config.EnvConfig,
	supervisor *health.Supervisor,
	cache *store.StateCache,
	engine *store.Engine,
	liveBus bus.Bus,
	collectors *metrics.Collectors,
	stopCh chan struct{},
) {
	httpClient := &http.Client{Timeout: envCfg.ProviderFetchTimeout}

	providers := []provider.Provider{
		provider.NewOpenSkyProvider(httpClient, "", nil, 500),
		provider.NewCelesTrakProvider(httpClient, "", "STATIONS", 200),
		provider.NewUsgsSeismicProvider(httpClient, "", 2.5, 250, 3*time.Hour),
		provider.NewNexradRadarProvider(httpClient, "", "", []string{"KTLX", "KATX", "KAMX", "KDGX", "KABR"}),
		provider.NewNwsWeatherProvider(httpClient, "", "", [][2]float64{{37.7749, -122.4194}}),
		provider.NewOpenDataCatalogProvider(httpClient, "", 100),
	}

	for _, p := range providers {
		id := p.ID()
		intervalSecs := envCfg.ProviderPollIntervalSecs[id]

		poller := provider.NewPoller(provider.PollerConfig{
			Provider:        p,
			Supervisor:      supervisor,
			Interval:        time.Duration(intervalSecs) * time.Second,
			RateLimitFloor:  time.Duration(envCfg.ProviderRateLimitFloorSecs) * time.Second,
			FetchTimeout:    envCfg.ProviderFetchTimeout,
			BackoffBase:     5 * time.Second,
			BackoffMaxShift: 6,
			BackoffCap:      30 * time.Minute,
			OnBatch: func(providerID string, batch []model.TrackDelta) {
				for _, delta := range batch {
					cell, _ := geo.CellIndex(delta.Lat, delta.Lon, 8)
					var track model.CurrentTrack
					track.FromDelta(delta, cell)
					cache.SetTrack(track)
					engine.MarkCurrentTrack(track.ID)
				}
				liveBus.PublishTrackBatch(bus.TrackBatch{
					ProviderID: providerID,
					Deltas:     batch,
					TsMs:       time.Now().UnixMilli(),
				})
				if err := engine.AppendBatch(batch); err != nil {
					log.Printf("[provider:%s] append delta log failed: %v", providerID, err)
				}
			},
			OnPollResult: func(providerID string, err error) {
				if err == nil {
					collectors.ProviderPollSuccess.WithLabelValues(providerID).Inc()
				} else {
					collectors.ProviderPollError.WithLabelValues(providerID).Inc()
				}
				status := supervisor.Status(providerID)
				cache.SetProviderStatus(status)
				engine.MarkProviderStatus(providerID)
				liveBus.PublishProviderStatus(status)
			},
		})

		go poller.Run(stopCh)
	}
}

// redisAddr strips an optional redis:// scheme, since NewRedisBus dials a
// bare host:port and REDIS_URL is conventionally supplied as a full URL.
func redisAddr(raw string) string {
	for _, prefix := range []string{"redis://", "rediss://"} {
		if strings.HasPrefix(raw, prefix) {
			return strings.TrimPrefix(raw, prefix)
		}
	}
	return raw
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
