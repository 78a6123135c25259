package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/astana-data/hotspot.report/internal/api"
	"github.com/astana-data/hotspot.report/internal/config"
	"github.com/astana-data/hotspot.report/internal/dataset"
	"github.com/astana-data/hotspot.report/internal/db"
	"github.com/astana-data/hotspot.report/internal/hotspot"
	"github.com/astana-data/hotspot.report/internal/lookup"
	"github.com/astana-data/hotspot.report/internal/observability"
	"github.com/astana-data/hotspot.report/internal/render"
	"github.com/astana-data/hotspot.report/internal/units"
	"github.com/astana-data/hotspot.report/internal/version"
)

var (
	configPath   = flag.String("config", "", "Engine config JSON (defaults to built-in configuration)")
	dbPath       = flag.String("db", "hotspot_reports.db", "SQLite database path")
	listen       = flag.String("listen", ":8080", "Listen address")
	datasetPath  = flag.String("dataset", "", "Velocity history CSV (one timestep per row)")
	once         = flag.Bool("once", false, "Run one detection pass, write artefacts to -out, and exit")
	outDir       = flag.String("out", "reports", "Output directory for -once artefacts")
	interval     = flag.Duration("interval", 5*time.Minute, "Detection interval in serve mode")
	displayUnits = flag.String("units", units.KMPH, "Display units for heat values (kmph, kph, mph, mps)")
	liveLookups  = flag.Bool("live-lookups", false, "Use live organisation and event APIs (reads CATALOG_API_KEY, EVENTS_API_URL, EVENTS_API_KEY)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Println(version.String())

	if !units.IsValid(*displayUnits) {
		log.Fatalf("Invalid units %q. Valid units are: %s", *displayUnits, units.GetValidUnitsString())
	}
	if *datasetPath == "" {
		log.Fatal("Missing required -dataset flag")
	}

	cfg := loadConfig()
	pipelineCfg := pipelineConfig(cfg)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	orgs, events := buildLookups(cfg, metrics)
	forecaster := buildForecaster(cfg)

	pipeline, err := hotspot.NewPipeline(pipelineCfg, forecaster, orgs, events, metrics)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", *dbPath, err)
	}
	defer database.Close()

	if *once {
		if err := runOnce(pipeline, database, pipelineCfg); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		return
	}

	serve(pipeline, database, pipelineCfg, registry)
}

func loadConfig() *config.EngineConfig {
	if *configPath == "" {
		return config.MustLoadDefaultConfig()
	}
	cfg, err := config.LoadEngineConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}
	return cfg
}

func pipelineConfig(cfg *config.EngineConfig) hotspot.PipelineConfig {
	return hotspot.PipelineConfig{
		GridSize:       cfg.GetGridSize(),
		Threshold:      cfg.GetHotspotThreshold(),
		TileSizeMeters: cfg.GetTileSizeMeters(),
		Bounds: hotspot.GeoBounds{
			LatMin: cfg.GetLatMin(),
			LatMax: cfg.GetLatMax(),
			LonMin: cfg.GetLonMin(),
			LonMax: cfg.GetLonMax(),
		},
		HorizonSteps:       cfg.GetPredictionHorizonSteps(),
		StepMinutes:        cfg.GetStepMinutes(),
		PublishStep:        cfg.GetPublishStep(),
		LookupRadiusMeters: cfg.GetLookupRadiusMeters(),
		LookupTimeout:      cfg.GetLookupTimeout(),
		Refine: hotspot.RefineParams{
			OrgFactorCap:     cfg.GetOrgFactorCap(),
			OrgFactorScale:   cfg.GetOrgFactorScale(),
			EventMultiplier:  cfg.GetEventMultiplier(),
			LateClosingBonus: cfg.GetLateClosingBonus(),
			LateClosingHour:  cfg.GetLateClosingHour(),
		},
	}
}

// buildLookups wires the organisation and event lookups. Live clients
// sit behind rounded-coordinate caches; without -live-lookups the
// pipeline runs on null lookups and refinement degrades to 1.0.
func buildLookups(cfg *config.EngineConfig, metrics *observability.Metrics) (hotspot.OrganizationLookup, hotspot.EventLookup) {
	if !*liveLookups {
		return lookup.NullOrganizations{}, lookup.NullEvents{}
	}

	catalogKey := os.Getenv("CATALOG_API_KEY")
	if catalogKey == "" {
		log.Fatal("-live-lookups requires CATALOG_API_KEY")
	}

	catalog := lookup.NewCatalogClient(catalogKey, cfg.GetOrgResultLimit(), cfg.GetLookupTimeout())
	cachedOrgs := lookup.NewCachedOrganizations(catalog, cfg.GetLookupCacheSize())
	cachedOrgs.SetObserver(cacheObserver(metrics, "organizations"))

	var eventLookup hotspot.EventLookup = lookup.NullEvents{}
	if eventsURL := os.Getenv("EVENTS_API_URL"); eventsURL != "" {
		events := lookup.NewEventsClient(os.Getenv("EVENTS_API_KEY"), eventsURL, cfg.GetLookupTimeout())
		cachedEvents := lookup.NewCachedEvents(events, cfg.GetLookupCacheSize())
		cachedEvents.SetObserver(cacheObserver(metrics, "events"))
		eventLookup = cachedEvents
	} else {
		log.Println("EVENTS_API_URL not set; running without event context")
	}

	return cachedOrgs, eventLookup
}

func cacheObserver(metrics *observability.Metrics, kind string) lookup.CacheObserver {
	return func(hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		metrics.LookupCache.WithLabelValues(kind, result).Inc()
	}
}

func buildForecaster(cfg *config.EngineConfig) hotspot.Forecaster {
	forecastURL := os.Getenv("FORECAST_API_URL")
	if forecastURL == "" {
		log.Println("FORECAST_API_URL not set; producing current-state reports only")
		return nil
	}
	return lookup.NewForecastClient(forecastURL, cfg.GetLookupTimeout())
}

// runDetection loads the dataset and executes one pipeline run,
// persisting the result.
func runDetection(ctx context.Context, pipeline *hotspot.Pipeline, database *db.DB, cfg hotspot.PipelineConfig) (*hotspot.RunResult, error) {
	history, err := dataset.LoadHistory(*datasetPath, cfg.GridSize)
	if err != nil {
		return nil, err
	}

	result, err := pipeline.Run(ctx, history)
	if err != nil {
		return nil, err
	}
	if err := database.SaveRun(ctx, result); err != nil {
		return nil, err
	}

	log.Printf("run %s: %d current clusters, prediction=%v",
		result.RunID, len(result.Current.Clusters), result.Predicted != nil)
	return result, nil
}

// runOnce executes a single detection pass and writes the report
// artefacts to the output directory.
func runOnce(pipeline *hotspot.Pipeline, database *db.DB, cfg hotspot.PipelineConfig) error {
	ctx := context.Background()
	result, err := runDetection(ctx, pipeline, database, cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeReportArtefacts(result.Current, "current"); err != nil {
		return err
	}
	if result.Predicted != nil {
		if err := writeReportArtefacts(*result.Predicted, "predicted"); err != nil {
			return err
		}
	}

	for _, c := range result.Current.Clusters {
		fmt.Printf("hot spot at %.4f,%.4f intensity %.2f (%d cells, factor %.2f)\n",
			c.CenterLat, c.CenterLon, c.Intensity, c.MemberCount, c.RefinementFactor)
	}
	return nil
}

func writeReportArtefacts(report hotspot.Report, name string) error {
	csvPath := filepath.Join(*outDir, fmt.Sprintf("tiles_%s.csv", name))
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", csvPath, err)
	}
	defer csvFile.Close()
	if err := render.WriteTilesCSV(csvFile, report.Tiles); err != nil {
		return err
	}

	clustersPath := filepath.Join(*outDir, fmt.Sprintf("clusters_%s.csv", name))
	clustersFile, err := os.Create(clustersPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", clustersPath, err)
	}
	defer clustersFile.Close()
	if err := render.WriteClustersCSV(clustersFile, report.Clusters); err != nil {
		return err
	}

	htmlPath := filepath.Join(*outDir, fmt.Sprintf("heatmap_%s.html", name))
	htmlFile, err := os.Create(htmlPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", htmlPath, err)
	}
	defer htmlFile.Close()
	if err := render.TileHeatmapHTML(report, htmlFile); err != nil {
		return err
	}

	log.Printf("wrote %s, %s, %s", csvPath, clustersPath, htmlPath)
	return nil
}

// serve runs detections on an interval and exposes the report API
// until interrupted.
func serve(pipeline *hotspot.Pipeline, database *db.DB, cfg hotspot.PipelineConfig, registry *prometheus.Registry) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := api.NewServer(database, *displayUnits, registry)
	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(server.ServeMux()),
	}

	go func() {
		if _, err := runDetection(ctx, pipeline, database, cfg); err != nil {
			log.Printf("initial run failed: %v", err)
		}
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := runDetection(ctx, pipeline, database, cfg); err != nil {
					log.Printf("scheduled run failed: %v", err)
				}
			}
		}
	}()

	go func() {
		log.Printf("listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
