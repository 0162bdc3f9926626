package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os/signal"
	"syscall"
	"time"

	"github.com/herdwatch/herdwatch-go/internal/alerting"
	"github.com/herdwatch/herdwatch-go/internal/api"
	"github.com/herdwatch/herdwatch-go/internal/attendance"
	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/datastore"
	"github.com/herdwatch/herdwatch-go/internal/errors"
	"github.com/herdwatch/herdwatch-go/internal/health"
	"github.com/herdwatch/herdwatch-go/internal/identify"
	"github.com/herdwatch/herdwatch-go/internal/imagesource"
	"github.com/herdwatch/herdwatch-go/internal/jobs"
	"github.com/herdwatch/herdwatch-go/internal/logging"
	"github.com/herdwatch/herdwatch-go/internal/monitor"
	"github.com/herdwatch/herdwatch-go/internal/mqtt"
	"github.com/herdwatch/herdwatch-go/internal/observability"
	"github.com/herdwatch/herdwatch-go/internal/vision"
)

const mqttConnectTimeout = 30 * time.Second

// RealtimeAnalysis starts the monitoring pipeline and runs it until a
// termination signal arrives.
func RealtimeAnalysis(settings *conf.Settings) error {
	log := logging.ForService("analysis")

	if settings.Main.Log.Enabled {
		fileLogger, closeLogger, err := logging.NewFileLogger(settings.Main.Log, "analysis", slog.LevelInfo)
		if err != nil {
			log.Warn("file logging disabled", "path", settings.Main.Log.Path, "error", err)
		} else {
			log = fileLogger
			defer func() {
				if err := closeLogger(); err != nil {
					logging.Error("failed to close log file", "error", err)
				}
			}()
		}
	}

	fmt.Printf("Starting herd monitor in realtime mode. Source: %s, interval: %ds, detection threshold: %v\n",
		settings.Monitor.Source,
		settings.Monitor.Interval,
		settings.Thresholds.DetectionConfidence)

	dataStore := datastore.New(settings)
	if dataStore == nil {
		return errors.Newf("no database output enabled, enable sqlite or mysql").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := dataStore.Open(); err != nil {
		return err
	}
	defer closeDataStore(dataStore)

	metrics := observability.NewMetrics()

	var mq mqtt.Client
	if settings.MQTT.Enabled {
		mq = mqtt.NewClient(settings, metrics)
		ctx, cancel := context.WithTimeout(context.Background(), mqttConnectTimeout)
		if err := mq.Connect(ctx); err != nil {
			log.Warn("mqtt connect failed, alerts will not be published", "error", err)
		}
		cancel()
		defer mq.Disconnect()
	}

	controller := buildPipeline(settings, dataStore, mq, metrics)

	if settings.WebServer.Enabled {
		server := api.New(settings, dataStore, metrics)
		go func() {
			if err := server.Start(); err != nil {
				log.Error("http server failed", "error", err)
			}
		}()
		defer func() {
			if err := server.Close(); err != nil {
				log.Error("http server close failed", "error", err)
			}
		}()
	}

	scheduler := jobs.NewScheduler(settings, dataStore, metrics)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return controller.Run(ctx)
}

// buildPipeline wires the capture, detection, identification, health and
// alerting stages into a controller.
func buildPipeline(settings *conf.Settings, dataStore datastore.Interface, mq mqtt.Client, metrics *observability.Metrics) *monitor.Controller {
	detector := vision.NewEngine(settings, nil,
		vision.NewHeuristicBackend(newRand(0)))

	refs := monitor.NewMuzzleReferenceStore(dataStore)
	resolver := identify.NewResolver(settings,
		identify.NewHeuristicTagReader(newRand(1)),
		identify.NewHeuristicQRDecoder(newRand(2)),
		identify.NewHeuristicMuzzleMatcher(newRand(3)),
		refs)

	assessor := health.NewEngine(nil, newRand(4))
	ledger := attendance.NewLedger(dataStore)
	dispatcher := alerting.NewDispatcher(settings, dataStore, mq, metrics)
	source := imagesource.NewDirectorySource(settings.Monitor.Source)

	return monitor.NewController(settings, source, detector, resolver, assessor,
		ledger, dispatcher, dataStore, metrics)
}

// newRand seeds an independent stream per pipeline stage.
func newRand(stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), stream))
}

func closeDataStore(store datastore.Interface) {
	if err := store.Close(); err != nil {
		logging.ForService("analysis").Error("failed to close database", "error", err)
	}
}
