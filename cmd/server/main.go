// Eggchain core: реестр яиц, баллы и задания.
// События транспорта приходят из Kafka, статистика отдается по HTTP,
// уведомления уходят в RabbitMQ
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	api "github.com/tohatch/eggchain/internal/api"
	db "github.com/tohatch/eggchain/internal/db"
	kafka "github.com/tohatch/eggchain/internal/external/kafka"
	rabbit "github.com/tohatch/eggchain/internal/external/rabbitmq"
	interf "github.com/tohatch/eggchain/internal/interfaces"
	services "github.com/tohatch/eggchain/internal/services"
	otelobs "github.com/tohatch/eggchain/observability/otel"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// log
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// config
	port := os.Getenv("EGGCHAIN_PORT")
	if port == "" {
		panic("env EGGCHAIN_PORT is not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// tracing
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		shutdown := otelobs.InitTracer(ctx)
		defer shutdown()
	}

	// snapshot storage
	var store interf.SnapshotStorage
	if os.Getenv("EGGCHAIN_MONGO") != "" {
		mg, err := db.NewMongoSnapshot()
		if err != nil {
			logger.Error(err.Error())
			panic(err)
		}
		store = mg
	} else {
		store = db.NewFileSnapshot(logger)
	}

	// архив для explorer
	var archive interf.ArchiveStorage
	if os.Getenv("EGGCHAIN_DB") != "" {
		a, err := db.NewArchiveDB(logger)
		if err != nil {
			logger.Error(err.Error())
			panic(err)
		}
		archive = a
	}

	// cache
	var cache interf.CacheStorage
	if os.Getenv("EGGCHAIN_CACHE_URL") != "" {
		c, err := db.NewCacheService()
		if err != nil {
			logger.Error(err.Error())
		} else {
			cache = c
		}
	}

	// notifier
	var notifier interf.Notifier
	if os.Getenv("RABBIT_URL") != "" {
		r, err := rabbit.NewRabbitNotifier()
		if err != nil {
			logger.Error(err.Error())
			panic(err)
		}
		defer r.Close()
		notifier = r
	}

	// services
	ledger, err := services.NewLedgerService(logger, store, archive, cache, notifier)
	if err != nil {
		logger.Error(err.Error())
		panic(err)
	}

	// api handlers
	h := api.NewHandler(ledger, archive, logger)
	srv := &http.Server{
		Handler:      otelhttp.NewHandler(h, "api"),
		Addr:         ":" + port,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ledger.SnapshotLoop(gctx)
		return nil
	})

	g.Go(func() error {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// события транспорта
	if os.Getenv("KAFKA_UPDATES_URL") != "" {
		reader, err := kafka.GetNewReader("updates")
		if err != nil {
			logger.Error(err.Error())
			panic(err)
		}
		defer reader.CloseReader()

		// TODO: default
		var workers int
		wenv := os.Getenv("EGGCHAIN_WORKERS")
		if wenv == "" {
			workers = 5
		} else {
			workers, err = strconv.Atoi(wenv)
			if err != nil {
				workers = 5
			}
		}

		for i := 0; i < workers; i++ {
			g.Go(func() error {
				worker(gctx, ledger, logger, reader)
				return nil
			})
		}
	}

	// shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		cancel()
		timeout, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tcancel()
		if err := srv.Shutdown(timeout); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	if err := g.Wait(); err != nil {
		logger.Error(err.Error())
	}
}

// worker for kafka events
func worker(ctx context.Context, ledger *services.LedgerService, logger *zap.Logger, reader *kafka.KafkaUpdates) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := reader.GetNewMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error(err.Error())
				continue
			}
			if err := ledger.HandleEvent(ctx, msg); err != nil {
				logger.Error(err.Error())
			}
		}
	}
}
