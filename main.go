package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"chatmemo/internal/analytics"
	"chatmemo/internal/api"
	"chatmemo/internal/config"
	"chatmemo/internal/export"
	"chatmemo/internal/lock"
	"chatmemo/internal/memory"
	"chatmemo/internal/redis"
	"chatmemo/internal/service/ai"
	"chatmemo/internal/service/chat"
	"chatmemo/internal/storage"
	"chatmemo/internal/telemetry"
	"chatmemo/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("CHATMEMO_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := telemetry.Init(ctx, cfg.Tracing)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	}

	dataDir := cfg.BasicConfig.DataDir
	fileStore, err := storage.NewFileSessionStore(filepath.Join(dataDir, "sessions"))
	if err != nil {
		log.Fatalf("open session store: %v", err)
	}
	var sessions storage.SessionStore = fileStore
	cacheTTL := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	switch strings.ToLower(cfg.Cache.Backend) {
	case "memory":
		local := storage.NewMemoryCache(cacheTTL)
		if rdb != nil {
			// peers drop their copies when this instance writes
			broadcast := storage.NewBroadcastCache(local, rdb)
			if err := broadcast.Listen(ctx); err != nil {
				log.Fatalf("listen for cache invalidations: %v", err)
			}
			sessions = storage.NewCachedSessionStore(fileStore, broadcast)
		} else {
			sessions = storage.NewCachedSessionStore(fileStore, local)
		}
	case "redis":
		if rdb == nil {
			log.Fatalf("cache backend redis requires redis.enabled")
		}
		sessions = storage.NewCachedSessionStore(fileStore, storage.NewRedisCache(rdb, cacheTTL))
	case "":
	default:
		log.Fatalf("unsupported cache backend: %s", cfg.Cache.Backend)
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, 0)
	}

	memRepo, err := storage.NewFileMemoryRepository(filepath.Join(dataDir, "users"))
	if err != nil {
		log.Fatalf("open memory store: %v", err)
	}

	sink, err := openAnalyticsSink(cfg)
	if err != nil {
		log.Fatalf("open analytics sink: %v", err)
	}
	asyncSink := analytics.NewAsyncSink(sink, worker.Config{
		MaxWorkers: cfg.Analytics.Workers,
		QueueSize:  cfg.Analytics.QueueSize,
	})

	var mirror export.Mirror
	if cfg.Exports.S3Bucket != "" {
		s3Mirror, err := export.NewS3Mirror(ctx, cfg.Exports)
		if err != nil {
			log.Fatalf("init export mirror: %v", err)
		}
		mirror = s3Mirror
	}
	exporter, err := export.New(filepath.Join(dataDir, "exports"), mirror)
	if err != nil {
		log.Fatalf("init exporter: %v", err)
	}
	exporter.StartCleaner(ctx,
		time.Duration(cfg.Exports.TTLMinutes)*time.Minute,
		time.Duration(cfg.Exports.CleanIntervalMinutes)*time.Minute,
	)

	engine := ai.NewEngineFromConfig(ctx, cfg)
	chatService, err := chat.NewService(chat.Dependencies{
		Sessions:    sessions,
		Memory:      memory.NewStore(memRepo, locker),
		Engine:      engine,
		Exporter:    exporter,
		Analytics:   asyncSink,
		Locker:      locker,
		DefaultUser: cfg.BasicConfig.DefaultUser,
	})
	if err != nil {
		log.Fatalf("init chat service: %v", err)
	}
	log.Printf("chat service ready (mode: %s, data dir: %s)", chatService.Mode(), dataDir)

	handlers := api.NewHandler(chatService, cfg.BasicConfig.AllowedOrigins, cfg.BasicConfig.MetricsEnabled)
	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8000"
	}
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := asyncSink.Close(shutdownCtx); err != nil {
		log.Printf("flush analytics: %v", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}

// openAnalyticsSink returns the JSONL sink unless analytics.sink names a configured database.
func openAnalyticsSink(cfg *config.Config) (analytics.Sink, error) {
	name := cfg.Analytics.Sink
	if name == "" || name == "file" {
		return analytics.NewFileSink(filepath.Join(cfg.BasicConfig.DataDir, "analytics", "events.jsonl"))
	}
	db, err := storage.Open(name, cfg)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(db, name); err != nil {
		db.Close()
		return nil, err
	}
	return analytics.NewSQLSink(db, name), nil
}
