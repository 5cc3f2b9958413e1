package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"estoque/internal/adapter/handler"
	"estoque/internal/adapter/messaging"
	"estoque/internal/adapter/storage"
	"estoque/internal/config"
	"estoque/internal/core/service"
	"estoque/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// .env is a dev convenience, absence is fine
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.TokenTTL)

	var publisher port.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		log.Printf("publishing stock events to %s", cfg.KafkaTopic)
	} else {
		log.Println("KAFKA_BROKERS not set, stock events disabled")
	}

	// Initialize the process-wide coordinator
	coordinator := service.NewCoordinator(mysqlAdapter, mysqlAdapter, redisAdapter, publisher, service.Config{
		ItemTTL:           cfg.ItemTTL,
		LedgerTTL:         cfg.LedgerTTL,
		ThrottleInterval:  cfg.ThrottleInterval,
		LocalDedupWindow:  cfg.LocalDedupWindow,
		RemoteDedupWindow: cfg.RemoteDedupWindow,
		QueueSize:         cfg.QueueSize,
		PublishWorkers:    cfg.PublishWorkers,
	})

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(coordinator)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpHandler.Routes(),
	}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	// Drain the event queue and stop publish workers
	coordinator.Close()
	log.Println("coordinator stopped")

	// Close connections
	rdb.Close()
	db.Close()
	log.Println("connections closed")
}
