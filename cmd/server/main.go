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

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend/indexed"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend/internaldb"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/backend/relational"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/binding"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/binding/celeval"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/config"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/engine"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/handlers"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/metrics"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/middleware"
	"github.com/kartikbazzad/bunbase/bunsearch/internal/schema"
	"github.com/kartikbazzad/bunbase/bunsearch/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	store, err := internaldb.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open internal store: %v", err)
	}
	defer store.Close()

	adapters := []backend.Adapter{
		indexed.New(indexed.NewClient(cfg.IndexURL)),
		internaldb.New(store),
	}

	openSQL := func(driver, dsn string) *sql.DB {
		db, err := sql.Open(driver, dsn)
		if err != nil {
			log.Fatalf("Failed to open %s connection: %v", driver, err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
		return db
	}
	if cfg.PostgresDSN != "" {
		adapters = append(adapters, relational.New(relational.Postgres{}, openSQL("pgx", cfg.PostgresDSN)))
	}
	if cfg.MySQLDSN != "" {
		adapters = append(adapters, relational.New(relational.MySQL{}, openSQL("mysql", cfg.MySQLDSN)))
	}
	if cfg.MSSQLDSN != "" {
		adapters = append(adapters, relational.New(relational.MSSQL{}, openSQL("sqlserver", cfg.MSSQLDSN)))
	}

	evaluator, err := celeval.New()
	if err != nil {
		log.Fatalf("Failed to create snippet evaluator: %v", err)
	}

	eng := engine.New(
		schema.NewClient(cfg.SchemaURL),
		binding.NewResolver(evaluator),
		backend.NewRegistry(adapters...),
		time.Duration(cfg.EvalTimeoutMS)*time.Millisecond,
		time.Duration(cfg.QueryTimeoutMS)*time.Millisecond,
	)

	searchHandler, err := handlers.NewSearchHandler(eng, handlers.HeaderSession{})
	if err != nil {
		log.Fatalf("Failed to create search handler: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), metrics.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimit(cfg.RatePerSecond, cfg.RateBurst))
	v1.POST("/tables/:tableID/rows/search", searchHandler.Search)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("bunsearch listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
