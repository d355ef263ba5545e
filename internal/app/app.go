// Package app wires configuration, storage, and HTTP routes into the
// runnable plan service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/finsight/planservice/internal/config"
	"github.com/finsight/planservice/internal/db"
	adminapi "github.com/finsight/planservice/internal/http/api/admin"
	"github.com/finsight/planservice/internal/http/api/front"
	"github.com/finsight/planservice/internal/ratelimit"
	"github.com/finsight/planservice/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the plan API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	if info, errInfo := parseDSNInfo(dsn); errInfo == nil {
		log.Infof("using %s database", info.DatabaseType)
	}

	if errAdmin := EnsureAdminFromEnv(conn); errAdmin != nil {
		return errAdmin
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	planStore := store.NewPlanStore(conn)
	limiter := ratelimit.NewManager(ratelimit.DBSettingsProvider(conn), nil, nil)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogMiddleware())

	adminapi.RegisterAdminRoutes(engine, conn, jwtConfig, planStore)
	front.RegisterFrontRoutes(engine, conn, planStore, limiter)

	if defaultPort <= 0 {
		defaultPort = 8318
	}
	addr := fmt.Sprintf(":%d", defaultPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting plan service on %s with config=%s", addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

// requestLogMiddleware logs each request with method, path, status, and latency.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
