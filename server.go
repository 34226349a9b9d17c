package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/obrasur/procurement_backend/config"
	"bitbucket.org/obrasur/procurement_backend/handlers"
	"bitbucket.org/obrasur/procurement_backend/models"
	"bitbucket.org/obrasur/procurement_backend/utils"
	"bitbucket.org/obrasur/procurement_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// requesterMiddleware reads the requester identity headers set by the
// frontend gateway and attaches them to the request context. Auth itself
// is handled upstream.
func requesterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id, err := strconv.Atoi(c.GetHeader("x-requester-id")); err == nil && id > 0 {
			ctx = utils.SetRequesterIdInContext(ctx, id)
		}
		if name := c.GetHeader("x-requester-name"); name != "" {
			ctx = utils.SetRequesterNameInContext(ctx, name)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()

	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(requesterMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/requisitions/:id", handlers.GetRequisition)
	r.GET("/requisitions/:id/availability", handlers.ComputeAvailability)
	r.DELETE("/resources/:id/cache", handlers.EvictResourceCache)

	r.POST("/quotations", handlers.CreateQuotation)
	r.GET("/quotations/:id", handlers.GetQuotation)
	r.POST("/quotations/:id/details", handlers.AddResourceToQuotation)
	r.DELETE("/quotation-details/:id", handlers.RemoveResourceFromQuotation)
	r.POST("/quotations/:id/providers", handlers.ReceiveProviderQuotation)
	r.POST("/quotations/:id/evaluate", handlers.TransitionToEvaluation)
	r.GET("/quotations/:id/comparison", handlers.CompareBids)
	r.GET("/quotations/:id/comparison/export", handlers.ExportBidComparison)
	r.POST("/quotations/:id/award", handlers.AwardProvider)
	r.POST("/quotations/:id/purchase-order", handlers.GeneratePurchaseOrder)
	r.POST("/quotations/:id/reject", handlers.RejectAward)

	r.GET("/provider-quotations/:id", handlers.GetProviderQuotation)
	r.GET("/purchase-orders/:id", handlers.GetPurchaseOrder)
	r.GET("/transfer-orders/:id", handlers.GetTransferOrder)

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Nightly sweep: reject provider proformas whose validity window has
	// lapsed without evaluation.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("15 2 * * *", func() {
		ctx := utils.SetRequesterNameInContext(context.Background(), "System")
		ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
		expired, err := workflow.ExpireStaleProviderQuotations(ctx)
		if err != nil {
			config.LogError(logger, "server.go", "main", "ExpireStaleProviderQuotations", nil, err)
			return
		}
		if expired > 0 {
			logger.WithFields(logrus.Fields{
				"field":   "expirySweep",
				"expired": expired,
			}).Info("expired stale provider quotations")
		}
	}); err != nil {
		config.LogError(logger, "server.go", "main", "cron.AddFunc", nil, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
