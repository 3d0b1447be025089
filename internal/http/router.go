package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kardia-ai/skillbus/internal/storage"
	"github.com/kardia-ai/skillbus/pkg/hermes"
)

// BrokerStatus reports the state of the bus connection.
type BrokerStatus interface {
	IsConnected() bool
}

// SessionStats exposes the dispatch engine's session bookkeeping.
type SessionStats interface {
	Stats() hermes.Stats
	Sessions() []hermes.SessionInfo
}

// NewRouter executes the newRouter function.
func NewRouter(broker BrokerStatus, sessions SessionStats, transcriptsDir string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"broker_connected": broker.IsConnected(),
			"sessions":         sessions.Stats(),
		})
	})

	router.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": sessions.Sessions()})
	})

	router.GET("/transcripts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sites": storage.ListSites(transcriptsDir)})
	})

	router.GET("/transcripts/:site", func(c *gin.Context) {
		records, err := storage.ListRecords(transcriptsDir, c.Param("site"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
