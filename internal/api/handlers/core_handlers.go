package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/justthetip/treasury_service/internal/infrastructure/cache"
	"github.com/justthetip/treasury_service/internal/infrastructure/database"
	"github.com/justthetip/treasury_service/pkg/logger"
)

// CoreHandlers serves health and readiness probes.
type CoreHandlers struct {
	db     *sqlx.DB
	cache  cache.RedisClient
	logger *logger.Logger
}

// NewCoreHandlers creates core handlers.
func NewCoreHandlers(db *sqlx.DB, cacheClient cache.RedisClient, log *logger.Logger) *CoreHandlers {
	return &CoreHandlers{db: db, cache: cacheClient, logger: log}
}

// Health handles GET /health with dependency checks.
func (h *CoreHandlers) Health(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := database.HealthCheck(h.db); err != nil {
		checks["database"] = "unhealthy"
		healthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.cache != nil {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			checks["redis"] = "unhealthy"
			healthy = false
		} else {
			checks["redis"] = "healthy"
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":    overall,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}

// Ready handles GET /health/ready.
func (h *CoreHandlers) Ready(c *gin.Context) {
	if err := database.HealthCheck(h.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live handles GET /health/live.
func (h *CoreHandlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
