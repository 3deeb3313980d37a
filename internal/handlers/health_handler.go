package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// HealthHandler reports dependency reachability. A nil dependency is reported
// as disabled.
type HealthHandler struct {
	db    *sql.DB
	redis *redis.Client
}

func NewHealthHandler(db *sql.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Health reports service health
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Database: "disabled", Redis: "disabled"}
	status := http.StatusOK

	if h.db != nil {
		resp.Database = "up"
		if err := h.db.PingContext(ctx); err != nil {
			resp.Database = "down"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	if h.redis != nil {
		resp.Redis = "up"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			resp.Redis = "down"
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}

	SendJSON(w, status, resp)
}
