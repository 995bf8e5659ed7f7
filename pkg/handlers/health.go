package handlers

import (
	"net/http"
	"os"
	"time"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/utils"
)

// HealthHandler 健康检查与调试端点
type HealthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(cfg *config.Config, db database.DatabaseInterface) *HealthHandler {
	return &HealthHandler{config: cfg, db: db}
}

// GET /
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := h.db.HealthCheck(); err != nil {
		status = "degraded"
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"status":      status,
		"environment": h.config.Environment,
		"time":        time.Now().Format(time.RFC3339),
	})
}

// GET /ping
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]string{"message": "pong"})
}

// GET /debug/db-pool（仅开发环境挂载）
func (h *HealthHandler) DBPoolStats(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, database.GetConnectionStats())
}

// GET /debug/env-check（仅开发环境挂载，只报告存在性，不回显取值）
func (h *HealthHandler) EnvCheck(w http.ResponseWriter, r *http.Request) {
	keys := []string{
		"POSTGRES_DSN",
		"USE_MEMORY_DB",
		"CLERK_SECRET_KEY",
		"CLERK_JWKS_URL",
		"CLERK_WEBHOOK_SECRET",
		"S3_ENDPOINT",
		"S3_BUCKET",
	}

	present := make(map[string]bool, len(keys))
	for _, key := range keys {
		present[key] = os.Getenv(key) != ""
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"environment": h.config.Environment,
		"present":     present,
	})
}
