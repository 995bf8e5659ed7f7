package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"project-collab-backend/pkg/config"
	"project-collab-backend/pkg/database"
	"project-collab-backend/pkg/handlers"
	customMiddleware "project-collab-backend/pkg/middleware"
	"project-collab-backend/pkg/services"
	"project-collab-backend/pkg/storage"
	"project-collab-backend/pkg/utils"
)

// Dependencies 路由器依赖的已初始化服务句柄
// 所有外部客户端在进程启动时构造一次，之后只读共享
type Dependencies struct {
	Config        *config.Config
	DB            database.DatabaseInterface
	Bucket        storage.Bucket
	Authenticator customMiddleware.Authenticator
	Projects      *services.ProjectService
	Conversations *services.ConversationService
	Users         *services.UserService
	Directory     handlers.IdentityDirectory
}

// NewRouter 构建完整的HTTP路由器（单体路由模式）
func NewRouter(deps Dependencies) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, deps)
	setupRoutes(router, deps)

	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, deps Dependencies) {
	cfg := deps.Config

	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件
	router.Use(middleware.Timeout(25 * time.Second))

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 认证中间件：有令牌则解析身份，无令牌匿名放行
	router.Use(customMiddleware.Auth(deps.Authenticator))
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, deps Dependencies) {
	cfg := deps.Config

	// 创建处理器
	healthHandler := handlers.NewHealthHandler(cfg, deps.DB)
	projectsHandler := handlers.NewProjectsHandler(deps.Projects)
	conversationsHandler := handlers.NewConversationsHandler(deps.Conversations)
	mediaHandler := handlers.NewMediaHandler(cfg, deps.DB, deps.Bucket)
	webhookHandler := handlers.NewWebhookHandler(cfg, deps.Users, deps.Directory)

	// 健康检查端点
	router.Get("/", healthHandler.Health)

	// 调试端点（仅开发环境）
	if cfg.IsDevelopment() {
		router.Get("/ping", healthHandler.Ping)
		router.Get("/debug/db-pool", healthHandler.DBPoolStats)
		router.Get("/debug/env-check", healthHandler.EnvCheck)
	}

	// 项目路由（需要认证，JSON请求体）
	router.Route("/projects", func(r chi.Router) {
		r.Use(customMiddleware.ContentTypeJSON)
		r.Use(customMiddleware.MaxBodySize(1 << 20))
		r.Get("/", customMiddleware.RequireAuth(projectsHandler.List))
		r.Post("/", customMiddleware.RequireAuth(projectsHandler.Create))
		r.Get("/{id}", customMiddleware.RequireAuth(projectsHandler.GetOne))
		r.Put("/{id}", customMiddleware.RequireAuth(projectsHandler.Update))
		r.Delete("/{id}", customMiddleware.RequireAuth(projectsHandler.Delete))
		r.Post("/{id}/assistants", customMiddleware.RequireAuth(projectsHandler.AddAssistant))
	})

	// 会话与消息路由（需要认证，JSON请求体）
	router.Route("/conversations", func(r chi.Router) {
		r.Use(customMiddleware.ContentTypeJSON)
		r.Use(customMiddleware.MaxBodySize(1 << 20))
		r.Post("/", customMiddleware.RequireAuth(conversationsHandler.Create))
		r.Post("/{id}/messages", customMiddleware.RequireAuth(conversationsHandler.SendMessage))
		r.Get("/{id}/messages", customMiddleware.RequireAuth(conversationsHandler.GetMessages))
		r.Put("/{id}/messages/{messageId}", customMiddleware.RequireAuth(conversationsHandler.EditMessage))
		r.Delete("/{id}/messages/{messageId}", customMiddleware.RequireAuth(conversationsHandler.DeleteMessage))
	})

	// 媒体路由（multipart，不挂ContentTypeJSON）
	router.Post("/upload/{project_id}", mediaHandler.Save) // 明确无需认证
	router.Post("/upload-multiple/{project_id}", customMiddleware.RequireAuth(mediaHandler.SaveMultiple))
	router.Get("/files/{id}", mediaHandler.Get)
	router.Get("/db-files", mediaHandler.ListDBFiles)
	router.Get("/bucket-files", mediaHandler.ListBucketFiles)
	router.Get("/demo", mediaHandler.DemoPage)

	// 身份提供商回调
	router.Route("/webhooks", func(r chi.Router) {
		r.Post("/clerk", webhookHandler.HandleClerkWebhook)
	})

	// 404和405处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, "Endpoint not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed,
			"METHOD_NOT_ALLOWED", "Method not allowed for this endpoint", "")
	})
}
