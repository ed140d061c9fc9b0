package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-complaints-api/internal/handler"
	"github.com/noah-isme/civic-complaints-api/internal/middleware"
	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/internal/realtime"
	"github.com/noah-isme/civic-complaints-api/internal/service"
	"github.com/noah-isme/civic-complaints-api/pkg/config"
	"github.com/noah-isme/civic-complaints-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/civic-complaints-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/civic-complaints-api/pkg/middleware/requestid"
	"github.com/noah-isme/civic-complaints-api/pkg/storage"
)

type services struct {
	auth          *service.AuthService
	complaints    *service.ComplaintService
	chat          *service.ChatService
	notifications *service.NotificationService
	departments   *service.DepartmentService
	users         *service.UserService
	analytics     *service.AnalyticsService
	reports       *service.ReportService
	audit         middleware.AuditWriter
	metrics       *service.MetricsService
	hub           *realtime.Hub
	readiness     map[string]handler.ReadinessCheck
}

func newRouter(cfg *config.Config, logr *zap.Logger, svcs services, uploads *storage.LocalStorage) *gin.Engine {
	cors := corsmiddleware.NewPolicy(cfg.CORS.AllowedOrigins)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(cors.Middleware())
	r.Use(middleware.Metrics(svcs.metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	if uploads != nil && cfg.Storage.PublicPath != "" {
		r.Static(cfg.Storage.PublicPath, uploads.Dir())
	}

	ops := handler.NewMetricsHandler(svcs.metrics, svcs.readiness)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	ws := handler.NewWebSocketHandler(svcs.auth, svcs.hub, cors.CheckOrigin, logr)
	r.GET("/ws", ws.Connect)

	authenticated := middleware.JWT(svcs.auth)
	adminOnly := middleware.AdminOnly()
	staffOrAdmin := middleware.RequireRoles(models.RoleAdmin, models.RoleDepartmentStaff)
	citizens := middleware.RequireRoles(models.RoleUser)

	api := r.Group(cfg.APIPrefix)

	authHandler := handler.NewAuthHandler(svcs.auth)
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authenticated, authHandler.Logout)
	auth.GET("/profile", authenticated, authHandler.Profile)
	auth.PUT("/profile", authenticated, authHandler.UpdateProfile)

	complaintHandler := handler.NewComplaintHandler(svcs.complaints)
	complaints := api.Group("/complaints", authenticated)
	complaints.POST("", complaintHandler.Create)
	complaints.GET("", complaintHandler.List)
	complaints.GET("/location", complaintHandler.Locations)
	complaints.GET("/:id", complaintHandler.Get)
	complaints.PUT("/:id/status", complaintHandler.UpdateStatus)
	complaints.PUT("/:id/assign", adminOnly, complaintHandler.Assign)
	complaints.PUT("/:id/resolve", staffOrAdmin, complaintHandler.Resolve)
	complaints.POST("/:id/feedback", citizens, complaintHandler.Feedback)

	chatHandler := handler.NewChatHandler(svcs.chat)
	chat := api.Group("/chat", authenticated)
	chat.GET("/:complaintId", chatHandler.List)
	chat.POST("/:complaintId", chatHandler.Send)

	notificationHandler := handler.NewNotificationHandler(svcs.notifications)
	notifications := api.Group("/notifications", authenticated)
	notifications.GET("", notificationHandler.List)
	notifications.PUT("/read-all", notificationHandler.MarkAllRead)
	notifications.PUT("/:id/read", notificationHandler.MarkRead)
	notifications.DELETE("/:id", notificationHandler.Delete)

	departmentHandler := handler.NewDepartmentHandler(svcs.departments)
	departments := api.Group("/departments", authenticated)
	departments.GET("", departmentHandler.List)
	departments.GET("/:id", departmentHandler.Get)
	departments.GET("/:id/workload", departmentHandler.Workload)
	departmentAudit := middleware.Audit(svcs.audit, logr, models.AuditActionDepartmentSave, "department")
	staffAudit := middleware.Audit(svcs.audit, logr, models.AuditActionDepartmentStaff, "department")
	departments.POST("", adminOnly, departmentAudit, departmentHandler.Create)
	departments.PUT("/:id", adminOnly, departmentAudit, departmentHandler.Update)
	departments.POST("/:id/staff", adminOnly, staffAudit, departmentHandler.AddStaff)
	departments.DELETE("/:id/staff", adminOnly, staffAudit, departmentHandler.RemoveStaff)

	userHandler := handler.NewUserHandler(svcs.users)
	users := api.Group("/users", authenticated)
	users.GET("/stats", userHandler.Stats)
	users.GET("/stats/:id", userHandler.Stats)
	users.GET("", adminOnly, userHandler.List)
	users.GET("/:id", adminOnly, userHandler.Get)
	users.PUT("/:id", adminOnly, userHandler.Update)
	users.DELETE("/:id", adminOnly, userHandler.Delete)

	analyticsHandler := handler.NewAnalyticsHandler(svcs.analytics)
	analytics := api.Group("/analytics", authenticated, adminOnly)
	analytics.GET("/dashboard", analyticsHandler.Dashboard)
	analytics.GET("/trend", analyticsHandler.Trend)

	if svcs.reports != nil {
		reportHandler := handler.NewReportHandler(svcs.reports, logr)
		analytics.POST("/reports", middleware.Audit(svcs.audit, logr, models.AuditActionReportRequest, "report"), reportHandler.GenerateReport)
		analytics.GET("/reports/:id", reportHandler.ReportStatus)
		api.GET("/export/:token", reportHandler.DownloadReport)
	}

	return r
}
