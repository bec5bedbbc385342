package routes

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sharath018/family-events-backend/config"
	_ "github.com/sharath018/family-events-backend/docs"
	"github.com/sharath018/family-events-backend/database"
	"github.com/sharath018/family-events-backend/internal/approval"
	"github.com/sharath018/family-events-backend/internal/auditlog"
	"github.com/sharath018/family-events-backend/internal/automation"
	"github.com/sharath018/family-events-backend/internal/calendar"
	"github.com/sharath018/family-events-backend/internal/event"
	"github.com/sharath018/family-events-backend/internal/orchestrator"
	"github.com/sharath018/family-events-backend/internal/reports"
	"github.com/sharath018/family-events-backend/middleware"
	"github.com/sharath018/family-events-backend/utils"
)

// Services exposes the long-lived services main needs for background
// loops (discovery ticker, expiry sweep, report schedule, consumer)
type Services struct {
	Orchestrator *orchestrator.Service
	Approval     *approval.Service
	Reports      *reports.Service
	ReportsRepo  reports.Repository
	Automation   automation.Engine
}

func Setup(r *gin.Engine, cfg *config.Config, profile *config.FamilyProfile, publisher *utils.KafkaPublisher) *Services {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")

	// ========== Audit Log Module ==========
	auditRepo := auditlog.NewRepository(database.DB)
	auditSvc := auditlog.NewService(auditRepo)
	auditHandler := auditlog.NewHandler(auditSvc)

	// ========== Events ==========
	eventRepo := event.NewRepository(database.DB)
	eventSvc := event.NewService(eventRepo, auditSvc)
	eventHandler := event.NewHandler(eventSvc)

	eventRoutes := api.Group("/events")
	{
		eventRoutes.POST("", eventHandler.IngestCandidates)
		eventRoutes.GET("", eventHandler.ListEvents)
		eventRoutes.GET("/stats", eventHandler.GetStats)
		eventRoutes.GET("/:id", eventHandler.GetEvent)
	}

	// ========== Calendar ==========
	var provider calendar.Provider
	if cfg.GoogleCredentialsPath != "" {
		gp, err := calendar.NewGoogleProvider(context.Background(), cfg.GoogleCredentialsPath)
		if err != nil {
			log.Printf("⚠️ Google Calendar unavailable, conflict checks will warn: %v", err)
			provider = &calendar.UnavailableProvider{Reason: err.Error()}
		} else {
			provider = gp
		}
	} else {
		log.Println("⚠️ GOOGLE_CREDENTIALS_PATH not set, conflict checks will warn")
		provider = &calendar.UnavailableProvider{Reason: "no credentials configured"}
	}
	externalTimeout := time.Duration(cfg.ExternalTimeoutSeconds) * time.Second
	checker := calendar.NewCheckerService(provider, profile, externalTimeout)

	// ========== SMS Approval ==========
	locker := &utils.RedisLocker{}
	gateway := approval.NewTwilioGateway(cfg)
	approvalRepo := approval.NewRepository(database.DB)
	approvalSvc := approval.NewService(approvalRepo, gateway, locker, auditSvc, profile.ParentPhone)
	approvalHandler := approval.NewHandler(approvalSvc)

	webhookRoutes := api.Group("/webhooks")
	webhookRoutes.Use(middleware.WebhookRateLimiter())
	{
		webhookRoutes.POST("/sms", approvalHandler.IncomingSMS)
	}
	api.GET("/approvals/pending", approvalHandler.ListPending)

	// ========== Registration Automation ==========
	engine := automation.NewChromeEngine(cfg.MaxConcurrentRegistrations, externalTimeout)
	automator := automation.NewAutomator(engine, profile)

	// ========== Orchestrator ==========
	orchestratorSvc := orchestrator.NewService(
		eventRepo, locker, publisher, automator, checker, approvalSvc,
		provider, auditSvc, profile, cfg,
	)
	// Approved replies trigger registration without waiting for the batch
	approvalSvc.SetRegistrar(orchestratorSvc)
	orchestratorHandler := orchestrator.NewHandler(orchestratorSvc)

	pipelineRoutes := api.Group("/pipeline")
	{
		pipelineRoutes.POST("/discover", orchestratorHandler.RunDiscovery)
		pipelineRoutes.POST("/register", orchestratorHandler.RegisterApproved)
	}

	// ========== Reports ==========
	reportsRepo := reports.NewRepository(database.DB)
	emailer := reports.NewEmailSender(cfg)
	reportsSvc := reports.NewService(reportsRepo, emailer, reports.NewExporter(), auditSvc, config.ReportDir, cfg.ReportToEmail, profile.ParentEmail)
	reportsHandler := reports.NewHandler(reportsSvc)

	reportRoutes := api.Group("/reports")
	{
		reportRoutes.GET("/summary", reportsHandler.GetSummary)
		reportRoutes.POST("/send", reportsHandler.SendReport)
		reportRoutes.GET("/export", reportsHandler.ExportReport)
	}

	// ========== Audit Logs ==========
	auditRoutes := api.Group("/auditlogs")
	{
		auditRoutes.GET("", auditHandler.GetAuditLogs)
	}

	return &Services{
		Orchestrator: orchestratorSvc,
		Approval:     approvalSvc,
		Reports:      reportsSvc,
		ReportsRepo:  reportsRepo,
		Automation:   engine,
	}
}
