package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sharath018/family-events-backend/config"
	"github.com/sharath018/family-events-backend/database"
	"github.com/sharath018/family-events-backend/internal/approval"
	"github.com/sharath018/family-events-backend/internal/auditlog"
	"github.com/sharath018/family-events-backend/internal/event"
	"github.com/sharath018/family-events-backend/internal/reports"
	"github.com/sharath018/family-events-backend/routes"
	"github.com/sharath018/family-events-backend/utils"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg)

	profile, err := config.LoadFamily(cfg.FamilyConfigPath)
	if err != nil {
		log.Fatalf("❌ Failed to load family profile: %v", err)
	}
	log.Printf("👨‍👩‍👧 Family profile loaded: %d child(ren), %d calendar(s)",
		len(profile.Children), len(profile.Members))

	// Init Redis
	if err := utils.InitRedis(cfg); err != nil {
		log.Fatalf("❌ Redis init failed: %v", err)
	}

	// Init Kafka
	publisher := utils.InitKafka(cfg)
	defer publisher.Close()

	// Auto-migrate models
	log.Println("🔄 Running database migrations...")
	if err := db.AutoMigrate(
		&auditlog.AuditLog{},
		&event.Event{},
		&approval.ApprovalRequest{},
		&reports.PipelineOutcome{},
	); err != nil {
		panic(fmt.Sprintf("❌ DB AutoMigrate failed: %v", err))
	}
	log.Println("✅ Database migrations completed")

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.BaseURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	services := routes.Setup(router, cfg, profile, publisher)
	defer services.Automation.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drain pipeline outcomes into Postgres for reports
	go reports.StartOutcomeConsumer(ctx, utils.NewOutcomeReader(cfg), services.ReportsRepo)

	startBackgroundLoops(ctx, cfg, services)

	log.Printf("🚀 Family events backend listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}

// startBackgroundLoops runs the recurring pipeline work: discovery and
// scoring, approval expiry, registration batches, and the daily report
func startBackgroundLoops(ctx context.Context, cfg *config.Config, services *routes.Services) {
	discoveryInterval := time.Duration(cfg.DiscoveryCycleMinutes) * time.Minute
	approvalTTL := time.Duration(cfg.ApprovalTTLHours) * time.Hour

	go func() {
		ticker := time.NewTicker(discoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := services.Orchestrator.RunDiscoveryCycle(ctx); err != nil {
					log.Printf("❌ Discovery cycle failed: %v", err)
				}
				services.Orchestrator.ProcessApprovedEvents(ctx)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if expired := services.Approval.ExpireStale(ctx, approvalTTL); expired > 0 {
					log.Printf("⏰ Expired %d stale approval request(s)", expired)
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result := services.Reports.SendPipelineReport(ctx)
				if !result.Success && result.Fallback == "" {
					log.Printf("❌ Daily report delivery failed: %s", result.Message)
				}
			}
		}
	}()
}
