// Command caseintake is the case-intake orchestration server: it serves
// the webhook/cron HTTP surface and, when the queue is disabled, runs
// case processing in-process.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/svcdesk/caseintake/pkg/audit"
	"github.com/svcdesk/caseintake/pkg/classification"
	"github.com/svcdesk/caseintake/pkg/clarification"
	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/contextpack"
	"github.com/svcdesk/caseintake/pkg/database"
	"github.com/svcdesk/caseintake/pkg/escalation"
	"github.com/svcdesk/caseintake/pkg/intake"
	"github.com/svcdesk/caseintake/pkg/llm"
	"github.com/svcdesk/caseintake/pkg/monitor"
	"github.com/svcdesk/caseintake/pkg/musclememory"
	"github.com/svcdesk/caseintake/pkg/queue"
	"github.com/svcdesk/caseintake/pkg/repository"
	"github.com/svcdesk/caseintake/pkg/servicenow"
	"github.com/svcdesk/caseintake/pkg/slack"
	"github.com/svcdesk/caseintake/pkg/validator"
	"github.com/svcdesk/caseintake/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	}

	log.Printf("starting caseintake %s", version.Full())

	ctx := context.Background()
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(ctx) }()

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()
	log.Println("connected to PostgreSQL")

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warning: redis unreachable at %s: %v", addr, err)
		}
	}

	auditSink := audit.NewSink(dbClient.DB)
	flagCache := repository.NewFlagCache(rdb)

	snClient := servicenow.NewClient(cfg.ServiceNow)
	legacyCase := repository.NewLegacyCaseStore(dbClient.DB)
	legacyBusiness := repository.NewLegacyBusinessContextStore(dbClient.DB)
	legacyKB := repository.NewLegacyKBStore(dbClient.DB)
	legacyNotes := repository.NewLegacyWorkNoteWriter(dbClient.DB)

	repoAdapter := repository.NewAdapter(cfg.FeatureFlags, repository.Stores{
		LegacyCase:     legacyCase,
		NewCase:        snClient,
		LegacyBusiness: legacyBusiness,
		NewBusiness:    snClient,
		LegacyKB:       legacyKB,
		NewKB:          snClient,
		LegacyNotes:    legacyNotes,
		NewNotes:       snClient,
	}, flagCache, auditSink)

	similarFinder := contextpack.NewSimilarCaseFinder(dbClient.DB)
	mmStore := musclememory.NewPostgresStore(dbClient.DB)
	mmRetriever := musclememory.NewRetriever(mmStore, musclememory.HashEmbedder{}, cfg.Embedding)
	loader := contextpack.NewLoader(repoAdapter, similarFinder, mmRetriever)

	llmClient := llm.NewAnthropicClient(cfg.LLM)
	classifier := classification.NewPipeline(llmClient)
	engine := validator.NewEngine(cfg.Thresholds, cfg.Validator)
	gateStore := validator.NewStore(dbClient.DB)

	notifier := slack.NewNotifier(slack.NotifierConfig{
		Token:        os.Getenv(cfg.Slack.TokenEnv),
		DashboardURL: getEnv("DASHBOARD_URL", "https://caseintake.internal"),
	})

	clarificationStore := clarification.NewStore(dbClient.DB)
	clarificationMgr := clarification.NewManager(clarificationStore, gateStore, notifier, repoAdapter, cfg.Clarification)

	escalationStore := escalation.NewStore(dbClient.DB)
	escalationMgr := escalation.NewManager(cfg.Escalation, cfg.Thresholds.EscalationBIScore, escalationStore, notifier)

	stuckCaseMonitor := monitor.NewMonitor(gateStore, notifier, cfg.Slack.EscalationChannelID, cfg.Retention)

	casePipeline := intake.NewPipeline(loader, classifier, engine, gateStore, clarificationMgr, escalationMgr, repoAdapter)
	publisher := queue.NewPublisher(cfg.Queue, dbClient.DB, casePipeline)

	authenticator := intake.NewAuthenticator(cfg.ServiceNow, cfg.Slack)
	deduper := intake.NewDeduper(rdb, cfg.Server.DedupWindow)
	dispatcher := intake.NewDispatcher(authenticator, deduper, publisher, clarificationMgr, escalationMgr, stuckCaseMonitor, cfg.Server)

	gin.SetMode(getEnv("GIN_MODE", "release"))
	router := gin.Default()
	router.Use(tracingMiddleware(tp))

	router.GET("/healthz", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(reqCtx, dbClient.DB.DB)
		status := http.StatusOK
		body := gin.H{"status": "healthy", "database": dbHealth}
		if err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["error"] = err.Error()
		}
		if rdb != nil {
			if err := rdb.Ping(reqCtx).Err(); err != nil {
				status = http.StatusServiceUnavailable
				body["redis"] = "unreachable"
			} else {
				body["redis"] = "healthy"
			}
		}
		c.JSON(status, body)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	dispatcher.Register(router)

	httpPort := cfg.Server.HTTPPort
	if httpPort == "" {
		httpPort = getEnv("HTTP_PORT", "8080")
	}
	log.Printf("http server listening on :%s", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
