/**
 * 应用:应用装配
 * @author: sun977
 * @date: 2025.08.29
 * @description: 配置加载、日志初始化、数据库连接、表迁移与各层组件装配
 * @func: App
 */
package master

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chainscan/internal/adapter"
	"chainscan/internal/config"
	fuzzhandler "chainscan/internal/handler/fuzz"
	reporthandler "chainscan/internal/handler/report"
	scanhandler "chainscan/internal/handler/scan"
	fuzzmodel "chainscan/internal/model/fuzz"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/pkg/database"
	"chainscan/internal/pkg/logger"
	fuzzrepo "chainscan/internal/repo/mysql/fuzz"
	scanrepo "chainscan/internal/repo/mysql/scan"
	redisrepo "chainscan/internal/repo/redis"
	fuzzservice "chainscan/internal/service/fuzz"
	generatorservice "chainscan/internal/service/generator"
	reportservice "chainscan/internal/service/report"
	scannerservice "chainscan/internal/service/scanner"
)

// App 应用程序结构体
type App struct {
	config    *config.Config
	router    *Router
	db        *gorm.DB
	redis     *redis.Client
	scheduler *scannerservice.Scheduler
}

// NewApp 创建并装配应用实例
func NewApp(configPath, env string) (*App, error) {
	cfg, err := config.LoadConfig(configPath, env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewMySQLConnection(&cfg.Database.MySQL)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	redisClient, err := database.NewRedisConnection(&cfg.Database.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	// 仓库层
	projectRepo := scanrepo.NewProjectRepository(db)
	scanRepo := scanrepo.NewScanRepository(db)
	findingRepo := scanrepo.NewFindingRepository(db)
	campaignRepo := fuzzrepo.NewCampaignRepository(db)
	crashRepo := fuzzrepo.NewCrashRepository(db)
	summaryRepo := redisrepo.NewSummaryRepository(redisClient)

	// 工具适配器注册表
	registry := adapter.NewDefaultRegistry(&cfg.Fuzzer)

	// 服务层
	aggregator := scannerservice.NewAggregator(findingRepo, crashRepo, summaryRepo)
	supervisor := scannerservice.NewSupervisor(registry, scanRepo, &cfg.Scanner)
	query := scannerservice.NewQuery(projectRepo, scanRepo, findingRepo, crashRepo, aggregator)
	monitor := fuzzservice.NewMonitor(campaignRepo, crashRepo, scanRepo)
	exporter := reportservice.NewExporter(scanRepo, findingRepo, monitor)
	notifier := reportservice.NewWebhookNotifier(&cfg.Webhook, exporter)
	scheduler := scannerservice.NewScheduler(registry, projectRepo, scanRepo, aggregator, supervisor, notifier, &cfg.Scanner)
	generator := generatorservice.NewService(scheduler, cfg.Scanner.GeneratedDir)

	// 处理器层
	projectHandler := scanhandler.NewProjectHandler(query)
	scanHandler := scanhandler.NewScanHandler(scheduler, query)
	generatorHandler := scanhandler.NewGeneratorHandler(generator)
	campaignHandler := fuzzhandler.NewCampaignHandler(monitor)
	reportHandler := reporthandler.NewReportHandler(exporter)

	middleware := NewMiddlewareManager(&cfg.Security)
	router := NewRouter(
		cfg.Server.Mode,
		middleware,
		projectHandler,
		scanHandler,
		generatorHandler,
		campaignHandler,
		reportHandler,
		healthChecker(db, summaryRepo),
		&cfg.App,
	)
	router.SetupRoutes()

	logger.LogSystemEvent("app", "startup", "application assembled", logrus.InfoLevel, map[string]interface{}{
		"tools": registry.Names(),
		"env":   cfg.App.Environment,
	})

	return &App{
		config:    cfg,
		router:    router,
		db:        db,
		redis:     redisClient,
		scheduler: scheduler,
	}, nil
}

// autoMigrate 迁移全部业务表
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&scanmodel.Project{},
		&scanmodel.Scan{},
		&scanmodel.ToolRun{},
		&scanmodel.Finding{},
		&fuzzmodel.Campaign{},
		&fuzzmodel.Seed{},
		&fuzzmodel.CoverageSignal{},
		&fuzzmodel.CrashReport{},
	)
}

// healthChecker 构建依赖健康检查函数
func healthChecker(db *gorm.DB, summaryRepo *redisrepo.SummaryRepository) func() map[string]string {
	return func() map[string]string {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"mysql": "ok", "redis": "ok"}
		if sqlDB, err := db.DB(); err != nil {
			checks["mysql"] = err.Error()
		} else if err := sqlDB.PingContext(ctx); err != nil {
			checks["mysql"] = err.Error()
		}
		if err := summaryRepo.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
		}
		return checks
	}
}

// GetConfig 获取应用配置
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetRouter 获取路由器实例
func (a *App) GetRouter() *Router {
	return a.router
}

// Stop 停止应用程序
// 等待在途扫描落定后关闭数据库和Redis连接
func (a *App) Stop() error {
	if active := a.scheduler.ActiveScans(); active > 0 {
		logger.LogSystemEvent("app", "shutdown", "waiting for active scans", logrus.WarnLevel, map[string]interface{}{
			"active_scans": active,
		})
	}

	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.LogError(err, "close_mysql", map[string]interface{}{"layer": "APP"})
		}
	}
	if err := a.redis.Close(); err != nil {
		logger.LogError(err, "close_redis", map[string]interface{}{"layer": "APP"})
	}

	logger.LogSystemEvent("app", "shutdown", "application stopped", logrus.InfoLevel, nil)
	return nil
}
