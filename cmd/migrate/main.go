/*
*
  - 数据库迁移工具
  - @author: sun977
  - @date: 2025.08.29
  - @description: 数据库模型迁移和演示数据初始化工具
  - @usage: go run main.go -env=test -seed=true -drop=true
    -drop
    是否先删除表（危险操作）
    -env string
    环境标识 (test, dev, prod) (default "test")
    -seed
    是否填充演示数据 (default true)
    -verbose
    是否显示详细日志
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"chainscan/internal/config"
	fuzzmodel "chainscan/internal/model/fuzz"
	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/pkg/database"
	"chainscan/internal/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MigrateOptions 迁移选项配置
type MigrateOptions struct {
	Environment string // 环境标识: test, dev, prod
	SeedData    bool   // 是否填充演示数据
	DropFirst   bool   // 是否先删除表（危险操作）
	Verbose     bool   // 是否显示详细日志
}

// DataSeeder 演示数据填充器
type DataSeeder struct {
	db  *gorm.DB
	env string
	log *logger.LoggerManager
}

func main() {
	opts := parseFlags()

	cfg, err := config.LoadConfig("", opts.Environment)
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	logManager, err := logger.InitLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}

	logManager.GetLogger().WithFields(logrus.Fields{
		"operation":   "database_migration",
		"environment": opts.Environment,
		"seed_data":   opts.SeedData,
		"drop_first":  opts.DropFirst,
	}).Info("开始数据库迁移")

	db, err := database.NewMySQLConnection(&cfg.Database.MySQL)
	if err != nil {
		logManager.GetLogger().WithFields(logrus.Fields{
			"operation": "database_connection",
			"error":     err.Error(),
		}).Fatal("数据库连接失败")
	}

	if err := performMigration(db, opts, logManager); err != nil {
		logManager.GetLogger().WithFields(logrus.Fields{
			"operation": "database_migration",
			"error":     err.Error(),
		}).Fatal("数据库迁移失败")
	}

	logManager.GetLogger().WithField("operation", "database_migration").Info("数据库迁移完成")
}

// parseFlags 解析命令行参数
func parseFlags() *MigrateOptions {
	opts := &MigrateOptions{}

	flag.StringVar(&opts.Environment, "env", "test", "环境标识 (test, dev, prod)")
	flag.BoolVar(&opts.SeedData, "seed", true, "是否填充演示数据")
	flag.BoolVar(&opts.DropFirst, "drop", false, "是否先删除表（危险操作）")
	flag.BoolVar(&opts.Verbose, "verbose", false, "是否显示详细日志")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "chainscan 数据库迁移工具\n\n")
		fmt.Fprintf(os.Stderr, "用法: %s [选项]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "选项:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n示例:\n")
		fmt.Fprintf(os.Stderr, "  %s -env=test -seed=true    # 测试环境迁移并填充演示数据\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -env=prod -seed=false   # 生产环境仅迁移表结构\n", os.Args[0])
	}

	flag.Parse()
	return opts
}

// performMigration 执行数据库迁移
func performMigration(db *gorm.DB, opts *MigrateOptions, logManager *logger.LoggerManager) error {
	if opts.DropFirst {
		if err := dropTables(db, logManager); err != nil {
			return fmt.Errorf("删除表失败: %w", err)
		}
	}

	if err := migrateModels(db, logManager); err != nil {
		return fmt.Errorf("模型迁移失败: %w", err)
	}

	if opts.SeedData {
		seeder := NewDataSeeder(db, opts.Environment, logManager)
		if err := seeder.SeedAll(); err != nil {
			return fmt.Errorf("数据填充失败: %w", err)
		}
	}

	return nil
}

// dropTables 删除所有表
// 危险操作，仅用于开发环境重置
func dropTables(db *gorm.DB, logManager *logger.LoggerManager) error {
	logManager.GetLogger().WithField("operation", "drop_tables").Warn("开始删除数据库表")

	// 按依赖关系逆序删除，子表在前
	models := []interface{}{
		&fuzzmodel.CrashReport{},
		&fuzzmodel.CoverageSignal{},
		&fuzzmodel.Seed{},
		&fuzzmodel.Campaign{},
		&scanmodel.Finding{},
		&scanmodel.ToolRun{},
		&scanmodel.Scan{},
		&scanmodel.Project{},
	}

	for _, model := range models {
		if err := db.Migrator().DropTable(model); err != nil {
			logManager.GetLogger().WithFields(logrus.Fields{
				"operation": "drop_table",
				"model":     fmt.Sprintf("%T", model),
				"error":     err.Error(),
			}).Error("删除表失败")
		}
	}

	return nil
}

// migrateModels 执行模型迁移
func migrateModels(db *gorm.DB, loggerMgr *logger.LoggerManager) error {
	loggerMgr.GetLogger().Info("开始执行模型迁移...")

	models := []interface{}{
		// 扫描模块
		&scanmodel.Project{},
		&scanmodel.Scan{},
		&scanmodel.ToolRun{},
		&scanmodel.Finding{},

		// 模糊测试模块
		&fuzzmodel.Campaign{},
		&fuzzmodel.Seed{},
		&fuzzmodel.CoverageSignal{},
		&fuzzmodel.CrashReport{},
	}

	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("迁移模型 %T 失败: %w", model, err)
		}
		loggerMgr.GetLogger().WithField("model", fmt.Sprintf("%T", model)).Info("模型迁移成功")
	}

	loggerMgr.GetLogger().Info("所有模型迁移完成")
	return nil
}

// NewDataSeeder 创建数据填充器
func NewDataSeeder(db *gorm.DB, env string, logManager *logger.LoggerManager) *DataSeeder {
	return &DataSeeder{
		db:  db,
		env: env,
		log: logManager,
	}
}

// SeedAll 填充所有演示数据
func (s *DataSeeder) SeedAll() error {
	s.log.GetLogger().WithFields(logrus.Fields{
		"operation": "seed_data",
		"env":       s.env,
	}).Info("开始填充演示数据")

	seedFunctions := []struct {
		name string
		fn   func() error
	}{
		{"演示项目", s.seedProjects},
		{"演示活动", s.seedCampaigns},
	}

	for _, seed := range seedFunctions {
		s.log.GetLogger().WithFields(logrus.Fields{
			"operation": "seed_module",
			"module":    seed.name,
		}).Info("填充数据模块")

		if err := seed.fn(); err != nil {
			return fmt.Errorf("填充%s失败: %w", seed.name, err)
		}
	}

	s.log.GetLogger().WithField("operation", "seed_data").Info("演示数据填充完成")
	return nil
}

// seedProjects 填充演示项目
func (s *DataSeeder) seedProjects() error {
	projects := []scanmodel.Project{
		{
			Name: "demo-erc20",
			Path: "contracts/demo/ERC20.sol",
			Meta: `{"network": "testnet", "compiler": "0.8.19", "owner": "system"}`,
		},
		{
			Name: "demo-vault",
			Path: "contracts/demo/Vault.sol",
			Meta: `{"network": "testnet", "compiler": "0.8.19", "audited": false}`,
		},
	}

	for _, project := range projects {
		if err := s.db.Where("name = ?", project.Name).FirstOrCreate(&project).Error; err != nil {
			return fmt.Errorf("创建演示项目失败: %w", err)
		}
		s.log.GetLogger().WithField("project", project.Name).Info("演示项目创建成功")
	}

	return nil
}

// seedCampaigns 填充演示活动（仅test环境）
func (s *DataSeeder) seedCampaigns() error {
	if s.env != "test" {
		return nil
	}

	campaigns := []fuzzmodel.Campaign{
		{
			Name:     "demo-vault-fuzz",
			Target:   "contracts/demo/Vault.sol",
			Status:   fuzzmodel.CampaignStatusPending,
			Strategy: "coverage-guided",
			Metrics:  `{"crashes": 0, "covered_edges": {}, "seeds": 0}`,
		},
	}

	for _, campaign := range campaigns {
		if err := s.db.Where("name = ?", campaign.Name).FirstOrCreate(&campaign).Error; err != nil {
			return fmt.Errorf("创建演示活动失败: %w", err)
		}
		s.log.GetLogger().WithField("campaign", campaign.Name).Info("演示活动创建成功")
	}

	return nil
}
