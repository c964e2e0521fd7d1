// Package main 遗留授权模型迁移工具
// 把 role_module_accesses / user_module_accesses / user_overrides
// 三张遗留表翻译为细粒度授权，幂等可重跑
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/sxedu-cn/perm-backend/internal/config"
	"github.com/sxedu-cn/perm-backend/internal/database"
	"github.com/sxedu-cn/perm-backend/internal/middleware"
	"github.com/sxedu-cn/perm-backend/internal/migration"
	"github.com/sxedu-cn/perm-backend/internal/repository"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "", "配置文件路径")
	timeout := flag.Duration("timeout", 30*time.Minute, "迁移超时时间")
	flag.Parse()

	// 加载配置
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化数据库连接
	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer database.Close()
	log.Println("数据库连接成功")

	db := database.GetDB()
	migrator := migration.NewMigrator(
		repository.NewLegacyAccessRepository(db),
		repository.NewModuleRepository(db),
		repository.NewRoleRepository(db),
		repository.NewPermissionRepository(db),
		repository.NewUserPermissionRepository(db),
		middleware.GetLogger(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Println("开始迁移遗留授权模型...")
	results, err := migrator.MigrateAll(ctx)
	if err != nil {
		log.Fatalf("迁移失败: %v", err)
	}

	var totalErrors int
	for table, summary := range results {
		log.Printf("%s: 迁移 %d 条，跳过 %d 条，失败 %d 条",
			table, summary.Migrated, summary.Skipped, len(summary.Errors))
		for _, rowErr := range summary.Errors {
			log.Printf("  行 %s 失败: %s", rowErr.RowID, rowErr.Err)
		}
		totalErrors += len(summary.Errors)
	}

	if totalErrors > 0 {
		log.Printf("迁移完成，但有 %d 行失败，可修复数据后重跑", totalErrors)
		return
	}
	log.Println("迁移完成！")
}
