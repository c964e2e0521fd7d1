// Package main 数据库迁移工具
package main

import (
	"flag"
	"log"

	"github.com/sxedu-cn/perm-backend/internal/config"
	"github.com/sxedu-cn/perm-backend/internal/database"
	"github.com/sxedu-cn/perm-backend/internal/model"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "", "配置文件路径")
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

	// 执行迁移
	log.Println("开始执行数据库迁移...")

	// 迁移所有模型，含遗留表（迁移工具需要读取）
	models := []any{
		&model.Role{},
		&model.RoleHierarchy{},
		&model.RolePermission{},
		&model.UserRole{},
		&model.Permission{},
		&model.UserPermission{},
		&model.Delegation{},
		&model.PermissionTemplate{},
		&model.PermissionTemplateItem{},
		&model.Module{},
		&model.UserRef{},
		&model.RoleModuleAccess{},
		&model.UserModuleAccess{},
		&model.UserOverride{},
	}

	for _, m := range models {
		if err := database.AutoMigrate(m); err != nil {
			log.Fatalf("迁移失败: %v", err)
		}
	}

	log.Println("数据库迁移完成！")

	// 打印创建的表
	log.Println("已创建/更新的表:")
	log.Println("  - roles (角色表)")
	log.Println("  - role_hierarchies (角色继承边表)")
	log.Println("  - role_permissions (角色授权边表)")
	log.Println("  - user_roles (用户角色关联表)")
	log.Println("  - permissions (权限表)")
	log.Println("  - user_permissions (用户直接授权表)")
	log.Println("  - delegations (授权委托表)")
	log.Println("  - permission_templates (权限模板表)")
	log.Println("  - permission_template_items (模板条目表)")
	log.Println("  - modules (模块表)")
	log.Println("  - user_refs (用户影子表)")
	log.Println("  - role_module_accesses (遗留角色模块访问表)")
	log.Println("  - user_module_accesses (遗留用户模块访问表)")
	log.Println("  - user_overrides (遗留用户覆盖表)")
}
