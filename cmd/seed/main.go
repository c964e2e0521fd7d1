// 初始化系统权限数据并指定首个管理员的工具
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sxedu-cn/perm-backend/internal/config"
	"github.com/sxedu-cn/perm-backend/internal/database"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/repository"
	"github.com/sxedu-cn/perm-backend/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	db := database.GetDB()

	// 初始化 Repository
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	userRoleRepo := repository.NewUserRoleRepository(db)
	userPermRepo := repository.NewUserPermissionRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	userDir := repository.NewUserDirectory(db)

	// 初始化 Service
	rbacService := service.NewRBACService(roleRepo, permRepo, userRoleRepo, userPermRepo)
	templateService := service.NewTemplateService(templateRepo, permRepo, roleRepo, userPermRepo)

	// 初始化系统权限与角色
	if err := rbacService.InitDefaults(ctx); err != nil {
		log.Fatalf("初始化默认角色和权限失败: %v", err)
	}
	log.Println("默认角色和权限初始化完成")

	// 初始化系统权限模板
	if err := templateService.InitSystemTemplates(ctx); err != nil {
		log.Fatalf("初始化系统模板失败: %v", err)
	}
	log.Println("系统模板初始化完成")

	// 可选：为指定用户分配管理员角色
	if len(os.Args) < 2 {
		log.Println("未指定用户，跳过管理员分配（用法: seed <用户ID>）")
		return
	}
	userID := os.Args[1]

	// 确保用户影子记录存在
	if err := userDir.Ensure(ctx, userID, ""); err != nil {
		log.Fatalf("写入用户记录失败: %v", err)
	}

	adminRole, err := roleRepo.GetByCode(ctx, model.RoleAdmin)
	if err != nil {
		log.Fatalf("管理员角色不存在: %v", err)
	}
	if err := rbacService.AssignRole(ctx, userID, adminRole.ID); err != nil {
		log.Fatalf("分配角色失败: %v", err)
	}

	fmt.Printf("成功为用户 %s 分配系统管理员角色\n", userID)
}
