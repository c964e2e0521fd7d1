package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sxedu-cn/perm-backend/internal/config"
	"github.com/sxedu-cn/perm-backend/internal/database"
	"github.com/sxedu-cn/perm-backend/internal/handler"
	"github.com/sxedu-cn/perm-backend/internal/metrics"
	"github.com/sxedu-cn/perm-backend/internal/middleware"
	"github.com/sxedu-cn/perm-backend/internal/model"
	"github.com/sxedu-cn/perm-backend/internal/notify"
	"github.com/sxedu-cn/perm-backend/internal/redis"
	"github.com/sxedu-cn/perm-backend/internal/repository"
	"github.com/sxedu-cn/perm-backend/internal/service"
	"github.com/sxedu-cn/perm-backend/pkg/breaker"
	"github.com/sxedu-cn/perm-backend/pkg/response"
	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger := middleware.GetLogger()

	// 初始化数据库连接
	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer database.Close()
	log.Println("数据库连接成功")

	// 初始化 Redis 连接
	if err := redis.Init(&cfg.Redis); err != nil {
		log.Fatalf("初始化 Redis 失败: %v", err)
	}
	defer redis.Close()
	log.Println("Redis 连接成功")

	// 自动迁移数据库表
	if err := database.AutoMigrate(
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
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库迁移完成")

	// 初始化 Repository
	db := database.GetDB()
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	userRoleRepo := repository.NewUserRoleRepository(db)
	userPermRepo := repository.NewUserPermissionRepository(db)
	delegRepo := repository.NewDelegationRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	userDir := repository.NewUserDirectory(db)

	// 熔断器管理器：状态变化写日志并上报指标
	circuits := breaker.NewManager(breaker.Config{
		FailureThreshold:         cfg.Breaker.FailureThreshold,
		SuccessThreshold:         cfg.Breaker.HalfOpenSuccesses,
		Timeout:                  cfg.Breaker.OpenTimeout,
		ErrorThresholdPercentage: cfg.Breaker.ErrorRate * 100,
		VolumeThreshold:          cfg.Breaker.VolumeThreshold,
		MaxHalfOpenProbes:        cfg.Breaker.MaxHalfOpenProbes,
	}, func(change breaker.StateChange) {
		logger.Warn("熔断器状态变化",
			zap.String("name", change.Name),
			zap.String("from", change.From.String()),
			zap.String("to", change.To.String()),
		)
		metrics.BreakerState.WithLabelValues(change.Name).Set(float64(change.To))
	})

	// 初始化 Service
	hierarchyService := service.NewHierarchyService(roleRepo, logger)
	resolverService := service.NewResolverService(userDir, userPermRepo, userRoleRepo, moduleRepo, hierarchyService)
	sessionService := service.NewSessionService(redis.GetClient(), resolverService, &service.SessionServiceConfig{
		CacheConfig: service.PermissionCacheConfig{
			MaxEntries: cfg.Cache.MaxEntries,
			FreshTTL:   cfg.Cache.FreshTTL,
			StaleTTL:   cfg.Cache.StaleTTL,
		},
	}, logger)
	checkService := service.NewCheckService(resolverService, sessionService, circuits, logger)
	rbacService := service.NewRBACService(roleRepo, permRepo, userRoleRepo, userPermRepo)
	delegationService := service.NewDelegationService(delegRepo, permRepo, userPermRepo, userDir, logger)
	templateService := service.NewTemplateService(templateRepo, permRepo, roleRepo, userPermRepo)

	var sender notify.Sender = notify.NopSender{}
	if cfg.Notify.Enabled {
		sender = notify.NewEmailSender(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			From:     cfg.Notify.From,
			Username: cfg.Notify.Username,
			Password: cfg.Notify.Password,
		})
	}
	notificationService := service.NewNotificationService(sender, circuits, logger)

	// 身份平台令牌验签器
	publicKeyPEM, err := os.ReadFile(cfg.JWT.PublicKeyPath)
	if err != nil {
		log.Fatalf("读取 JWT 公钥失败: %v", err)
	}
	verifier, err := middleware.NewTokenVerifier(publicKeyPEM, cfg.JWT.Issuer)
	if err != nil {
		log.Fatalf("创建令牌验签器失败: %v", err)
	}

	// 定时任务：委托落地与过期清理
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Scheduler.MaterializeSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := delegationService.Materialize(ctx)
		if err != nil {
			logger.Error("委托落地失败", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("委托落地完成", zap.Int("count", n))
		}
	}); err != nil {
		log.Fatalf("注册委托落地任务失败: %v", err)
	}
	if _, err := scheduler.AddFunc(cfg.Scheduler.ExpireSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := delegationService.ExpireSweep(ctx)
		if err != nil {
			logger.Error("过期清理失败", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("过期清理完成", zap.Int("count", n))
		}
	}); err != nil {
		log.Fatalf("注册过期清理任务失败: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// 初始化 Handler
	accessHandler := handler.NewAccessHandler(checkService, sessionService)
	adminHandler := handler.NewAdminHandler(rbacService, hierarchyService, delegationService, templateService, notificationService, cfg.Notify.AdminTo)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()

	// 全局中间件
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		if err := database.Ping(); err != nil {
			dbStatus = "error"
		}

		redisStatus := "ok"
		redisClient := redis.GetClient()
		if redisClient == nil {
			redisStatus = "error"
		} else if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "error"
		}

		response.Success(c, gin.H{
			"status":   "ok",
			"time":     time.Now().Format(time.RFC3339),
			"database": dbStatus,
			"redis":    redisStatus,
			"breakers": circuits.Names(),
		})
	})

	// Prometheus 指标
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 路由组，全部需要认证
	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(verifier))
	{
		// 运行时权限查询
		api.POST("/permissions/check", accessHandler.Check)
		api.POST("/permissions/check-batch", accessHandler.CheckBatch)
		api.GET("/access/permissions", accessHandler.MyPermissions)
		api.GET("/access/modules", accessHandler.MyModules)
		api.POST("/access/refresh", accessHandler.RefreshSnapshot)
		api.POST("/access/logout", accessHandler.Logout)

		// 管理面路由，要求管理员角色
		admin := api.Group("")
		admin.Use(middleware.RequireRole(userRoleRepo, model.RoleAdmin))
		{
			admin.POST("/roles", adminHandler.CreateRole)
			admin.GET("/roles", adminHandler.ListRoles)
			admin.GET("/roles/:id", adminHandler.GetRole)
			admin.PUT("/roles/:id", adminHandler.UpdateRole)
			admin.DELETE("/roles/:id", adminHandler.DeleteRole)
			admin.GET("/roles/:id/permissions", adminHandler.GetRolePermissions)
			admin.POST("/roles/:id/permissions", adminHandler.GrantToRole)
			admin.DELETE("/roles/:id/permissions/:permission_id", adminHandler.RevokeFromRole)
			admin.GET("/roles/:id/effective-permissions", adminHandler.GetEffectivePermissions)
			admin.POST("/roles/:id/parents", adminHandler.AddHierarchyEdge)
			admin.DELETE("/roles/:id/parents/:parent_id", adminHandler.RemoveHierarchyEdge)

			admin.POST("/permissions", adminHandler.CreatePermission)
			admin.GET("/permissions", adminHandler.ListPermissions)
			admin.GET("/permissions/:id", adminHandler.GetPermission)
			admin.DELETE("/permissions/:id", adminHandler.DeletePermission)

			admin.POST("/users/:user_id/roles", adminHandler.AssignRole)
			admin.GET("/users/:user_id/roles", adminHandler.GetUserRoles)
			admin.DELETE("/users/:user_id/roles/:role_id", adminHandler.RevokeRole)
			admin.POST("/users/:user_id/permissions", adminHandler.GrantToUser)
			admin.GET("/users/:user_id/permissions", adminHandler.GetUserGrants)

			admin.POST("/delegations", adminHandler.CreateDelegation)
			admin.GET("/delegations/:id", adminHandler.GetDelegation)
			admin.DELETE("/delegations/:id", adminHandler.RevokeDelegation)

			admin.POST("/templates", adminHandler.CreateTemplate)
			admin.GET("/templates", adminHandler.ListTemplates)
			admin.GET("/templates/:id", adminHandler.GetTemplate)
			admin.DELETE("/templates/:id", adminHandler.DeleteTemplate)
			admin.POST("/templates/:id/apply", adminHandler.ApplyTemplate)
		}
	}

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		log.Printf("服务启动，监听地址: %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，等待 5 秒
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务关闭失败: %v", err)
	}

	database.Close()
	redis.Close()

	log.Println("服务已关闭")
}
