package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-im/config"
	"marketplace-im/internal/handler"
	"marketplace-im/internal/model"
	"marketplace-im/internal/realtime"
	"marketplace-im/internal/repository"
	"marketplace-im/internal/service"
	dbPkg "marketplace-im/pkg/db"
	"marketplace-im/pkg/jwt"
	"marketplace-im/pkg/logger"
	"marketplace-im/pkg/redis"
	"marketplace-im/pkg/response"
	"marketplace-im/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("=== 撮合平台消息服务启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.String("realtime_registry", cfg.Realtime.Registry),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	orm, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(orm, model.All()...); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 3.2 Redis 可选，失败时降级为单进程内存模式
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redis.InitRedis(ctx, cfg.Redis); err != nil {
			log.Warn("Redis连接失败，在线状态与未读计数降级", zap.Error(err))
		} else {
			log.Info("Redis连接成功")
		}
		cancel()
		defer redis.Close()
	}

	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// 4. 实时网关
	manager := websocket.NewManager()
	var registry realtime.SessionRegistry = manager
	if cfg.Realtime.Registry == realtime.RegistryRedis && redis.Enabled() {
		bus := realtime.NewPubSubRegistry(manager, "")
		registry = bus
		go func() {
			if err := bus.Run(bg); err != nil {
				log.Error("实时广播订阅退出", zap.Error(err))
			}
		}()
	}

	users := repository.NewUserRepository(orm)
	services := repository.NewServiceRepository(orm)
	convSvc := service.NewConversationService(orm, users)
	gateway := realtime.NewGateway(registry, convSvc, cfg.Realtime)
	go gateway.Run(bg)

	// 5. 业务服务
	notifySvc := service.NewNotificationService(orm, gateway, cfg.Notification)
	connSvc := service.NewConnectionService(orm, users, services, convSvc, notifySvc, gateway)

	jwtSvc := jwt.NewJWTService(cfg.JWT)
	handlers := &handler.Handlers{
		Connection:   handler.NewConnectionHandler(connSvc),
		Conversation: handler.NewConversationHandler(convSvc, gateway),
		Notification: handler.NewNotificationHandler(notifySvc),
		User:         handler.NewUserHandler(gateway),
	}
	wsHandler := websocket.NewHandler(cfg.WebSocket, jwtSvc.UserIDFromToken, gateway)

	// 6. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 7. 创建Gin路由
	router := gin.New()
	router.Use(logger.RequestLogger())
	router.Use(logger.ErrorLoggerMiddleware())

	setupBasicRoutes(router)
	handlers.Register(router, jwtSvc.AuthMiddleware())
	router.GET("/ws", wsHandler.Serve)

	// 8. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}

// setupBasicRoutes 健康检查
func setupBasicRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := dbPkg.HealthCheck(); err != nil {
			status = "db-down"
		}

		redisStatus := "disabled"
		if redis.Enabled() {
			redisStatus = "ok"
			if err := redis.HealthCheck(c.Request.Context()); err != nil {
				redisStatus = "down"
			}
		}

		response.Success(c, gin.H{
			"status": status,
			"redis":  redisStatus,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
}
