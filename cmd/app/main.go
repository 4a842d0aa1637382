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
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"linkgate-go/internal/config"
	"linkgate-go/internal/handler"
	"linkgate-go/internal/i18n"
	"linkgate-go/internal/middleware"
	"linkgate-go/internal/repository"
	"linkgate-go/internal/service"
	"linkgate-go/pkg/logging"
)

func initConfig() {
	wd, _ := os.Getwd()
	log.Printf("Loading config from: %s/config.yaml", wd)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
}

func startServer(r *gin.Engine, clicks *service.ClickAccountant) {
	addr := viper.GetString("server.addr")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// 启动服务器
	go func() {
		logging.Logger.Info("Server is running on " + addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中断信号以优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 先停 HTTP，再排空点击队列
	clicks.Close()

	if err := repository.RedisPool.Close(); err != nil {
		logging.Logger.Warn("Redis pool close failed", zap.Error(err))
	}

	logging.Logger.Info("Server exiting")
}

func main() {

	initConfig()
	logging.InitLoggerFromConfig()

	logging.Logger.Info("Application started")

	// 配置快照：每次请求读指针，配置变更时整体替换
	config.Reload()
	config.Watch(logging.Logger)

	repository.InitDB(logging.Logger, logging.AtomicLevel)
	repository.InitRedis()

	// 初始化 i18n（加载 TOML 文件）
	bundle, err := i18n.InitI18n([]string{
		"./i18n/en.toml",
		"./i18n/zh.toml",
	}, "en")
	if err != nil {
		panic(err)
	}

	// 组装存储与服务
	store := repository.NewGormLinkStore(repository.DB)
	cache := repository.NewRedisLinkCache(repository.RedisPool)
	counter := repository.NewRedisVisitCounter(repository.RedisPool)
	attempts := repository.NewRedisAttemptLog(repository.RedisPool)

	guard := service.NewPasswordGuard(attempts)
	clicks := service.NewClickAccountant(store, counter)
	clicks.Start()

	prober := service.NewHeadProber(config.Current().ProbeTimeout)
	creator := service.NewCreator(store, cache, counter, prober, service.NoopClassifier{})
	resolver := service.NewResolver(store, cache, guard, clicks)

	h := handler.NewLinkHandler(creator, resolver)

	r := gin.New()
	r.Use(gin.Recovery())

	// 注册全局错误中间件
	r.Use(middleware.GlobalErrorMiddleware())
	r.Use(middleware.ZapGinLogger(logging.Logger))
	r.Use(middleware.CorsMiddleware())
	r.Use(middleware.I18nMiddleware(bundle))

	api := r.Group("/api")
	{
		api.POST("/links", h.CreateLinkHandler)
		api.DELETE("/links/:id", h.DeleteLinkHandler)
		api.POST("/links/:slug/verify", h.VerifyPasswordHandler)
		api.GET("/links/:slug/stats", h.StatsHandler)
	}

	// 重定向走 GET 兜底中间件（避免与 /api 路由冲突）
	r.Use(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		h.RedirectHandler(c)
	})

	c := cron.New()

	// 定时清理过期链接：每十分钟一次。只做存储回收，
	// 读路径的惰性删除已保证正确性。
	_, addErr := c.AddFunc("*/10 * * * *", func() {
		if err := service.SweepExpiredLinks(store); err != nil {
			logging.Logger.Error("Expired link sweep failed", zap.Error(err))
		}
	})

	if addErr != nil {
		logging.Logger.Fatal("Failed to schedule cron job", zap.Error(addErr))
	}

	c.Start()

	startServer(r, clicks)
}
