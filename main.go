package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fachebot/oneline/internal/api"
	"github.com/fachebot/oneline/internal/config"
	"github.com/fachebot/oneline/internal/logger"
	"github.com/fachebot/oneline/internal/scheduler"
	"github.com/fachebot/oneline/internal/svc"
)

var configFile = flag.String("f", "etc/config.yaml", "the config file")

func main() {
	flag.Parse()

	// 读取配置文件
	c, err := config.LoadFromFile(*configFile)
	if err != nil {
		logger.Fatalf("读取配置文件失败, %s", err)
	}
	if err := logger.Setup(&c.Log); err != nil {
		logger.Fatalf("初始化日志失败, %s", err)
	}

	// 创建数据目录
	if _, err := os.Stat("data"); os.IsNotExist(err) {
		err := os.Mkdir("data", 0755)
		if err != nil {
			logger.Fatalf("创建数据目录失败, %s", err)
		}
	}

	// 创建服务上下文
	svcCtx := svc.NewServiceContext(c)

	// 创建并启动调度器
	schedulerInstance := scheduler.NewScheduler(
		svcCtx.HotList,
		svcCtx.HistoryModel,
		svcCtx.JobRunModel,
		&c.HotList,
		&c.History,
	)
	if err := schedulerInstance.Start(); err != nil {
		logger.Fatalf("[Scheduler] 启动调度器失败: %s", err)
	}

	// 启动HTTP服务
	server := api.NewServer(&c.Server, api.NewHandler(svcCtx))
	go func() {
		logger.Infof("[API] HTTP服务已启动, 监听地址: %s, 模型: %s, 搜索: %v",
			c.Server.Addr, svcCtx.LLMClient.Model(), svcCtx.SearchEngine.Enabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("[API] HTTP服务启动失败, %s", err)
		}
	}()

	// 等待程序退出
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	// 优雅关闭
	logger.Infof("正在关闭服务...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("[API] HTTP服务关闭失败, %v", err)
	}
	schedulerInstance.Stop()
	svcCtx.Close()
	logger.Infof("服务已停止")
	_ = logger.Close()
}
