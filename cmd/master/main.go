/*
 * @author: sun977
 * @date: 2025.08.29
 * @description: 主程序入口
 * @func: 加载环境变量、装配应用、启动配置热更新、启动服务器、等待中断信号
 */

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainscan/internal/app/master"
	"chainscan/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "配置文件目录，默认 configs/")
		env        = flag.String("env", "", "运行环境: development, production")
	)
	flag.Parse()

	// .env文件可选，不存在时忽略
	_ = config.LoadEnvFile(".env")

	app, err := master.NewApp(*configPath, *env)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	// 配置文件热更新
	if err := config.StartConfigWatcher(*configPath, *env); err != nil {
		log.Printf("Config watcher disabled: %v", err)
	} else {
		_ = config.AddConfigReloadCallback(config.LogConfigReloadCallback)
		_ = config.AddConfigReloadCallback(config.ScannerConfigReloadCallback)
	}

	cfg := app.GetConfig()
	server := &http.Server{
		Addr:           cfg.Server.GetAddress(),
		Handler:        app.GetRouter().GetEngine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	_ = config.StopConfigWatcher()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := app.Stop(); err != nil {
		log.Printf("Failed to stop app: %v", err)
	}
	log.Println("Server exiting")
}
