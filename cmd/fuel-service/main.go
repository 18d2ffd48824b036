package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/app"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/config"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/db"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/logger"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/server"
	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/tracing"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "config/fuel-service.json", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// CONSUL_CONFIG_KEY 存在时改从 Consul KV 取配置（部署环境集中管理）
	if cfg.Consul.ConfigKey != "" {
		remote, err := config.LoadConfigFromConsulKV(cfg.Consul.Host, cfg.Consul.Port, cfg.Consul.ConfigKey)
		if err != nil {
			fmt.Printf("Failed to load config from Consul KV: %v\n", err)
			os.Exit(1)
		}
		cfg = remote
	}

	log, err := logger.NewLogger(cfg.Log.Engine, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	_, closer, err := tracing.InitTracer(cfg.Server.Name, cfg.Jaeger.Endpoint, cfg.Jaeger.Sampler)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}

	database, err := db.NewMySQL(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	application, err := app.New(database, cfg, log)
	if err != nil {
		log.Fatalf("failed to assemble application: %v", err)
	}

	ctx := context.Background()
	if err := application.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	if err := application.Seed(ctx, os.Getenv("ADMIN_USER"), os.Getenv("ADMIN_PASSWORD")); err != nil {
		log.Fatalf("failed to seed base data: %v", err)
	}

	err = server.RunGRPCServer(cfg, log, func(s *grpc.Server) error {
		// TODO: 业务 proto 定稿后在此注册 TicketService / CatalogService
		_ = application
		return nil
	})
	if err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}
