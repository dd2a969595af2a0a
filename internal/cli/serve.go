package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"wisefido-iv/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bed supervisor and HTTP API",
		Run:   runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) {
	// 1. 加载配置 + 日志
	cfg, logger, err := loadConfig()
	if err != nil {
		exitErr("serve", err)
	}
	defer logger.Sync()

	// 2. 创建服务
	ivService, err := service.NewIVService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create IV service", zap.Error(err))
	}
	defer ivService.Stop()

	// 3. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// 4. 启动服务（在 goroutine 中）
	serviceErrChan := make(chan error, 1)
	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := ivService.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	// 5. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
		<-serviceDone
	case err := <-serviceErrChan:
		logger.Error("Service error", zap.Error(err))
		cancel()
	}

	logger.Info("IV service stopped")
}
