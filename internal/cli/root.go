// Package cli wisefido-iv 命令行
package cli

import (
	"fmt"
	"os"

	"wisefido-iv/internal/common/logger"
	"wisefido-iv/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "wisefido-iv"

// RootCmd 顶层命令
var RootCmd = &cobra.Command{
	Use:           "wisefido-iv",
	Short:         "IV infusion monitoring and alerting",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, log, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
