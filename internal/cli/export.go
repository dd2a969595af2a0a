package cli

import (
	"fmt"
	"os"
	"time"

	"wisefido-iv/internal/common/database"
	"wisefido-iv/internal/report"
	"wisefido-iv/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a bed's alert history to an xlsx workbook",
		Run:   runExport,
	}

	cmd.Flags().Int("bed", 0, "Bed id (required)")
	cmd.Flags().StringP("out", "o", "", "Output file (required)")
	cmd.Flags().String("since", "24h", "History window, e.g. 24h or 90m")

	cmd.MarkFlagRequired("bed")
	cmd.MarkFlagRequired("out")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	bedID, _ := cmd.Flags().GetInt("bed")
	out, _ := cmd.Flags().GetString("out")
	window, _ := cmd.Flags().GetString("since")

	cfg, logger, err := loadConfig()
	if err != nil {
		exitErr("export", err)
	}
	defer logger.Sync()

	if bedID < 1 || bedID > cfg.IV.MaxBeds {
		exitErr("export", fmt.Errorf("bed must be between 1 and %d", cfg.IV.MaxBeds))
	}
	since, err := report.Since(time.Now(), window, 24*time.Hour)
	if err != nil {
		exitErr("export", err)
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		exitErr("connect database", err)
	}
	defer database.Close(db)

	records, err := repository.NewAlertEventsRepository(db, logger).ListBedAlerts(cmd.Context(), bedID, since)
	if err != nil {
		exitErr("list alerts", err)
	}

	f, err := os.Create(out)
	if err != nil {
		exitErr("create output", err)
	}
	defer f.Close()

	if err := report.WriteAlertWorkbook(f, bedID, records); err != nil {
		exitErr("write workbook", err)
	}

	logger.Info("Exported alert history",
		zap.Int("bed_id", bedID),
		zap.Int("record_count", len(records)),
		zap.String("file", out),
	)
}
