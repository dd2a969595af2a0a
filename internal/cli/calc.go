package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"wisefido-iv/internal/config"
	"wisefido-iv/internal/evaluator"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Bedside infusion calculation (prints JSON, does not dispatch)",
		Run:   runCalc,
	}

	cmd.Flags().Int("bed", 0, "Bed id; evaluates alert rules when set")
	cmd.Flags().Float64("drops", 0, "Drip rate (drops/min)")
	cmd.Flags().Float64("ml-per-hr", 0, "Volume rate (mL/hr)")
	cmd.Flags().Float64("volume", 0, "Total volume (mL)")
	cmd.Flags().Int("drop-factor", 0, "Drop factor: 10, 15, 20 or 60 drops/mL (default 20)")
	cmd.Flags().Float64("weight", 0, "Patient weight (kg)")
	cmd.Flags().Float64("age", -1, "Patient age (years)")

	RootCmd.AddCommand(cmd)
}

func runCalc(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		exitErr("calc", err)
	}

	in := evaluator.CalculationInput{}
	in.BedID, _ = cmd.Flags().GetInt("bed")
	in.DropsPerMinute, _ = cmd.Flags().GetFloat64("drops")
	in.VolumePerHour, _ = cmd.Flags().GetFloat64("ml-per-hr")
	in.TotalVolume, _ = cmd.Flags().GetFloat64("volume")
	in.DropFactor, _ = cmd.Flags().GetInt("drop-factor")
	if weight, _ := cmd.Flags().GetFloat64("weight"); weight > 0 {
		in.WeightKg = &weight
	}
	if age, _ := cmd.Flags().GetFloat64("age"); age >= 0 {
		in.AgeYears = &age
	}

	e := evaluator.NewEvaluator(evaluator.DefaultCatalogue().Merge(cfg.IV.Remediation), zap.NewNop())
	result := e.Calculate(in, cfg.IV.Thresholds, time.Now())

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}
