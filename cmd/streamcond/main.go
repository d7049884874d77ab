package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jeffb999/healthy-watershed-random-forest/internal/config"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/persistence"
	"github.com/jeffb999/healthy-watershed-random-forest/internal/pipeline"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "streamcond",
	Short: "Statewide stream-condition modeling pipeline",
	Long: `streamcond models stream-condition indices (ASCI, CRAM, RipRAM and
sub-metrics) across every stream reach in the state from landscape
human-disturbance covariates, and classifies the predictions into
condition categories.`,
}

var buildFeaturesCmd = &cobra.Command{
	Use:   "build-features",
	Short: "Assemble the wide covariate table and write it to the output dir",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		runner := pipeline.NewRunner(cfg)

		banner("Building wide covariate table")
		wide, err := runner.BuildWide()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return err
		}
		path := cfg.Output.Dir + "/covariates_wide.csv"
		if err := wide.WriteCSV(path, "COMID"); err != nil {
			return err
		}
		color.Green("wrote %s (%d catchments, %d columns)", path, wide.Len(), len(wide.Columns()))
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline for every configured index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		runner := pipeline.NewRunner(cfg)

		banner(fmt.Sprintf("Run %s (seed %d)", runner.RunID, cfg.Seed))
		results, err := runner.Run()
		if err != nil {
			return err
		}

		for _, res := range results {
			color.Green("[%s] %d labeled, %d/%d train/test, %d predictors, RMSE %.4f/%.4f",
				res.Index, res.LabeledRows, res.TrainRows, res.TestRows,
				len(res.Selected), res.TrainRMSE, res.TestRMSE)
			for _, s := range res.ClassSummaries {
				fmt.Printf("    %-22s %8d catchments  %14s m\n", s.Label, s.Catchments, s.TotalLengthM.StringFixed(0))
			}
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <bundle.gob>",
	Short: "Show a saved model bundle's predictors and CV ladder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := persistence.LoadModelBundle(args[0])
		if err != nil {
			return err
		}
		banner(fmt.Sprintf("%s (%s), run %s, seed %d", bundle.Index, bundle.Response, bundle.RunID, bundle.Seed))
		fmt.Println("Selected predictors:")
		for i, p := range bundle.Predictors {
			fmt.Printf("  %2d. %s\n", i+1, p)
		}
		fmt.Println("CV RMSE by feature-set size:")
		for _, s := range bundle.CVSizes {
			fmt.Printf("  %3d: %.4f ± %.4f\n", s.Size, s.MeanRMSE, s.StdRMSE)
		}
		return nil
	},
}

func banner(text string) {
	color.Cyan("== %s ==", text)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "path to pipeline configuration")
	rootCmd.AddCommand(buildFeaturesCmd, runCmd, inspectCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
