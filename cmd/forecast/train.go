package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"demand_forecast/internal/features"
	"demand_forecast/internal/model"
	"demand_forecast/internal/predictor"
	"demand_forecast/internal/session"
)

var (
	trainTarget   string
	predictTarget string
	exportTarget  string
	dateFlag      string
	setFlags      []string
	outFlag       string
)

func init() {
	trainCmd.Flags().StringVarP(&trainTarget, "target", "t", "all", "Target to train: peak, min, gas or all")

	predictCmd.Flags().StringVarP(&predictTarget, "target", "t", "peak", "Target to predict: peak, min or gas")
	predictCmd.Flags().StringVarP(&dateFlag, "date", "d", "", "Predict a day present in the table (YYYY-MM-DD)")
	predictCmd.Flags().StringArrayVar(&setFlags, "set", nil, "Manual input key=value (repeatable)")
	predictCmd.MarkFlagsMutuallyExclusive("date", "set")
	predictCmd.MarkFlagsOneRequired("date", "set")

	exportCmd.Flags().StringVarP(&exportTarget, "target", "t", "peak", "Target model to export")
	exportCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output file (default stdout)")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit models on the working table and print held-out accuracy",
	RunE: func(cmd *cobra.Command, args []string) error {
		targets := model.Targets
		if trainTarget != "all" {
			t, err := model.ParseTarget(trainTarget)
			if err != nil {
				return err
			}
			targets = []model.Target{t}
		}

		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		failed := 0
		for _, t := range targets {
			rep, err := w.session.Train(cmd.Context(), t)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", t, err)
				failed++
				continue
			}
			printReport(rep)
			if err := w.saveModel(t); err != nil {
				return err
			}
		}
		if failed == len(targets) {
			return fmt.Errorf("no model trained")
		}
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict one day from a table date or manual inputs",
	Example: `  forecast predict -t peak -d 2024-01-15
  forecast predict -t gas --set day_of_week=Monday --set month=1 --set avg_temp=-2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := model.ParseTarget(predictTarget)
		if err != nil {
			return err
		}

		q := session.Query{}
		if dateFlag != "" {
			date, err := time.Parse(model.DateLayout, dateFlag)
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}
			q.Date = &date
		} else {
			raw, err := parseAssignments(setFlags)
			if err != nil {
				return err
			}
			day, err := features.ParseManualDay(raw)
			if err != nil {
				return err
			}
			q.Values = day.Values(t)
		}

		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		p, err := w.session.Predict(cmd.Context(), t, q)
		if err != nil {
			return err
		}
		printPrediction(p)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a trained model as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := model.ParseTarget(exportTarget)
		if err != nil {
			return err
		}
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		m, ok := w.session.Model(t)
		if !ok {
			return &session.NotTrainedError{Target: t}
		}
		if outFlag == "" {
			return m.Save(os.Stdout)
		}
		if err := m.SaveFile(outFlag); err != nil {
			return err
		}
		fmt.Printf("Exported %s model %s to %s\n", t, m.ID, outFlag)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Install a model exported with 'forecast export'",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := predictor.LoadModelFile(args[0])
		if err != nil {
			return err
		}
		w, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer w.close()

		if err := w.session.SetModel(m); err != nil {
			return err
		}
		if err := w.saveModel(m.Target); err != nil {
			return err
		}
		fmt.Printf("Imported %s model %s (%s)\n", m.Target, m.ID, m.Describe())
		return nil
	},
}

func printReport(r predictor.EvaluationReport) {
	fmt.Printf("%-4s %-22s MAE %10.2f  R² %6.3f  confidence %3.0f%%  train %d  test %d",
		r.Target, r.Model, r.MAE, r.R2, r.Confidence, r.TrainRows, r.TestRows)
	if r.Skipped > 0 {
		fmt.Printf("  skipped %d", r.Skipped)
	}
	fmt.Println()
}

func printPrediction(p predictor.Prediction) {
	label := "manual input"
	if p.Date != nil {
		label = p.Date.Format(model.DateLayout)
	}
	fmt.Printf("%s %s: %.2f (model %s)\n", p.Target, label, p.Value, p.ModelID)
}
