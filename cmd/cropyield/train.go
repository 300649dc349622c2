package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/yungbote/cropyield-backend/internal/services"
)

func trainCmd() *cobra.Command {
	var (
		req      services.TrainRequest
		quiet    bool
		testSize float64
		seed     int64
		trees    int
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on the stored dataset and activate it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("test-size") {
				req.TestSize = &testSize
			}
			if flags.Changed("seed") {
				req.RandomState = &seed
			}
			if flags.Changed("n-estimators") {
				req.NEstimators = &trees
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if !quiet {
				bar := progressbar.NewOptions(100,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetDescription("training"),
					progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
				)
				req.Progress = func(pct int, msg string) {
					bar.Describe(msg)
					_ = bar.Set(pct)
				}
			}

			res, err := a.Services.Training.Train(cmd.Context(), req)
			if err != nil {
				return err
			}
			printTrainResult(out, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Target, "target", "", "target column (default from training.target)")
	f.StringVar(&req.ModelType, "model-type", "", "linear or random-forest (default from training.model_type)")
	f.StringSliceVar(&req.Features, "features", nil, "explicit feature columns")
	f.Float64Var(&testSize, "test-size", 0.2, "held-out fraction")
	f.Int64Var(&seed, "seed", 42, "random seed")
	f.IntVar(&trees, "n-estimators", 300, "number of trees for random_forest")
	f.BoolVarP(&quiet, "quiet", "q", false, "no progress bar")
	return cmd
}

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and activate model versions",
	}
	cmd.AddCommand(modelsListCmd(), modelsActivateCmd())
	return cmd
}

func printTrainResult(w io.Writer, res *services.TrainResult) {
	state := "inactive (a newer version is active)"
	if res.Active {
		state = "active"
	}
	fmt.Fprintf(w, "Model v%d (%s, target %s) %s\n", res.Version, res.ModelType, res.Target, state)
	fmt.Fprintf(w, "Artifacts: %s\n", res.ModelDir)
	fmt.Fprintf(w, "Features:  %s\n", strings.Join(res.Features, ", "))
	fmt.Fprintf(w, "Rows:      %d labeled of %d (train %d / test %d)\n",
		res.LabeledRows, res.DatasetRows, res.Metrics.NTrain, res.Metrics.NTest)
	fmt.Fprintf(w, "R2 %s  MAE %s  RMSE %.4f\n", res.Metrics.R2Text, res.Metrics.MAEText, res.Metrics.RMSE)
}

func modelsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trained model versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Services.Models.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tACTIVE\tTYPE\tTARGET\tCREATED")
			for _, m := range list.Models {
				active := ""
				if m.Active {
					active = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.Version, active, m.ModelType, m.Target, m.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum versions to show")
	return cmd
}

func modelsActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <version>",
		Short: "Make an existing model version the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("version must be an integer: %w", err)
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.Services.Models.Activate(cmd.Context(), version)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model v%d is now active\n", snap.Version)
			return nil
		},
	}
}
