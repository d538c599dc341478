package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"plasflow/batch"
	"plasflow/envelope"
)

var solveCmd = &cobra.Command{
	Use:   "solve <cases.yaml>",
	Short: "Solve every case of a YAML case list",
	Long:  `Solves the cases concurrently and writes one JSON result per case. The exit code is 0 when every case converged and 1 otherwise.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
		}
		cases, err := batch.LoadCases(args[0])
		if err != nil {
			return err
		}
		factory, err := cfg.Oracle.Factory()
		if err != nil {
			return err
		}

		var env *envelope.Envelope
		if cfg.Batch.Envelope != "" {
			env, err = envelope.Load(cfg.Batch.Envelope, envelope.DefaultOptions())
			if err != nil {
				log.WithError(err).Warn("facility envelope not loaded, skipping the check")
			}
		}

		runner, err := batch.New(factory, batch.Options{
			Workers:  cfg.Batch.Workers,
			Settings: cfg.Solver,
			Envelope: env,
			Logger:   log.StandardLogger(),
		})
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		rep, err := runner.Run(ctx, cases)
		if err != nil {
			return err
		}

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		if err := rep.Write(out); err != nil {
			return err
		}
		exitCode = rep.ExitCode()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
	solveCmd.Flags().IntP("workers", "w", 0, "override [batch] workers")
}
