package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"plasflow/config"
)

var (
	configPath string
	// 非零表示有算例未收敛
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:           "plasflow",
	Short:         "Free-stream reconstruction for plasma wind tunnel probes",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "conf/config.ini", "ini configuration file")
}

// loadConfig reads the configuration and sets up the standard logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Log.Apply(log.StandardLogger()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "err: ", err)
		os.Exit(2)
	}
	os.Exit(exitCode)
}
