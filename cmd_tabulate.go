package main

import (
	"context"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"plasflow/oracle"
)

var tabulateCmd = &cobra.Command{
	Use:   "tabulate <table.json>",
	Short: "Sample the ideal dissociating gas engine on a (p, T) grid",
	Long:  `Writes a property table that [oracle] engine = table can load. Pressures are spaced logarithmically, temperatures linearly.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		mixture, _ := f.GetString("mixture")
		pMin, _ := f.GetFloat64("p-min")
		pMax, _ := f.GetFloat64("p-max")
		np, _ := f.GetInt("p-points")
		tMin, _ := f.GetFloat64("t-min")
		tMax, _ := f.GetFloat64("t-max")
		nt, _ := f.GetInt("t-points")
		if !(pMin > 0) || pMax <= pMin || np < 2 || !(tMin > 0) || tMax <= tMin || nt < 2 {
			return fmt.Errorf("invalid grid p=[%g, %g]x%d T=[%g, %g]x%d", pMin, pMax, np, tMin, tMax, nt)
		}

		e, err := oracle.NewEngine(mixture)
		if err != nil {
			return err
		}
		pressures := make([]float64, np)
		for i := range pressures {
			pressures[i] = pMin * math.Pow(pMax/pMin, float64(i)/float64(np-1))
		}
		temperatures := make([]float64, nt)
		for i := range temperatures {
			temperatures[i] = tMin + (tMax-tMin)*float64(i)/float64(nt-1)
		}
		tab, err := oracle.BuildTable(context.Background(), e, e.Gas().Name, e.Gas().Species(), pressures, temperatures)
		if err != nil {
			return err
		}
		if err := tab.Save(args[0]); err != nil {
			return err
		}
		log.WithFields(log.Fields{"mixture": e.Gas().Name, "nodes": np * nt, "path": args[0]}).Info("table written")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tabulateCmd)
	f := tabulateCmd.Flags()
	f.String("mixture", "nitrogen2", "gas")
	f.Float64("p-min", 10, "lowest pressure [Pa]")
	f.Float64("p-max", 1e5, "highest pressure [Pa]")
	f.Int("p-points", 41, "pressure nodes")
	f.Float64("t-min", 200, "lowest temperature [K]")
	f.Float64("t-max", 15000, "highest temperature [K]")
	f.Int("t-points", 297, "temperature nodes")
}
