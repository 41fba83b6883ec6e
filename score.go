package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kartpitsbot/pkg/caster"
	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/render"
	"kartpitsbot/pkg/scoring"
)

func newScoreCommand(ctx *commandContext) *cobra.Command {
	var settling int

	cmd := &cobra.Command{
		Use:   "score <export.json>",
		Short: "Recompute kart scores from an exported session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read export")
			}
			st, err := caster.JSONChannelCaster[model.State]{}.From(raw)
			if err != nil {
				return errors.Wrap(err, "decode export")
			}

			params := cfg.ScoringParams()
			if cmd.Flags().Changed("settling-laps") {
				params.SettlingLaps = settling
			}
			res := scoring.Compute(params, render.ScoringInput(st))
			fmt.Fprintln(cmd.OutOrStdout(), render.ScoreReport(st, res))
			return nil
		},
	}

	cmd.Flags().IntVar(&settling, "settling-laps", scoring.DefaultSettlingLaps, "Override the settling laps dropped per stint")
	return cmd
}
