package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kartpitsbot/pkg/caster"
	"kartpitsbot/pkg/feed"
	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/render"
)

func newExtractCommand() *cobra.Command {
	var asJSON bool
	var kind string

	cmd := &cobra.Command{
		Use:         "extract <file>",
		Short:       "Print the timing observations found in a saved feed payload",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read payload")
			}

			k := feed.Kind(kind)
			switch k {
			case "":
				k = feed.DetectKind(payload)
			case feed.KindHTML, feed.KindJSON:
			default:
				return errors.Errorf("unknown payload type %q", kind)
			}

			obs := feed.Extract(k, payload)
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := caster.JSONChannelCaster[[]model.Observation]{Indent: true}.To(obs)
				if err != nil {
					return errors.Wrap(err, "encode observations")
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintln(out, render.Observations(obs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print observations as JSON")
	cmd.Flags().StringVar(&kind, "type", "", "Payload type (html or json), detected when empty")
	return cmd
}
