package commands

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const atLayout = "2006-01-02 15:04"

func newExportCmd(opts *globalOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the trailing day of messages to chunk files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			anchor, err := a.exportInstant(at)
			if err != nil {
				return err
			}

			result, err := a.exportUsecase().Export(cmd.Context(), anchor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d messages, %d files in %s\n",
				result.Day, result.LineCount, len(result.Files), result.Dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", `window end as "YYYY-MM-DD HH:MM" in the configured zone (default: today's export time)`)
	return cmd
}

// exportInstant resolves --at, falling back to today's export target
func (a *app) exportInstant(at string) (time.Time, error) {
	if at != "" {
		t, err := time.ParseInLocation(atLayout, at, a.cfg.Location())
		if err != nil {
			return time.Time{}, errors.Errorf("invalid --at %q, want %q", at, atLayout)
		}
		return t, nil
	}

	anchor, err := a.anchor("export", a.cfg.Schedule.ExportTime)
	if err != nil {
		return time.Time{}, err
	}
	return anchor.TargetOn(time.Now()), nil
}
