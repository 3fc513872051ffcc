package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDigestCmd(opts *globalOptions) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Generate the digest of an exported day",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			if day == "" {
				day = a.today()
			}
			if err := a.checkDay(day); err != nil {
				return err
			}

			digestUC, err := a.digestUsecase()
			if err != nil {
				return err
			}
			digest, err := digestUC.Generate(cmd.Context(), day)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day to summarize as YYYY-MM-DD (default: today)")
	return cmd
}
