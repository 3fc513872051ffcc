package commands

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPublishCmd(opts *globalOptions) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an already generated digest",
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

			publishUC, err := a.publishUsecase()
			if err != nil {
				return err
			}
			if publishUC == nil {
				return errors.New("digest.publish_chat_id is not set")
			}
			return publishUC.Publish(cmd.Context(), day)
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day to publish as YYYY-MM-DD (default: today)")
	return cmd
}
