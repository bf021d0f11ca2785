package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/zenkai/pkg/google"
)

func newAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google Calendar",
		Long:  "Discard any cached token and run the browser authorization flow again.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flow := a.authFlow()
			if err := flow.Reset(); err != nil {
				return err
			}
			if _, err := google.NewClient(cmd.Context(), flow, a.cfg.Calendar, google.Options{Logger: a.logger}); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			a.logger.Info("token saved", zap.String("path", flow.TokenPath()))
			fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", flow.TokenPath())
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", a.cfg.Path, out)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-calendar NAME",
		Short: "Set the default Google Calendar name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Calendar = args[0]
			if err := a.cfg.Save(); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default calendar set to: %s\n", args[0])
			return nil
		},
	})
	return cmd
}
