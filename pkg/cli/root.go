// Package cli is the zenkai command tree.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/zenkai/pkg/colors"
	"github.com/harrisonrobin/zenkai/pkg/config"
	"github.com/harrisonrobin/zenkai/pkg/logger"
	"github.com/harrisonrobin/zenkai/pkg/service"
	"github.com/harrisonrobin/zenkai/pkg/store"
)

// app is the state shared by every command of one invocation.
type app struct {
	configPath string
	calendar   string
	debug      bool
	jsonLogs   bool

	cfg    *config.Config
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time

	local  *store.Store
	colors *colors.Palette
	events service.EventService
	tasks  service.TaskService
}

// Execute runs the command line with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{now: time.Now})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zenkai",
		Short: "Plan your backlog into your calendar",
		Long: "zenkai creates calendar events from loose date and time phrases and fits " +
			"pending tasks into the free time of your working hours.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.finish()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $HOME/.config/zenkai/config.yaml)")
	flags.StringVar(&a.calendar, "calendar", "", "Google Calendar name (overrides config)")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&a.jsonLogs, "json-logs", false, "log as JSON")

	rootCmd.AddCommand(newScheduleCmd(a))
	rootCmd.AddCommand(newEventCmd(a))
	rootCmd.AddCommand(newTaskCmd(a))
	rootCmd.AddCommand(newImportCmd(a))
	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newHookCmd(a))
	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.calendar != "" {
		cfg.Calendar = a.calendar
	}
	if a.debug {
		cfg.Debug = true
	}
	a.cfg = cfg

	newLogger := logger.New
	if a.jsonLogs {
		newLogger = logger.NewJSON
	}
	if a.logger, err = newLogger(cfg.Debug); err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	if a.loc, err = cfg.Location(); err != nil {
		return err
	}
	if a.now == nil {
		a.now = time.Now
	}
	return nil
}

// finish persists the local store and flushes the logger.
func (a *app) finish() error {
	if a.local != nil {
		if err := a.local.Save(); err != nil {
			return fmt.Errorf("save local store: %w", err)
		}
	}
	if a.colors != nil {
		if err := a.colors.Save(); err != nil {
			return fmt.Errorf("save tag colors: %w", err)
		}
	}
	_ = logger.Sync(a.logger)
	return nil
}

func (a *app) localNow() time.Time {
	return a.now().In(a.loc)
}
