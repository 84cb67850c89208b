// Package cli is the taskhub command line: the interactive board plus
// scriptable subcommands over the same workspace.
package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
	"github.com/nhle/taskhub/internal/workspace"
)

// How much of the App a command needs before it runs.
const (
	annotSetup = "setup"

	setupConfig  = "config"  // configuration and logger only
	setupBackend = "backend" // plus an open backend
	setupHydrate = "hydrate" // plus a loaded workspace, no acting user
	// The default also resolves the acting user.

	annotTUI = "tui"
)

// App holds the state shared by every command. Fields that are already
// set when a command runs are used as is, which lets tests inject a
// backend or configuration.
type App struct {
	ConfigPath string
	AsEmail    string
	Verbose    bool

	Config    *model.AppConfig
	Log       *zap.Logger
	Level     zap.AtomicLevel
	Registry  *prometheus.Registry
	Backend   source.Backend
	Workspace *workspace.Workspace
	Actor     model.User

	// Interactive is false in tests so commands never prompt.
	Interactive bool

	closers []func() error
}

// NewRootCmd creates the top-level "taskhub" command and registers all
// subcommands against app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskhub",
		Short:         "Collaborative kanban task manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations:   map[string]string{annotTUI: "true"},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return app.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.Interactive {
				return cmd.Help()
			}
			return app.runBoard(cmd.Context(), "")
		},
	}

	configPath := app.ConfigPath
	if configPath == "" {
		configPath = model.DefaultConfigPath()
	}
	root.PersistentFlags().StringVar(&app.ConfigPath, "config", configPath, "config file")
	root.PersistentFlags().StringVar(&app.AsEmail, "as", "", "act as the user with this email")
	root.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newBoardCmd(app),
		newProjectCmd(app),
		newTaskCmd(app),
		newNotificationCmd(app),
		newActivityCmd(app),
		newUserCmd(app),
		newLoginCmd(app),
		newConfigCmd(app),
		newServeCmd(app),
		newSeedCmd(app),
	)

	return root
}

// Execute runs the root command and releases everything the App opened.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCmd(app)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, app.Close())
}

// setup prepares the App for cmd according to its setup annotation.
func (a *App) setup(cmd *cobra.Command) error {
	if a.Config == nil {
		cfg, err := model.LoadConfig(a.ConfigPath)
		if err != nil {
			return err
		}
		a.Config = cfg
	}

	if a.Log == nil {
		logPath := "stderr"
		if cmd.Annotations[annotTUI] == "true" {
			logPath = filepath.Join(filepath.Dir(a.ConfigPath), "taskhub.log")
		}
		log, level, err := newLogger(a.Config.Log.Level, a.Verbose, logPath)
		if err != nil {
			return err
		}
		a.Log, a.Level = log, level
		a.closers = append(a.closers, func() error {
			_ = log.Sync()
			return nil
		})
	}
	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
	}

	need := cmd.Annotations[annotSetup]
	if need == setupConfig {
		return nil
	}

	if a.Backend == nil {
		b, closer, err := openBackend(a.Config, a.Log)
		if err != nil {
			return err
		}
		a.Backend = b
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}
	if need == setupBackend {
		return nil
	}

	if a.Workspace == nil {
		opts := []workspace.Option{
			workspace.WithLogger(a.Log),
			workspace.WithRegistry(a.Registry),
		}
		if src, err := notificationSource(a.Config, a.Log); err != nil {
			return err
		} else if src != nil {
			opts = append(opts, workspace.WithNotificationSource(src))
		}
		a.Workspace = workspace.New(a.Backend, opts...)
		if err := a.Workspace.Hydrate(cmd.Context()); err != nil {
			return fmt.Errorf("loading workspace: %w", err)
		}
	}
	if need == setupHydrate {
		return nil
	}

	actor, err := a.resolveActor()
	if err != nil {
		return err
	}
	a.Actor = actor
	a.Log.Debug("acting user", zap.String("email", actor.Email), zap.String("role", string(actor.Role)))
	return nil
}

// resolveActor picks the acting user: --as, then session.user_email, then
// the first active admin.
func (a *App) resolveActor() (model.User, error) {
	email := a.AsEmail
	if email == "" {
		email = a.Config.Session.UserEmail
	}
	if email != "" {
		u, ok := a.Workspace.UserByEmail(email)
		if !ok {
			return model.User{}, fmt.Errorf("no user with email %q", email)
		}
		if u.Status == model.UserInactive {
			return model.User{}, fmt.Errorf("user %q is inactive", email)
		}
		return u, nil
	}

	if u, ok := a.Workspace.Users.Find(func(u model.User) bool {
		return u.Role == model.RoleAdmin && u.Status != model.UserInactive
	}); ok {
		return u, nil
	}
	return model.User{}, errors.New("no acting user: run `taskhub seed` or `taskhub users add`, then `taskhub login`")
}

// Close releases the backend and flushes the logger. It is safe to call
// more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
