package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"expenselog/internal/backend"
	"expenselog/internal/cli"
	"expenselog/internal/config"
	"expenselog/internal/core"
	"expenselog/internal/log"
	"expenselog/internal/services"
)

// env is the state shared by every subcommand. open is replaced in tests.
type env struct {
	cfg    *config.Config
	logger *log.Logger
	res    *backend.BackendResult
	svc    *services.ExpenseService
	now    func() time.Time
	open   func(ctx context.Context, e *env) (*backend.BackendResult, error)
}

func newEnv() *env {
	return &env{
		now: time.Now,
		open: func(ctx context.Context, e *env) (*backend.BackendResult, error) {
			return cli.OpenBackend(ctx, e.logger, e.cfg)
		},
	}
}

func (e *env) today() core.Date { return core.DateOf(e.now()) }

func newRootCmd(e *env) *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)
	root := &cobra.Command{
		Use:           "expensectl",
		Short:         "Inspect and maintain the expense table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["backend"] != "true" {
				return nil
			}
			return e.setup(cmd.Context(), cfgFile, verbose, cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return e.res.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newSummaryCmd(e),
		newImportCmd(e),
		newExportCmd(e),
		newMirrorCmd(e),
		newCategoriesCmd(e),
		newSheetsAuthCmd(),
		newVersionCmd(),
	)
	return root
}

// needsBackend marks a command whose run needs the store opened.
func needsBackend(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations["backend"] = "true"
	return cmd
}

func (e *env) setup(ctx context.Context, cfgFile string, verbose bool, logOut io.Writer) error {
	if e.cfg == nil {
		cli.LoadEnvFile()
		if cfgFile != "" {
			os.Setenv("CONFIG_FILE", cfgFile)
		}
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}
		e.cfg = cfg
	}
	level := e.cfg.LogLevel
	if verbose {
		level = "debug"
	}
	// Logs go to stderr so command output stays pipeable.
	e.logger = log.Setup(log.Config{
		Level:     level,
		Format:    e.cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    logOut,
	})

	res, err := e.open(ctx, e)
	if err != nil {
		return err
	}
	e.res = res
	e.svc = services.NewExpenseService(res.Backend)
	return nil
}
