package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/term"

	"github.com/gatewing-io/gatewing/pkg/log"
)

// RunFunc defines the application's startup callback function.
type RunFunc func() error

// NamedFlagSetOptions abstracts the configuration options for an application,
// organized into named flag sets.
type NamedFlagSetOptions interface {
	// Flags returns the flags of the application, grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in any fields not set that are required to have valid data.
	Complete() error

	// Validate validates all the required options.
	Validate() error
}

// App is the main structure of a cli application.
type App struct {
	name        string
	shortDesc   string
	description string

	options NamedFlagSetOptions
	runFunc RunFunc

	configFile string
	validArgs  cobra.PositionalArgs

	cmd *cobra.Command
}

// Option defines optional parameters for initializing the application structure.
type Option func(*App)

// WithOptions opens the application's function to read from the command line
// or read parameters from the configuration file.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the application startup callback function.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithDescription sets the long description of the application.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithDefaultValidArgs rejects any positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.validArgs = cobra.NoArgs
	}
}

// NewApp creates a new application instance.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()
	return a
}

// Command returns the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run launches the application.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		Args:          a.validArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runCommand,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
		for _, fs := range namedFlagSets.FlagSets {
			cmd.Flags().AddFlagSet(fs)
		}
	}

	addConfigFlag(a, namedFlagSets.FlagSet("global"))
	cmd.Flags().AddFlagSet(namedFlagSets.FlagSet("global"))

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, namedFlagSets, cols)

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if a.options != nil {
		if err := a.applyConfigFile(); err != nil {
			return err
		}

		if err := a.options.Complete(); err != nil {
			return err
		}

		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	log.Info("Starting application", "name", a.name)

	if a.runFunc != nil {
		return a.runFunc()
	}

	return nil
}
