// Package app wires cobra, viper and pflag into a runnable command.
//
// The root command runs the server. Subcommands registered with
// WithCommands share the root options: they see the same flags, config
// file and environment, and run after Complete and Validate.
//
// Configuration precedence, highest first: changed flags, environment
// (<NAME>_<SECTION>_<KEY>), config file, flag defaults.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lazysoft/consultant/pkg/app/cliflag"
)

// App is the main application structure.
type App struct {
	name        string
	shortDesc   string
	description string
	options     CliOptions
	commands    []*Command
	runFunc     RunFunc
	cmd         *cobra.Command
}

// RunFunc is the application's run function.
type RunFunc func() error

// Command is a one-shot subcommand sharing the application options.
type Command struct {
	Name  string
	Short string
	Args  cobra.PositionalArgs
	Run   func(args []string) error
}

// Option configures an App.
type Option func(*App)

// WithName sets the application name. It also names the config file and
// the environment prefix.
func WithName(name string) Option {
	return func(a *App) {
		a.name = name
	}
}

// WithShortDescription sets the short description.
func WithShortDescription(desc string) Option {
	return func(a *App) {
		a.shortDesc = desc
	}
}

// WithDescription sets the long description.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithOptions sets the CLI options.
func WithOptions(opts CliOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the run function.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithCommands registers subcommands.
func WithCommands(cmds ...*Command) Option {
	return func(a *App) {
		a.commands = append(a.commands, cmds...)
	}
}

// NewApp creates a new application instance.
func NewApp(opts ...Option) *App {
	a := &App{
		name: filepath.Base(os.Args[0]),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:   a.name,
		Short: a.shortDesc,
		Long:  a.description,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}
			if a.runFunc != nil {
				return a.runFunc()
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	version.AddFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().BoolP("help", "h", false, "Help for "+a.name)

	// 选项 flag 为 persistent，子命令继承。
	if a.options != nil {
		fss := a.options.Flags()
		for _, name := range fss.Order {
			cmd.PersistentFlags().AddFlagSet(fss.FlagSets[name])
		}
		cmd.SetUsageFunc(func(c *cobra.Command) error {
			fmt.Fprintf(c.OutOrStderr(), "Usage:\n  %s\n", c.UseLine())
			if c.HasAvailableSubCommands() {
				fmt.Fprintln(c.OutOrStderr(), "\nCommands:")
				for _, sub := range c.Commands() {
					if sub.IsAvailableCommand() {
						fmt.Fprintf(c.OutOrStderr(), "  %-12s %s\n", sub.Name(), sub.Short)
					}
				}
			}
			cliflag.PrintSections(c.OutOrStderr(), fss)
			return nil
		})
	}

	for _, sub := range a.commands {
		cmd.AddCommand(a.subCommand(sub))
	}
	a.cmd = cmd
}

func (a *App) subCommand(sub *Command) *cobra.Command {
	return &cobra.Command{
		Use:          sub.Name,
		Short:        sub.Short,
		Args:         sub.Args,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}
			return sub.Run(args)
		},
	}
}

// prepare loads configuration, then completes and validates the options.
func (a *App) prepare(cmd *cobra.Command) error {
	version.PrintAndExitIfRequested()

	v := viper.New()
	if err := a.loadConfig(v, cmd); err != nil {
		return err
	}
	if a.options == nil {
		return nil
	}
	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := a.options.Complete(); err != nil {
		return err
	}
	return a.options.Validate()
}

// loadConfig reads the config file with ${VAR} references expanded and
// binds environment and flags on v.
func (a *App) loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(a.name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+a.name))
		v.AddConfigPath("/etc/" + a.name)
	}

	if err := v.ReadInConfig(); err != nil {
		// 显式指定的配置文件必须存在；搜索不到时使用默认值。
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := expandConfig(v); err != nil {
		return err
	}

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(a.name, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	return nil
}

// expandConfig re-reads the loaded file with ${VAR} and $VAR replaced.
// Unset variables expand to the empty string.
func expandConfig(v *viper.Viper) error {
	path := v.ConfigFileUsed()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		v.SetConfigType(ext)
	}
	if err := v.ReadConfig(strings.NewReader(os.ExpandEnv(string(data)))); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Run executes the application and exits non-zero on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}
