package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tutorprobe/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	BaseURL string
	Timeout time.Duration

	// Config is resolved from defaults, environment and flags before any
	// subcommand runs.
	Config config.Config

	// Logger writes diagnostics to stderr.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tutorprobe CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tutorprobe",
		Short: "tutorprobe - integration probes for the tuition-matching API",
		Long: `Fire scripted HTTP probes at a running tuition-matching server and report
what came back: the status and body of every response, or why no response
arrived (connection refused, timeout, malformed reply).

Configuration is read from the environment and may be overridden by flags:
  TUTORPROBE_BASE_URL   server address (default http://localhost:5000)
  JWT_SECRET            token signing secret (default: insecure dev secret)
  TUTORPROBE_TIMEOUT_MS per-probe timeout in milliseconds (default 5000)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.Logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", config.DefaultBaseURL, "server base URL (overrides "+config.EnvBaseURL+")")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", config.DefaultTimeout, "per-probe timeout (overrides "+config.EnvTimeoutMS+")")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// resolve layers flags that were set explicitly over the environment.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = o.BaseURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.Timeout
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	o.Config = cfg
	o.Logger.Debug("configuration resolved",
		"base_url", cfg.BaseURL,
		"timeout", cfg.Timeout,
		"dev_secret", cfg.UsingDevSecret(),
	)
	return nil
}

// formatter returns an OutputFormatter writing to the command's stdout.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// warnDevSecret logs once per command when tokens are signed with the
// published development secret.
func (o *RootOptions) warnDevSecret() {
	if o.Config.UsingDevSecret() {
		o.Logger.Warn("signing tokens with the insecure development secret; set "+config.EnvSecret+" for anything but a local dev server")
	}
}

// newLogger configures slog the way every command shares: text to stderr,
// Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
