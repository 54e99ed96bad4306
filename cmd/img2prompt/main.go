package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "img2prompt",
		Short:         "Fingerprint images and turn them into prompts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	logger := func(cmd *cobra.Command) zerolog.Logger {
		lvl, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			lvl = zerolog.WarnLevel
		}
		return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
			Level(lvl).With().Timestamp().Logger()
	}

	root.AddCommand(
		newHashCmd(logger),
		newGenerateCmd(logger),
	)
	return root
}

// remoteURL reports whether arg should be treated as an image URL rather
// than a local path.
func remoteURL(arg string) bool {
	u, err := url.Parse(arg)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
