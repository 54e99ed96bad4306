package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/img2prompt/cache"
)

func newHashCmd(logger func(*cobra.Command) zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file|url>",
		Short: "Print the cache fingerprint of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := cache.NewHasher(cache.WithHashLogger(logger(cmd)))

			var fp string
			if remoteURL(args[0]) {
				fp = h.HashURL(args[0])
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				fp = h.HashReader(f)
			}

			if cache.IsFallback(fp) {
				return fmt.Errorf("could not fingerprint %s (got %s)", args[0], fp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), fp)
			return nil
		},
	}
}
