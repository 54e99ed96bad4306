package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/img2prompt/cache"
	"github.com/briangreenhill/img2prompt/internal/config"
	"github.com/briangreenhill/img2prompt/internal/coze"
	"github.com/briangreenhill/img2prompt/internal/generator"
)

func newGenerateCmd(logger func(*cobra.Command) zerolog.Logger) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "generate <file|url>",
		Short: "Generate a prompt for an image with the Coze workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger(cmd)
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.HasCoze() {
				return errors.New("COZE_PERSONAL_TOKEN is not set")
			}

			client, err := coze.New(cfg.Coze.PersonalToken,
				coze.WithBaseURL(cfg.Coze.APIBase),
				coze.WithWorkflowID(cfg.Coze.WorkflowID),
				coze.WithHTTPClient(&http.Client{Timeout: cfg.Coze.Timeout}),
				coze.WithLogger(log),
			)
			if err != nil {
				return err
			}

			gen := generator.New(cache.NewMemoryStore(), cache.NewHasher(cache.WithHashLogger(log)), client,
				generator.WithLogger(log))

			req := generator.Request{Variant: model}
			if remoteURL(args[0]) {
				req.ImageURL = args[0]
			} else {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				req.Image = data
				req.Filename = filepath.Base(args[0])
				req.ContentType = http.DetectContentType(data)
			}

			resp, err := gen.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if resp.Result == "" {
				return fmt.Errorf("workflow returned no prompt for %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "general", "target model: "+fmt.Sprint(coze.Variants))
	return cmd
}
