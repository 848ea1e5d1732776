package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/certy/internal/config"
	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/internal/views"
)

func newLayoutCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Manage the certificate layout file",
	}
	cmd.PersistentFlags().StringVarP(&path, "file", "f", "", "layout file; defaults to LAYOUT_PATH")

	resolve := func() (string, error) {
		if path != "" {
			return path, nil
		}
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		return cfg.LayoutPath, nil
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := resolve()
			if err != nil {
				return err
			}
			if _, err := os.Stat(p); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", p)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := layout.NewStore(p).Save(layout.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", p)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the layout in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := resolve()
			if err != nil {
				return err
			}
			cfg, err := layout.NewStore(p).Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), views.LayoutJSON(cfg))
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
