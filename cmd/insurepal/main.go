// Package main is the InsurePal CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/insurepal/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/insurepal/config.yaml"

// loadConfig loads .env and then config from path. When path is the default,
// it first looks for config.yaml in the current directory (for development);
// if that exists it is used. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	config.LoadDotEnv()
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

type rootOptions struct {
	configPath string
	backend    string
	output     string
}

// backendURL returns the --backend flag when set, else the configured URL.
func (o *rootOptions) backendURL() (string, error) {
	if o.backend != "" {
		return strings.TrimRight(o.backend, "/"), nil
	}
	cfg, _, err := loadConfig(o.configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.Client.BackendURL, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "insurepal",
		Short:         "InsurePal - ask questions about insurance documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "backend URL for client commands (default: client.backend_url)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newServerCmd(opts),
		newUICmd(opts),
		newAskCmd(opts),
		newStatusCmd(opts),
		newDocumentsCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("insurepal version %s\n", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
