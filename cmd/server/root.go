package main

import (
	"github.com/spf13/cobra"

	"github.com/rpattn/advfilters/internal/config"
	"github.com/rpattn/advfilters/internal/log"
)

type rootOptions struct {
	configPath string
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "advfilters",
		Short:         "Saved filter and field choice service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", ".", "directory holding config.yaml, or a config file path")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewOperatorsCommand(opts))
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	log.SetLevel(cfg.Log.Level)
	return cfg, nil
}
