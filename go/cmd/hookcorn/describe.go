package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lunixbochs/hookcorn/go/lua"
	"github.com/lunixbochs/hookcorn/go/models"
	"github.com/lunixbochs/hookcorn/go/models/event"
)

func newDescribeCmd() *cobra.Command {
	config := &models.Config{}
	var envFile string
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "load scripts and print the registered hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, config, envFile); err != nil {
				return err
			}
			m := event.NewManager()
			b, err := lua.New(m)
			if err != nil {
				return err
			}
			defer b.Close()
			b.SetOutput(cmd.OutOrStdout())
			if err := b.LoadScripts(config.Scripts); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), m.Describe(config.Color))
			return nil
		},
	}
	addConfigFlags(cmd, config, &envFile)
	return cmd
}
