package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-ops/kestrel/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		fmt.Printf("configuration ok: %d units, broker %s\n", len(cfg.Units), cfg.MQTT.Broker)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
