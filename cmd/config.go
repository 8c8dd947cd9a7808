package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the effective payload configuration as yaml",
	Run: func(cmd *cobra.Command, args []string) {
		data, err := yaml.Marshal(viper.AllSettings())
		if err != nil {
			log.Fatalf("cannot marshal config: %v", err)
		}
		fmt.Print(string(data))
	},
}

func configInit() {}
