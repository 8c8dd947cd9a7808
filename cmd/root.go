package cmd

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microdroid-test/payload/pkg/defaults"
)

var verbosity string

var rootCmd = &cobra.Command{
	Use: "mdpayload",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := log.ParseLevel(viper.GetString("verbosity"))
		if err != nil {
			log.Fatalf("cannot parse verbosity: %v", err)
		}
		log.SetLevel(level)
	},
}

func init() {
	viper.SetEnvPrefix(defaults.DefaultEnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug/info/warn/error)")
	_ = viper.BindPFlag("verbosity", rootCmd.PersistentFlags().Lookup("verbosity"))

	rootCmd.AddCommand(runCmd)
	runInit()
	rootCmd.AddCommand(configCmd)
	configInit()
	rootCmd.AddCommand(clientCmd)
	clientInit()
	rootCmd.AddCommand(versionCmd)
}

// Execute primary function for cobra
func Execute() {
	_ = rootCmd.Execute()
}
