package main

import (
	"context"
	"os"

	"github.com/sebdeveloper6952/dvmjob/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *logrus.Logger

	flagConfigFilePath string
	flagVerbose        bool
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initDvmjob

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(keygenCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if logger != nil {
			logger.Errorf("dvmjob failed %+v", err)
		} else {
			logrus.Errorf("dvmjob failed %+v", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "dvmjob",
	Short:        "Submit jobs to Nostr data vending machines and wait for the result",
	SilenceUsage: true,
}

func initDvmjob(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(flagConfigFilePath)
	if err != nil {
		return err
	}

	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if flagVerbose {
		level = logrus.TraceLevel
	}
	logger.SetLevel(level)

	return nil
}
