// cmd/postmon/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logConsole bool
)

var rootCmd = &cobra.Command{
	Use:           "postmon",
	Short:         "Decode POST codes streamed by a serial diagnostic device",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the config file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "console", false, "human readable logs")

	rootCmd.AddCommand(monitorCmd, syncCmd, decodeCmd, portsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "postmon:", err)
		os.Exit(1)
	}
}
