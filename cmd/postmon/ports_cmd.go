// cmd/postmon/ports_cmd.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tamzrod/postcode-monitor/internal/device"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List candidate serial ports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ports, err := device.ListPorts()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(ports) == 0 {
			fmt.Fprintln(out, "no serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(out, p)
		}
		return nil
	},
}
