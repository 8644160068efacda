// Command schedctl is the host-side CLI for driving and observing the
// scheduler and SynCom link: "demo" subcommands reproduce the scenarios
// this repository is tested against, and "connect" bridges a real target
// over USB-serial into the terminal monitor.
package main

import (
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "schedctl",
	Short: "Drive and observe the cooperative scheduler and SynCom link",
}

func main() {
	defer glog.Flush()

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(connectCmd)

	if err := rootCmd.Execute(); err != nil {
		glog.Errorf("schedctl: %v", err)
		os.Exit(1)
	}
}
