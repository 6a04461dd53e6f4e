package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dMux/cmd/call"
	"github.com/ValentinKolb/dMux/cmd/serve"
	"github.com/ValentinKolb/dMux/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dmux",
		Short: "multiplexed RPC transport",
		Long: fmt.Sprintf(`dMux (v%s)

A multiplexed RPC transport written in Go. Many concurrent calls share one
connection and are correlated by tag (multiplex mode) or by order (pipeline mode).`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dMux",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dMux v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(call.CallCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
	key = "mode"
	RootCmd.PersistentFlags().String(key, "multiplex", util.WrapString("how responses are correlated (multiplex, pipeline), must match on client and server"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
