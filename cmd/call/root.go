package call

import (
	"github.com/ValentinKolb/dMux/cmd/util"
	"github.com/ValentinKolb/dMux/rpc/client"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcClient *client.RPCClient

	// CallCommands represents the client command group
	CallCommands = &cobra.Command{
		Use:                "call",
		Short:              "Call the services of a dMux server",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the call command
	util.SetupRPCClientFlags(CallCommands)

	// Add subcommands
	CallCommands.AddCommand(echoCmd)
	CallCommands.AddCommand(delayCmd)
	CallCommands.AddCommand(perfTestCmd)
}

// setupClient connects the RPC client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	rpcClient, err = client.NewRPCClient(*config, t)
	return err
}

// closeClient waits for outstanding calls and closes the connection
func closeClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}
