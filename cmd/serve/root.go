package serve

import (
	"context"
	cmdUtil "github.com/ValentinKolb/dMux/cmd/util"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dMux server",
		Long:    `Start the dMux server with the echo and delay services. The configuration can be set via command line flags or environment variables. The format of the environment variables is DMUX_<flag> (e.g. DMUX_MAX_DELAY=50)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:8080, /tmp/dmux.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Handler timeout in seconds (0 disables the timeout)"))

	key = "max-delay"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Upper bound of the random latency of the delay service (in milliseconds)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the prometheus metrics endpoint (e.g. localhost:9090, empty disables it)"))

	cmdUtil.SetupEngineFlags(ServeCmd, common.DefaultMaxWorkersPerConn, "Maximum number of concurrently running handlers per connection")
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	engine, err := cmdUtil.GetEngineConfig()
	if err != nil {
		return err
	}
	socket, tcpConf := cmdUtil.GetSocketConfig()

	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MaxDelayMillisecond = viper.GetInt("max-delay")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Engine = engine
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:   viper.GetString("endpoint"),
		SocketConf: socket,
		TCPConf:    tcpConf,
	}

	return nil
}

// run starts the dMux server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = serv.Close()
	}()

	return serv.Serve()
}
