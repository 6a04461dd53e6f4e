package util

import (
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/serializer"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"github.com/ValentinKolb/dMux/rpc/transport/tcp"
	"github.com/ValentinKolb/dMux/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupEngineFlags adds the flags shared by the client and server engine
func SetupEngineFlags(cmd *cobra.Command, maxPendingDefault int, maxPendingUsage string) {
	key := "max-pending"
	cmd.PersistentFlags().Int(key, maxPendingDefault, WrapString(maxPendingUsage))

	key = "max-frame-size"
	cmd.PersistentFlags().Uint32(key, common.DefaultMaxFrameSize/1024, WrapString("Frames larger than this are rejected as corrupt (in KB)"))

	key = "buffer-size"
	cmd.PersistentFlags().Int(key, common.DefaultBufferSize/1024, WrapString("Size of the read and write buffer of every connection (in KB)"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the kernel write buffer of the socket (in KB, 0 keeps the os default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the kernel read buffer of the socket (in KB, 0 keeps the os default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, only for tcp)"))
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of every call (0 disables the timeout)"))

	key = "endpoint"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the dMux server (e.g. localhost:8080, /tmp/dmux.sock)"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try to (re)establish the connection"))

	key = "rate-limit"
	cmd.PersistentFlags().Float64(key, 0, WrapString("Maximum number of calls per second (0 disables the limit)"))

	SetupEngineFlags(cmd, common.DefaultMaxPending, "Maximum number of outstanding calls on the connection")
}

// InitConfig loads .env files and makes viper read DMUX_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dmux")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetEngineConfig reads the engine configuration from viper
func GetEngineConfig() (common.EngineConfig, error) {
	mode, err := common.ParseMode(viper.GetString("mode"))
	if err != nil {
		return common.EngineConfig{}, err
	}
	return common.EngineConfig{
		Mode:         mode,
		MaxPending:   viper.GetInt("max-pending"),
		MaxFrameSize: viper.GetUint32("max-frame-size") * 1024,
		BufferSize:   viper.GetInt("buffer-size") * 1024,
	}, nil
}

// GetSocketConfig reads the socket settings from viper
func GetSocketConfig() (common.SocketConf, common.TCPConf) {
	return common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		}, common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	engine, err := GetEngineConfig()
	if err != nil {
		return nil, err
	}
	socket, tcpConf := GetSocketConfig()

	conf := &common.ClientConfig{
		TimeoutSecond:     viper.GetInt("timeout"),
		RequestsPerSecond: viper.GetFloat64("rate-limit"),
		Engine:            engine,
		Transport: common.ClientTransportConfig{
			Endpoint:   viper.GetString("endpoint"),
			RetryCount: viper.GetInt("transport-retries"),
			SocketConf: socket,
			TCPConf:    tcpConf,
		},
	}

	return conf, nil
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.FromName(viper.GetString("serializer"))
}

// GetClientTransport creates the client transport based on configuration
func GetClientTransport() (transport.IRPCClientTransport, error) {
	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}

	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientTransport(s), nil
	case "unix":
		return unix.NewUnixClientTransport(s), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}

	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerTransport(s), nil
	case "unix":
		return unix.NewUnixServerTransport(s), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
