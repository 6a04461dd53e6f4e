package server

import (
	"context"
	"github.com/ValentinKolb/dMux/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling the requests of one method
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// A returned error is sent to the client as a failed response
	// The context ends when the handler timeout expires or the connection fails
	Handle(ctx context.Context, req *common.Message) (resp *common.Message, err error)
}
