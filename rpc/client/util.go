package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dMux/rpc/common"
	"github.com/ValentinKolb/dMux/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger(common.LoggerClient)
)

// invokeRPCRequest is a helper function used for all RPC calls
// It sends the request over the transport and checks the type of the response
// Failed handlers are reported as errors of kind common.KindHandler
func invokeRPCRequest(ctx context.Context, req *common.Message, transport transport.IRPCClientTransport) (*common.Message, error) {
	resp, err := transport.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError {
		return nil, common.NewHandlerError(req.Method, resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != common.MsgTResponse {
		return nil, fmt.Errorf("RPC %s - Unexpected message type: %s, expected %s", req.Method, resp.MsgType, common.MsgTResponse)
	}

	return resp, nil
}
