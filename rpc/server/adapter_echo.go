package server

import (
	"context"
	"github.com/ValentinKolb/dMux/rpc/common"
)

// NewEchoServerAdapter returns an adapter answering every request with its own payload
func NewEchoServerAdapter() IRPCServerAdapter {
	return &echoServerAdapter{}
}

type echoServerAdapter struct{}

func (adapter *echoServerAdapter) Handle(_ context.Context, req *common.Message) (*common.Message, error) {
	return common.NewResponse(req, req.Value), nil
}
