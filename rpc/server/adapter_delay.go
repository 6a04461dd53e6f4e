package server

import (
	"context"
	"github.com/ValentinKolb/dMux/rpc/common"
	"math/rand"
	"time"
)

// NewDelayServerAdapter returns an echo adapter that waits a random time in [0, maxDelay)
// before it answers. Concurrent requests on one connection finish out of order.
func NewDelayServerAdapter(maxDelay time.Duration) IRPCServerAdapter {
	return &delayServerAdapter{maxDelay: maxDelay}
}

type delayServerAdapter struct {
	maxDelay time.Duration
}

func (adapter *delayServerAdapter) Handle(ctx context.Context, req *common.Message) (*common.Message, error) {
	if adapter.maxDelay > 0 {
		timer := time.NewTimer(time.Duration(rand.Int63n(int64(adapter.maxDelay))))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return common.NewResponse(req, req.Value), nil
}
