package base

import (
	"github.com/ValentinKolb/dMux/rpc/common"
)

// pipelineCorrelator keeps pending calls in send order and resolves the oldest one
// with every response. Requests are not tagged.
type pipelineCorrelator struct {
	queue []*pendingCall
	head  int
}

func newPipelineCorrelator() *pipelineCorrelator {
	return &pipelineCorrelator{}
}

func (q *pipelineCorrelator) register(req *common.Message, p *pendingCall) error {
	req.Tag = 0
	q.queue = append(q.queue, p)
	return nil
}

func (q *pipelineCorrelator) unregister(p *pendingCall) bool {
	// only the most recent call can be unsent, older calls are already on the wire
	last := len(q.queue) - 1
	if last < q.head || q.queue[last] != p {
		return false
	}
	q.queue[last] = nil
	q.queue = q.queue[:last]
	return true
}

func (q *pipelineCorrelator) match(resp *common.Message) (*pendingCall, error) {
	if !resp.IsResponse() {
		return nil, common.NewProtocolError("match", "unexpected %s frame", resp.MsgType)
	}
	if q.head == len(q.queue) {
		return nil, common.NewProtocolError("match", "response without pending request")
	}

	p := q.queue[q.head]
	q.queue[q.head] = nil
	q.head++

	// compact once the consumed prefix dominates the slice
	if q.head == len(q.queue) {
		q.queue = q.queue[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.queue) {
		n := copy(q.queue, q.queue[q.head:])
		clear(q.queue[n:])
		q.queue = q.queue[:n]
		q.head = 0
	}
	return p, nil
}

func (q *pipelineCorrelator) drain() []*pendingCall {
	calls := append([]*pendingCall(nil), q.queue[q.head:]...)
	q.queue = nil
	q.head = 0
	return calls
}

func (q *pipelineCorrelator) len() int { return len(q.queue) - q.head }
