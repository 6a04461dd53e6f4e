package base

import (
	"github.com/ValentinKolb/dMux/lib/tagstore"
	"github.com/ValentinKolb/dMux/rpc/common"
	"time"
)

// callResult is the single outcome of a pending call
type callResult struct {
	msg *common.Message
	err error
}

// pendingCall links a dispatched request to the caller waiting for it
type pendingCall struct {
	tag   tagstore.Tag
	start time.Time
	done  chan callResult // capacity 1, receives exactly one result
}

func newPendingCall() *pendingCall {
	return &pendingCall{
		start: time.Now(),
		done:  make(chan callResult, 1),
	}
}

// correlator matches responses with pending calls.
// All methods are called with the table lock of the client engine held.
type correlator interface {
	// register binds p to req and prepares req for the wire
	register(req *common.Message, p *pendingCall) error
	// unregister removes p if it is still registered (the request never reached the wire)
	unregister(p *pendingCall) bool
	// match removes and returns the pending call resp belongs to
	match(resp *common.Message) (*pendingCall, error)
	// drain removes and returns all pending calls
	drain() []*pendingCall
	// len returns the number of pending calls
	len() int
}

// --------------------------------------------------------------------------
// Multiplex: correlation by tag
// --------------------------------------------------------------------------

// multiplexCorrelator allocates a tag per request, responses can arrive in any order
type multiplexCorrelator struct {
	tags *tagstore.Store[*pendingCall]
}

func newMultiplexCorrelator(maxPending int) *multiplexCorrelator {
	return &multiplexCorrelator{tags: tagstore.NewStore[*pendingCall](maxPending)}
}

func (m *multiplexCorrelator) register(req *common.Message, p *pendingCall) error {
	tag, err := m.tags.Allocate(p)
	if err != nil {
		return err
	}
	p.tag = tag
	req.Tag = tag
	return nil
}

func (m *multiplexCorrelator) unregister(p *pendingCall) bool {
	if current, ok := m.tags.Lookup(p.tag); !ok || current != p {
		return false
	}
	_, err := m.tags.Release(p.tag)
	return err == nil
}

func (m *multiplexCorrelator) match(resp *common.Message) (*pendingCall, error) {
	if !resp.IsResponse() {
		return nil, common.NewProtocolError("match", "unexpected %s frame", resp.MsgType)
	}
	p, err := m.tags.Release(resp.Tag)
	if err != nil {
		return nil, common.NewProtocolError("match", "response for unknown tag %d", resp.Tag)
	}
	return p, nil
}

func (m *multiplexCorrelator) drain() []*pendingCall { return m.tags.Drain() }

func (m *multiplexCorrelator) len() int { return m.tags.Len() }
