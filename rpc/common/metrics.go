package common

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"time"
)

// --------------------------------------------------------------------------
// Engine metrics (exposed in prometheus text format by the serve command)
// --------------------------------------------------------------------------

var (
	framesSent     = metrics.NewCounter(`dmux_frames_sent_total`)
	framesReceived = metrics.NewCounter(`dmux_frames_received_total`)
	bytesSent      = metrics.NewCounter(`dmux_bytes_sent_total`)
	bytesReceived  = metrics.NewCounter(`dmux_bytes_received_total`)

	callsPending = metrics.NewCounter(`dmux_client_calls_pending`)
	callLatency  = metrics.NewHistogram(`dmux_client_call_duration_seconds`)

	handlersRunning = metrics.NewCounter(`dmux_server_handlers_running`)
	handlerLatency  = metrics.NewHistogram(`dmux_server_handler_duration_seconds`)
)

// RecordFrameSent counts an outbound frame of n payload bytes
func RecordFrameSent(n int) {
	framesSent.Inc()
	bytesSent.Add(n)
}

// RecordFrameReceived counts an inbound frame of n payload bytes
func RecordFrameReceived(n int) {
	framesReceived.Inc()
	bytesReceived.Add(n)
}

// RecordCallStarted marks a dispatched client call
func RecordCallStarted() { callsPending.Inc() }

// RecordCallFinished marks a resolved client call
func RecordCallFinished(start time.Time, err error) {
	callsPending.Dec()
	callLatency.UpdateDuration(start)
	result := "ok"
	if err != nil {
		result = resultLabel(KindOf(err))
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`dmux_client_calls_total{result=%q}`, result)).Inc()
}

// RecordHandlerStarted marks a running server handler
func RecordHandlerStarted() { handlersRunning.Inc() }

// RecordHandlerFinished marks a finished server handler
func RecordHandlerFinished(start time.Time, failed bool) {
	handlersRunning.Dec()
	handlerLatency.UpdateDuration(start)
	result := "ok"
	if failed {
		result = "error"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`dmux_server_requests_total{result=%q}`, result)).Inc()
}

// RecordConnectionFailure counts a connection that terminated with a fatal error
func RecordConnectionFailure(side string, kind ErrorKind) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dmux_connection_failures_total{side=%q,kind=%q}`, side, resultLabel(kind))).Inc()
}

// WriteMetrics writes all metrics in prometheus text format
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

func resultLabel(kind ErrorKind) string {
	switch kind {
	case KindTransport:
		return "transport"
	case KindCodec:
		return "codec"
	case KindProtocol:
		return "protocol"
	case KindHandler:
		return "handler"
	case KindClosed:
		return "closed"
	default:
		return "other"
	}
}
