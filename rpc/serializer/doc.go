// Package serializer turns a single common.Message into a frame payload and back.
//
// The frame transport (rpc/transport/base) prefixes every payload with its length,
// so a serializer never deals with stream boundaries. Three formats exist:
//
//   - binary: flag based custom format, only present fields are written. The
//     smallest and fastest format, used by default.
//   - json: human readable, useful when debugging with a packet capture.
//   - gob: Go's gob encoding, every payload is a self-contained stream.
//
// All implementations are stateless and safe for concurrent use.
//
// Usage:
//
//	s, err := serializer.FromName("binary")
//	data, err := s.Serialize(msg)
//	var out common.Message
//	err = s.Deserialize(data, &out)
package serializer
