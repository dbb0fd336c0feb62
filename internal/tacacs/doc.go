// Package tacacs implements the client side of TACACS+ (RFC 8907): a packet
// codec with MD5-keyed body obfuscation, and a runtime-agnostic session and
// connection engine that drives authentication, authorization, and
// accounting (AAA) exchanges over a single TCP connection.
//
// The package is organized the way the protocol is layered end to end:
//
//   - primitives.go: fixed-width field encoders and protocol enumerations.
//   - obfuscate.go: the MD5 pseudo-pad XOR layer (RFC 8907 Section 4.5).
//   - packet.go: the 12-byte header plus per-body codecs (Section 4).
//   - args.go: the `name{=|*}value` argument encoding shared by
//     authorization and accounting bodies.
//   - session.go: the per-session state machine (Section 4.4 in the
//     accompanying design notes).
//   - connection.go: the connection multiplexer that owns the byte stream
//     and demultiplexes inbound frames to their owning session.
//   - metrics.go: the MetricsReporter hooks the connection and sessions
//     report protocol events through.
//
// The codec (primitives.go, obfuscate.go, packet.go, args.go) has no
// dependency on an OS runtime. It is not allocation-free: the obfuscation
// pad is built in a fresh slice as long as the body, and argument encoding
// and decoding allocate their length tables and decoded argument lists.
// The session and connection layers assume only
// a bidirectional byte stream and goroutines, not a specific network stack.
package tacacs
