package tacacs

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// maxSessionIDAttempts bounds session_id allocation. With a 32-bit random
// space and realistic session counts, collisions are astronomically
// unlikely, but a bound prevents spinning forever in a degenerate state.
const maxSessionIDAttempts = 100

// frameResult is what the reader loop hands to a waiting Session: either a
// decoded reply or the error that ended the attempt to decode/route it.
type frameResult struct {
	hdr  Header
	body []byte
	err  error
}

// sessionSlot is the one-shot delivery point the reader loop uses to hand
// an inbound frame to the Session awaiting it.
type sessionSlot struct {
	ch   chan frameResult
	dead bool
}

// Connection owns one TACACS+ byte stream: it serialises outbound frames
// under a writer mutex, runs a single reader goroutine that demultiplexes
// inbound frames to their owning Session by session_id, and enforces
// single-connection multiplexing semantics.
type Connection struct {
	stream io.ReadWriter

	secret         []byte
	allowClearText bool
	preferSingle   bool

	log     *slog.Logger
	metrics MetricsReporter

	writeMu sync.Mutex

	mu                 sync.Mutex
	sessions           map[uint32]*sessionSlot
	singleConnection   bool
	firstSessionOpened bool
	firstSessionDone   bool
	closed             bool
	closeErr           error

	readerDone chan struct{}
}

// Option configures a Connection at Dial time.
type Option func(*Connection)

// WithSecret configures the shared secret used for body obfuscation. With
// no secret, every frame is sent and expected with FlagUnencrypted set.
func WithSecret(secret []byte) Option {
	return func(c *Connection) { c.secret = secret }
}

// WithAllowClearTextReplies permits inbound frames with FlagUnencrypted set
// even when a secret is configured.
func WithAllowClearTextReplies(allow bool) Option {
	return func(c *Connection) { c.allowClearText = allow }
}

// WithPreferSingleConnection requests single-connection multiplexing: the
// first client packet on the connection sets FlagSingleConnection.
func WithPreferSingleConnection(prefer bool) Option {
	return func(c *Connection) { c.preferSingle = prefer }
}

// WithLogger attaches a structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) { c.log = l }
}

// Dial wraps an already-connected bidirectional byte stream in a
// Connection and starts its reader goroutine. The transport itself is out
// of scope here: callers establish the TCP connection and pass it in as
// stream.
func Dial(ctx context.Context, stream io.ReadWriter, opts ...Option) (*Connection, error) {
	c := &Connection{
		stream:     stream,
		log:        slog.Default(),
		metrics:    noopMetrics{},
		sessions:   make(map[uint32]*sessionSlot),
		readerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(slog.String("component", "tacacs.connection"))

	go c.readLoop(ctx)

	return c, nil
}

// OpenSession allocates a fresh Session of the given packet kind. Once the
// first Session on a Connection that has not negotiated single-connection
// mode has terminated, further calls fail with
// ErrConnectionNotSingleConnection.
func (c *Connection) OpenSession(kind PacketType) (*Session, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	if c.firstSessionOpened && c.firstSessionDone && !c.singleConnection {
		c.mu.Unlock()
		return nil, ErrConnectionNotSingleConnection
	}
	setSingleFlag := c.preferSingle && !c.firstSessionOpened
	c.firstSessionOpened = true
	c.mu.Unlock()

	id, err := c.allocateSessionID()
	if err != nil {
		return nil, err
	}

	slot := &sessionSlot{ch: make(chan frameResult, 1)}
	c.mu.Lock()
	c.sessions[id] = slot
	c.mu.Unlock()

	c.metrics.RegisterSession(kind.String())

	return &Session{
		conn:             c,
		sessionID:        id,
		kind:             kind,
		state:            stateIdle,
		requestSingleFlg: setSingleFlag,
	}, nil
}

// allocateSessionID picks a random, currently-unused 32-bit session id.
func (c *Connection) allocateSessionID() (uint32, error) {
	var buf [4]byte
	for range maxSessionIDAttempts {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("generate session id: %w", err)
		}
		id := binary.BigEndian.Uint32(buf[:])

		c.mu.Lock()
		_, live := c.sessions[id]
		c.mu.Unlock()
		if live {
			continue
		}
		return id, nil
	}
	return 0, fmt.Errorf("allocate session id after %d attempts: %w", maxSessionIDAttempts, ErrSessionIDExhausted)
}

// exchange serialises hdr+body under the writer mutex, writes the frame,
// and awaits the reply routed to sessionID by the reader loop. Cancelling
// ctx deregisters the session's slot so no later frame bearing its id is
// accepted.
func (c *Connection) exchange(ctx context.Context, sessionID uint32, hdr Header, body Body) (Header, []byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Header{}, nil, ErrConnectionClosed
	}
	slot, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok || slot.dead {
		return Header{}, nil, ErrSessionClosed
	}

	if err := c.writeFrame(hdr, body); err != nil {
		return Header{}, nil, err
	}

	select {
	case res := <-slot.ch:
		return res.hdr, res.body, res.err
	case <-ctx.Done():
		c.deregister(sessionID)
		return Header{}, nil, ctx.Err()
	}
}

// writeFrame serialises hdr+body under the writer mutex and writes the
// frame without registering for a reply. A failed or partial write closes
// the Connection: a half-written frame leaves the stream unusable for
// framing.
func (c *Connection) writeFrame(hdr Header, body Body) error {
	buf := make([]byte, HeaderSize+body.Len())
	n, err := EncodePacket(buf, hdr, body, c.secret)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	_, err = c.stream.Write(buf[:n])
	c.writeMu.Unlock()
	if err != nil {
		err = markConnectionFatal(fmt.Errorf("write frame: %w", err))
		c.failAll(err)
		return err
	}

	c.metrics.IncPacketsSent(hdr.Type.String())
	return nil
}

// deregister removes sessionID from the routing table and marks it dead so
// a racing inbound frame is discarded rather than delivered to a caller
// that has already stopped waiting.
func (c *Connection) deregister(sessionID uint32) {
	c.mu.Lock()
	if slot, ok := c.sessions[sessionID]; ok {
		slot.dead = true
		delete(c.sessions, sessionID)
	}
	c.mu.Unlock()
}

// noteSessionTerminal records that a session reached a terminal state, so a
// non-single-connection Connection refuses further OpenSession calls
// afterward; the Connection is otherwise one-shot.
func (c *Connection) noteSessionTerminal(sessionID uint32, kind PacketType, singleConnectionSeen bool) {
	c.mu.Lock()
	c.firstSessionDone = true
	if singleConnectionSeen {
		c.singleConnection = true
	}
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	c.metrics.UnregisterSession(kind.String())
}

// readLoop is the Connection's single reader task. It reads one frame at a
// time, deobfuscates it, and routes it to the owning session's slot. An
// unrouteable frame is logged and discarded. Any codec or transport error
// is fatal to the Connection.
func (c *Connection) readLoop(ctx context.Context) {
	defer close(c.readerDone)

	hdrBuf := make([]byte, HeaderSize)
	for {
		if _, err := io.ReadFull(c.stream, hdrBuf); err != nil {
			c.failAll(markConnectionFatal(fmt.Errorf("read header: %w", err)))
			return
		}

		hdr, err := DecodeHeader(hdrBuf)
		if err != nil {
			c.failAll(markConnectionFatal(err))
			return
		}

		bodyBuf := make([]byte, hdr.Length)
		if hdr.Length > 0 {
			if _, err := io.ReadFull(c.stream, bodyBuf); err != nil {
				c.failAll(markConnectionFatal(fmt.Errorf("read body: %w", err)))
				return
			}
		}

		frame := append(append([]byte{}, hdrBuf...), bodyBuf...)
		decodedHdr, body, err := DecodePacket(frame, c.secret, c.allowClearText)
		if err != nil {
			if errors.Is(err, ErrUnexpectedObfuscation) || errors.Is(err, ErrUnexpectedClearText) {
				c.metrics.IncObfuscationErrors()
			}
			c.failAll(markConnectionFatal(err))
			return
		}
		c.metrics.IncPacketsReceived(decodedHdr.Type.String())

		c.mu.Lock()
		if err := c.checkSingleConnectionRevoked(decodedHdr); err != nil {
			c.mu.Unlock()
			c.failAll(markConnectionFatal(err))
			return
		}
		slot, ok := c.sessions[decodedHdr.SessionID]
		c.mu.Unlock()

		if !ok {
			c.metrics.IncPacketsDropped(decodedHdr.Type.String())
			c.log.Warn("dropping frame for unknown session", slog.Any("session_id", decodedHdr.SessionID))
			continue
		}

		select {
		case slot.ch <- frameResult{hdr: decodedHdr, body: body}:
		default:
			c.metrics.IncPacketsDropped(decodedHdr.Type.String())
			c.log.Warn("session slot full, dropping frame", slog.Any("session_id", decodedHdr.SessionID))
		}

		select {
		case <-ctx.Done():
			c.failAll(ctx.Err())
			return
		default:
		}
	}
}

// checkSingleConnectionRevoked enforces that once a stream has negotiated
// single-connection mode, any later frame missing FlagSingleConnection is
// a fatal protocol violation. Caller holds c.mu.
func (c *Connection) checkSingleConnectionRevoked(hdr Header) error {
	if c.singleConnection && !hdr.Flags.Has(FlagSingleConnection) {
		return ErrSingleConnectionRevoked
	}
	return nil
}

// failAll marks the Connection closed and delivers err to every registered
// session: the connection closes the stream and fails all registered
// sessions with a shared error.
func (c *Connection) failAll(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = err
	sessions := c.sessions
	c.sessions = nil
	c.mu.Unlock()

	for id, slot := range sessions {
		select {
		case slot.ch <- frameResult{err: err}:
		default:
		}
		_ = id
	}

	if closer, ok := c.stream.(io.Closer); ok {
		_ = closer.Close()
	}
}

// Close shuts down the Connection: the reader goroutine is stopped, the
// stream is closed, and any live sessions fail with ErrConnectionClosed.
func (c *Connection) Close() error {
	c.failAll(ErrConnectionClosed)
	<-c.readerDone
	if errors.Is(c.closeErr, ErrConnectionClosed) {
		return nil
	}
	return c.closeErr
}
