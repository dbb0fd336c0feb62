package tacacs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// abortWriteTimeout bounds the best-effort CONTINUE{ABORT} write issued
// when a caller cancels mid-authentication.
const abortWriteTimeout = time.Second

// -------------------------------------------------------------------------
// Outcomes — semantic outcomes of an exchange, not errors
// -------------------------------------------------------------------------

// AuthOutcome is the result of an authentication START or CONTINUE.
type AuthOutcome struct {
	Status    AuthenStatus
	NoEcho    bool
	ServerMsg []byte
	Data      []byte
}

// AwaitingInput reports whether the server wants another CONTINUE before
// reaching a terminal status.
func (o AuthOutcome) AwaitingInput() bool { return o.Status.IsInteractive() }

// AuthorOutcome is the result of an authorization REQUEST.
type AuthorOutcome struct {
	Status    AuthorStatus
	ServerMsg []byte
	Data      []byte
	Args      Args
}

// Permitted reports whether the request was authorized.
func (o AuthorOutcome) Permitted() bool { return o.Status.Permitted() }

// AcctOutcome is the result of an accounting REQUEST.
type AcctOutcome struct {
	Status    AcctStatus
	ServerMsg []byte
	Data      []byte
}

// -------------------------------------------------------------------------
// Session
// -------------------------------------------------------------------------

// Session owns one logical AAA exchange: its session_id, sequence counter,
// and (for authentication) the interactive sub-state. A Session makes its
// request/reply round trips through exchange; aborts (sendAbort, and
// Continue with abort set) are written directly with the Connection's
// writeFrame, and sendAbort sets a write deadline on the stream itself when
// the stream supports one.
type Session struct {
	conn      *Connection
	sessionID uint32
	kind      PacketType

	mu    sync.Mutex
	state sessionState
	seq   uint8
	done  bool

	requestSingleFlg bool
	singleConnSeen   bool
}

// SessionID returns the 32-bit id this Session was allocated at open time.
func (s *Session) SessionID() uint32 { return s.sessionID }

// header builds the outbound header for the next frame this Session will
// send: MinorVersion follows the authen type pairing rule for
// authentication packets, MinorVersionDefault otherwise.
func (s *Session) header(minorVersion uint8, seqNo uint8) Header {
	var flags HeaderFlags
	if s.requestSingleFlg {
		flags |= FlagSingleConnection
	}
	return Header{
		MinorVersion: minorVersion,
		Type:         s.kind,
		SeqNo:        seqNo,
		Flags:        flags,
		SessionID:    s.sessionID,
	}
}

// nextSeq returns the sequence number the next client-sent packet must
// carry. On the first packet of a session this is 1. On later packets it
// is one past the last sequence number observed from the server.
// ErrSequenceExhausted guards the 255->256 wrap.
func (s *Session) nextSeq() (uint8, error) {
	if s.seq == 0 {
		return 1, nil
	}
	n := int(s.seq) + 1
	if n > 255 {
		return 0, ErrSequenceExhausted
	}
	return uint8(n), nil
}

// checkReplySeq validates the server's reply sequence number against what
// was expected. A violation is marked connection-fatal: a bad reply sequence
// means the stream can no longer be trusted to carry coherent frames.
func (s *Session) checkReplySeq(sent uint8, got uint8) error {
	expected := sent + 1
	if got != expected {
		return markConnectionFatal(fmt.Errorf("sent seq %d, expected reply seq %d, got %d: %w", sent, expected, got, ErrSequenceViolation))
	}
	return nil
}

// exchange sends body under the given sequence number and kind-appropriate
// minor version, validates the reply's header (session id, sequence,
// single-connection advisory), and returns the reply body for the caller
// to decode into the expected typed reply.
func (s *Session) exchange(ctx context.Context, minorVersion uint8, seqNo uint8, body Body) ([]byte, error) {
	hdr := s.header(minorVersion, seqNo)

	replyHdr, replyBody, err := s.conn.exchange(ctx, s.sessionID, hdr, body)
	if err != nil {
		if s.shouldAbortOnCancel(seqNo, err) {
			s.sendAbort(seqNo + 2)
		}
		return nil, err
	}

	if replyHdr.SessionID != s.sessionID {
		return nil, ErrSessionIDMismatch
	}
	if seqErr := s.checkReplySeq(seqNo, replyHdr.SeqNo); seqErr != nil {
		s.conn.metrics.IncSequenceViolations()
		// Connection-fatal errors close the stream and fail every session
		// sharing it, not just this one.
		if isConnectionFatal(seqErr) {
			s.conn.failAll(seqErr)
		}
		return nil, seqErr
	}
	if replyHdr.Flags.Has(FlagSingleConnection) {
		s.singleConnSeen = true
	}

	s.seq = replyHdr.SeqNo
	return replyBody, nil
}

// shouldAbortOnCancel reports whether a failed exchange leaves the server
// mid-authentication with the caller gone: a cancelled or timed-out wait
// for a reply past the first round trip. Without an abort the server would
// hold the half-finished session open indefinitely. Past sequence 253 the
// abort's own sequence number would wrap, so nothing can legally be sent.
func (s *Session) shouldAbortOnCancel(seqNo uint8, err error) bool {
	if s.kind != PacketAuthentication || seqNo <= 1 || seqNo > 253 {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// sendAbort best-effort writes a CONTINUE{ABORT} so the server can tear the
// session down. The write is bounded by its own deadline when the stream
// supports one, and its outcome is ignored: the caller has already
// cancelled, and the Connection closes itself on any write failure.
func (s *Session) sendAbort(seqNo uint8) {
	if wd, ok := s.conn.stream.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = wd.SetWriteDeadline(time.Now().Add(abortWriteTimeout))
		defer func() { _ = wd.SetWriteDeadline(time.Time{}) }()
	}

	cont := AuthenContinue{Flags: FlagAbort}
	_ = s.conn.writeFrame(s.header(MinorVersionDefault, seqNo), &cont)
}

// terminate moves the Session to stateTerminal and informs the Connection,
// so a non-single-connection Connection knows to refuse further
// OpenSession calls.
func (s *Session) terminate() {
	s.state = stateTerminal
	if s.done {
		return
	}
	s.done = true
	s.conn.noteSessionTerminal(s.sessionID, s.kind, s.singleConnSeen)
}

// -------------------------------------------------------------------------
// Authenticate / Continue
// -------------------------------------------------------------------------

// Authenticate starts an authentication session with a START packet:
// Idle -> InFlight(1).
func (s *Session) Authenticate(ctx context.Context, req AuthenStart) (AuthOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kind != PacketAuthentication {
		return AuthOutcome{}, fmt.Errorf("session opened for %s, not authentication: %w", s.kind, ErrUnexpectedPacketInState)
	}
	if s.state != stateIdle {
		return AuthOutcome{}, fmt.Errorf("authenticate from state %s: %w", s.state, ErrUnexpectedPacketInState)
	}

	minorVersion := req.AuthenType.RequiredMinorVersion()
	seq, err := s.nextSeq()
	if err != nil {
		return AuthOutcome{}, err
	}

	s.state = stateInFlight
	body, err := s.exchange(ctx, minorVersion, seq, &req)
	if err != nil {
		s.terminate()
		return AuthOutcome{}, err
	}

	var reply AuthenReply
	if err := DecodeAuthenReply(body, &reply); err != nil {
		s.terminate()
		return AuthOutcome{}, err
	}

	return s.applyAuthenReply(reply), nil
}

// Continue supplies the next datum in an interactive authentication
// sub-flow, or aborts it.
func (s *Session) Continue(ctx context.Context, datum []byte, abort bool) (AuthOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateAwaitingUserInput {
		return AuthOutcome{}, fmt.Errorf("continue from state %s: %w", s.state, ErrUnexpectedPacketInState)
	}

	seq, err := s.nextSeq()
	if err != nil {
		s.terminate()
		return AuthOutcome{}, err
	}

	cont := AuthenContinue{UserMsg: datum}
	if abort {
		// The abort is written without awaiting a reply; the session ends
		// locally whether or not the server answers.
		cont.Flags = FlagAbort
		err := s.conn.writeFrame(s.header(MinorVersionDefault, seq), &cont)
		s.terminate()
		if err != nil {
			return AuthOutcome{}, err
		}
		return AuthOutcome{Status: AuthenStatusFail}, nil
	}

	s.state = stateInFlight
	body, err := s.exchange(ctx, MinorVersionDefault, seq, &cont)
	if err != nil {
		s.terminate()
		return AuthOutcome{}, err
	}

	var reply AuthenReply
	if err := DecodeAuthenReply(body, &reply); err != nil {
		s.terminate()
		return AuthOutcome{}, err
	}

	return s.applyAuthenReply(reply), nil
}

// applyAuthenReply runs the reply's status through the FSM and updates
// Session state accordingly. Caller holds s.mu.
func (s *Session) applyAuthenReply(reply AuthenReply) AuthOutcome {
	next, _ := nextAuthenState(s.state, reply.Status)
	s.state = next
	if next == stateTerminal {
		s.conn.metrics.RecordAuthenOutcome(reply.Status.String())
		s.terminate()
	}

	return AuthOutcome{
		Status:    reply.Status,
		NoEcho:    ReplyFlags(reply.Flags).Has(FlagNoEcho),
		ServerMsg: reply.ServerMsg,
		Data:      reply.Data,
	}
}

// Has reports whether f contains every bit set in mask (ReplyFlags mirror
// of HeaderFlags.Has, kept local since the two bitfields are unrelated).
func (f ReplyFlags) Has(mask ReplyFlags) bool { return f&mask == mask }

// -------------------------------------------------------------------------
// Authorize — single round-trip sessions
// -------------------------------------------------------------------------

// Authorize sends an authorization REQUEST and returns the server's
// decision. Authorization sessions are single round-trip:
// Idle -> InFlight(1) -> Terminal.
func (s *Session) Authorize(ctx context.Context, req AuthorRequest) (AuthorOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kind != PacketAuthorization {
		return AuthorOutcome{}, fmt.Errorf("session opened for %s, not authorization: %w", s.kind, ErrUnexpectedPacketInState)
	}
	if s.state != stateIdle {
		return AuthorOutcome{}, fmt.Errorf("authorize from state %s: %w", s.state, ErrUnexpectedPacketInState)
	}

	s.state = stateInFlight
	body, err := s.exchange(ctx, MinorVersionDefault, 1, &req)
	if err != nil {
		s.terminate()
		return AuthorOutcome{}, err
	}

	var reply AuthorResponse
	if err := DecodeAuthorResponse(body, &reply); err != nil {
		s.terminate()
		return AuthorOutcome{}, err
	}
	s.conn.metrics.RecordAuthorOutcome(reply.Status.String())
	s.terminate()

	return AuthorOutcome{
		Status:    reply.Status,
		ServerMsg: reply.ServerMsg,
		Data:      reply.Data,
		Args:      reply.Args,
	}, nil
}

// -------------------------------------------------------------------------
// Account — single round-trip sessions
// -------------------------------------------------------------------------

// Account sends an accounting REQUEST and returns the server's
// acknowledgment. Like Authorize, accounting sessions are single
// round-trip.
func (s *Session) Account(ctx context.Context, req AcctRequest) (AcctOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kind != PacketAccounting {
		return AcctOutcome{}, fmt.Errorf("session opened for %s, not accounting: %w", s.kind, ErrUnexpectedPacketInState)
	}
	if s.state != stateIdle {
		return AcctOutcome{}, fmt.Errorf("account from state %s: %w", s.state, ErrUnexpectedPacketInState)
	}

	s.state = stateInFlight
	body, err := s.exchange(ctx, MinorVersionDefault, 1, &req)
	if err != nil {
		s.terminate()
		return AcctOutcome{}, err
	}

	var reply AcctReply
	if err := DecodeAcctReply(body, &reply); err != nil {
		s.terminate()
		return AcctOutcome{}, err
	}
	s.terminate()

	return AcctOutcome{
		Status:    reply.Status,
		ServerMsg: reply.ServerMsg,
		Data:      reply.Data,
	}, nil
}
