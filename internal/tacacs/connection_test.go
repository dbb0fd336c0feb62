package tacacs

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// TestMain runs all tests in this package and checks for goroutine leaks
// after all tests complete.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testFrame bundles what the fake server needs to read and reply to one
// client frame in the tests below.
type testFrame struct {
	hdr  Header
	body []byte
}

// readTestFrame reads one full frame off r the same way Connection.readLoop
// does and decodes it with DecodePacket, deobfuscating the body when secret
// is non-empty.
func readTestFrame(t *testing.T, r io.Reader, secret []byte) testFrame {
	t.Helper()
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		t.Fatalf("read header: %v", err)
	}
	hdr, err := DecodeHeader(hdrBuf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	bodyBuf := make([]byte, hdr.Length)
	if hdr.Length > 0 {
		if _, err := io.ReadFull(r, bodyBuf); err != nil {
			t.Fatalf("read body: %v", err)
		}
	}
	full := append(append([]byte{}, hdrBuf...), bodyBuf...)
	decodedHdr, body, err := DecodePacket(full, secret, false)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	return testFrame{hdr: decodedHdr, body: body}
}

func writeTestFrame(t *testing.T, w io.Writer, hdr Header, body Body, secret []byte) {
	t.Helper()
	buf := make([]byte, HeaderSize+body.Len())
	n, err := EncodePacket(buf, hdr, body, secret)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}
	if _, err := w.Write(buf[:n]); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// TestConnectionPAPAuthenticationScenario1 exercises a PAP login that
// succeeds on the first reply, end to end through Connection/Session.
func TestConnectionPAPAuthenticationScenario1(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	secret := []byte("very secure key that is super secret")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f := readTestFrame(t, serverConn, secret)
		if f.hdr.SeqNo != 1 {
			t.Errorf("server saw seq %d, want 1", f.hdr.SeqNo)
		}
		reply := AuthenReply{Status: AuthenStatusPass}
		replyHdr := Header{Type: PacketAuthentication, SeqNo: f.hdr.SeqNo + 1, SessionID: f.hdr.SessionID}
		writeTestFrame(t, serverConn, replyHdr, &reply, secret)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, clientConn, WithSecret(secret))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	sess, err := conn.OpenSession(PacketAuthentication)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	outcome, err := sess.Authenticate(ctx, AuthenStart{
		Action:     AuthenActionLogin,
		AuthenType: AuthenTypePAP,
		Service:    ServiceLogin,
		User:       []byte("someuser"),
		Data:       []byte("hunter2"),
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if outcome.Status != AuthenStatusPass {
		t.Fatalf("status = %v, want Pass", outcome.Status)
	}

	<-done
}

// TestConnectionASCIILoginInteractiveScenario2 exercises an ASCII
// interactive login: GETUSER -> CONTINUE -> GETPASS+NOECHO -> CONTINUE ->
// PASS, and checks the client-sent sequence numbers along the way.
func TestConnectionASCIILoginInteractiveScenario2(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	var seenSeqs []uint8

	done := make(chan struct{})
	go func() {
		defer close(done)

		f := readTestFrame(t, serverConn, nil)
		seenSeqs = append(seenSeqs, f.hdr.SeqNo)
		writeTestFrame(t, serverConn, Header{Type: PacketAuthentication, SeqNo: f.hdr.SeqNo + 1, SessionID: f.hdr.SessionID},
			&AuthenReply{Status: AuthenStatusGetUser}, nil)

		f = readTestFrame(t, serverConn, nil)
		seenSeqs = append(seenSeqs, f.hdr.SeqNo)
		writeTestFrame(t, serverConn, Header{Type: PacketAuthentication, SeqNo: f.hdr.SeqNo + 1, SessionID: f.hdr.SessionID},
			&AuthenReply{Status: AuthenStatusGetPass, Flags: FlagNoEcho}, nil)

		f = readTestFrame(t, serverConn, nil)
		seenSeqs = append(seenSeqs, f.hdr.SeqNo)
		writeTestFrame(t, serverConn, Header{Type: PacketAuthentication, SeqNo: f.hdr.SeqNo + 1, SessionID: f.hdr.SessionID},
			&AuthenReply{Status: AuthenStatusPass}, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, clientConn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	sess, err := conn.OpenSession(PacketAuthentication)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	outcome, err := sess.Authenticate(ctx, AuthenStart{Action: AuthenActionLogin, AuthenType: AuthenTypeASCII, Service: ServiceLogin})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if outcome.Status != AuthenStatusGetUser {
		t.Fatalf("status = %v, want GetUser", outcome.Status)
	}

	outcome, err = sess.Continue(ctx, []byte("someuser"), false)
	if err != nil {
		t.Fatalf("Continue(user): %v", err)
	}
	if outcome.Status != AuthenStatusGetPass || !outcome.NoEcho {
		t.Fatalf("outcome = %+v, want GetPass+NoEcho", outcome)
	}

	outcome, err = sess.Continue(ctx, []byte("hunter2"), false)
	if err != nil {
		t.Fatalf("Continue(pass): %v", err)
	}
	if outcome.Status != AuthenStatusPass {
		t.Fatalf("status = %v, want Pass", outcome.Status)
	}

	<-done

	want := []uint8{1, 3, 5}
	if len(seenSeqs) != len(want) {
		t.Fatalf("server saw %d packets, want %d", len(seenSeqs), len(want))
	}
	for i, s := range want {
		if seenSeqs[i] != s {
			t.Errorf("packet %d: seq = %d, want %d", i, seenSeqs[i], s)
		}
	}
}

// TestConnectionAuthorizationScenario3 exercises an authorization REQUEST
// that is permitted with added arguments.
func TestConnectionAuthorizationScenario3(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f := readTestFrame(t, serverConn, nil)
		var req AuthorRequest
		if err := DecodeAuthorRequest(f.body, &req); err != nil {
			t.Errorf("DecodeAuthorRequest: %v", err)
		}
		reply := AuthorResponse{
			Status: AuthorStatusPassAdd,
			Args: Args{
				{Name: "number", Value: "42"},
				{Name: "optional thing", Value: "not important", Optional: true},
			},
		}
		writeTestFrame(t, serverConn, Header{Type: PacketAuthorization, SeqNo: f.hdr.SeqNo + 1, SessionID: f.hdr.SessionID}, &reply, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, clientConn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	sess, err := conn.OpenSession(PacketAuthorization)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	outcome, err := sess.Authorize(ctx, AuthorRequest{
		AuthenType: AuthenTypeASCII,
		Service:    ServiceLogin,
		Args:       Args{{Name: "service", Value: "authorizeme"}},
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !outcome.Permitted() {
		t.Fatalf("outcome = %+v, want permitted", outcome)
	}
	if len(outcome.Args) != 2 {
		t.Fatalf("args = %+v", outcome.Args)
	}

	<-done
}

// TestConnectionAccountingStopScenario4 exercises an accounting STOP
// record that the server acknowledges.
func TestConnectionAccountingStopScenario4(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f := readTestFrame(t, serverConn, nil)
		var req AcctRequest
		if err := DecodeAcctRequest(f.body, &req); err != nil {
			t.Errorf("DecodeAcctRequest: %v", err)
		}
		if req.Flags != AcctFlagStop {
			t.Errorf("flags = %v, want Stop", req.Flags)
		}
		reply := AcctReply{Status: AcctStatusSuccess}
		writeTestFrame(t, serverConn, Header{Type: PacketAccounting, SeqNo: f.hdr.SeqNo + 1, SessionID: f.hdr.SessionID}, &reply, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, clientConn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	sess, err := conn.OpenSession(PacketAccounting)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	outcome, err := sess.Account(ctx, AcctRequest{
		Flags:      AcctFlagStop,
		AuthenType: AuthenTypeASCII,
		Service:    ServiceLogin,
		Args: Args{
			{Name: "task_id", Value: "7"},
			{Name: "elapsed", Value: "120"},
		},
	})
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if outcome.Status != AcctStatusSuccess {
		t.Fatalf("status = %v, want Success", outcome.Status)
	}

	<-done
}

// TestConnectionSequenceViolationScenario6 checks that a REPLY carrying an
// unexpected sequence number fails the session and closes the connection.
func TestConnectionSequenceViolationScenario6(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f := readTestFrame(t, serverConn, nil)
		// Server misbehaves: replies with seq 4 instead of the expected 2.
		writeTestFrame(t, serverConn, Header{Type: PacketAuthentication, SeqNo: 4, SessionID: f.hdr.SessionID},
			&AuthenReply{Status: AuthenStatusPass}, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, clientConn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	sess, err := conn.OpenSession(PacketAuthentication)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	_, err = sess.Authenticate(ctx, AuthenStart{Action: AuthenActionLogin, AuthenType: AuthenTypeASCII, Service: ServiceLogin})
	if !errors.Is(err, ErrSequenceViolation) {
		t.Fatalf("error = %v, want ErrSequenceViolation", err)
	}

	<-done

	// The connection must now be closed; a second session cannot be opened.
	if _, err := conn.OpenSession(PacketAuthentication); err == nil {
		t.Fatal("OpenSession after connection failure should error")
	}
}

// TestConnectionCancelMidAuthenticationSendsAbort checks that cancelling a
// context while a CONTINUE is awaiting its reply makes the session
// best-effort write a CONTINUE{ABORT}, so the server is not left holding a
// half-finished authentication.
func TestConnectionCancelMidAuthenticationSendsAbort(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()

	continueRead := make(chan struct{})
	abortFrame := make(chan testFrame, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)

		f := readTestFrame(t, serverConn, nil)
		writeTestFrame(t, serverConn, Header{Type: PacketAuthentication, SeqNo: f.hdr.SeqNo + 1, SessionID: f.hdr.SessionID},
			&AuthenReply{Status: AuthenStatusGetPass, Flags: FlagNoEcho}, nil)

		// Read the CONTINUE but never answer it; the client cancels while
		// waiting on this reply.
		readTestFrame(t, serverConn, nil)
		close(continueRead)

		abortFrame <- readTestFrame(t, serverConn, nil)
	}()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelStart()

	conn, err := Dial(context.Background(), clientConn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	sess, err := conn.OpenSession(PacketAuthentication)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	outcome, err := sess.Authenticate(startCtx, AuthenStart{Action: AuthenActionLogin, AuthenType: AuthenTypeASCII, Service: ServiceLogin})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if outcome.Status != AuthenStatusGetPass {
		t.Fatalf("status = %v, want GetPass", outcome.Status)
	}

	contCtx, cancelCont := context.WithCancel(context.Background())
	go func() {
		<-continueRead
		cancelCont()
	}()

	if _, err := sess.Continue(contCtx, []byte("hunter2"), false); !errors.Is(err, context.Canceled) {
		t.Fatalf("Continue error = %v, want context.Canceled", err)
	}

	f := <-abortFrame
	if f.hdr.Type != PacketAuthentication {
		t.Errorf("abort frame type = %v, want Authentication", f.hdr.Type)
	}
	if f.hdr.SeqNo != 5 {
		t.Errorf("abort frame seq = %d, want 5", f.hdr.SeqNo)
	}
	var cont AuthenContinue
	if err := DecodeAuthenContinue(f.body, &cont); err != nil {
		t.Fatalf("DecodeAuthenContinue: %v", err)
	}
	if cont.Flags&FlagAbort == 0 {
		t.Errorf("abort frame flags = %#x, want FlagAbort set", uint8(cont.Flags))
	}

	<-done
}

// TestConnectionUnroutableFrameDiscarded checks that a frame bearing an
// unknown session_id is logged and discarded, not delivered and not fatal.
func TestConnectionUnroutableFrameDiscarded(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f := readTestFrame(t, serverConn, nil)
		// Send a reply for a session id nobody is waiting on first.
		writeTestFrame(t, serverConn, Header{Type: PacketAuthentication, SeqNo: 2, SessionID: f.hdr.SessionID + 1},
			&AuthenReply{Status: AuthenStatusPass}, nil)
		// Then the real reply.
		writeTestFrame(t, serverConn, Header{Type: PacketAuthentication, SeqNo: f.hdr.SeqNo + 1, SessionID: f.hdr.SessionID},
			&AuthenReply{Status: AuthenStatusPass}, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Dial(ctx, clientConn)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	sess, err := conn.OpenSession(PacketAuthentication)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	outcome, err := sess.Authenticate(ctx, AuthenStart{Action: AuthenActionLogin, AuthenType: AuthenTypeASCII, Service: ServiceLogin})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if outcome.Status != AuthenStatusPass {
		t.Fatalf("status = %v, want Pass", outcome.Status)
	}

	<-done
}
