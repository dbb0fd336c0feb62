package tacacs

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	hdr := Header{
		MinorVersion: MinorVersionDefault,
		Type:         PacketAuthentication,
		SeqNo:        1,
		Flags:        FlagUnencrypted,
		SessionID:    0xDEADBEEF,
		Length:       4,
	}

	buf := make([]byte, HeaderSize)
	encodeHeader(buf, hdr)

	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != hdr {
		t.Fatalf("DecodeHeader = %+v, want %+v", got, hdr)
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	t.Parallel()

	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	if !errors.Is(err, ErrTruncatedHeader) {
		t.Fatalf("error = %v, want ErrTruncatedHeader", err)
	}
}

func TestDecodeHeaderUnsupportedVersion(t *testing.T) {
	t.Parallel()

	buf := make([]byte, HeaderSize)
	buf[0] = 0xB0 // major version 0xB, not 0xC
	buf[1] = byte(PacketAuthentication)
	buf[2] = 1
	_, err := DecodeHeader(buf)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDecodeHeaderInvalidPacketType(t *testing.T) {
	t.Parallel()

	buf := make([]byte, HeaderSize)
	buf[0] = MajorVersion << 4
	buf[1] = 0x7F
	buf[2] = 1
	_, err := DecodeHeader(buf)
	if !errors.Is(err, ErrInvalidPacketType) {
		t.Fatalf("error = %v, want ErrInvalidPacketType", err)
	}
}

func TestDecodeHeaderZeroSequence(t *testing.T) {
	t.Parallel()

	buf := make([]byte, HeaderSize)
	buf[0] = MajorVersion << 4
	buf[1] = byte(PacketAuthentication)
	buf[2] = 0
	_, err := DecodeHeader(buf)
	if !errors.Is(err, ErrInvalidSequence) {
		t.Fatalf("error = %v, want ErrInvalidSequence", err)
	}
}

func TestEncodePacketBufferTooSmall(t *testing.T) {
	t.Parallel()

	body := &AuthenStart{Action: AuthenActionLogin, AuthenType: AuthenTypeASCII, Service: ServiceLogin}
	_, err := EncodePacket(make([]byte, HeaderSize), Header{Type: PacketAuthentication, SeqNo: 1, SessionID: 1}, body, nil)
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("error = %v, want ErrBufferTooSmall", err)
	}
}

// TestAuthenStartRoundTripScenario1 checks that PAP authentication with
// user "someuser" and data "hunter2" encodes to user_len=8, data_len=7 on
// the wire, and survives an obfuscated round trip.
func TestAuthenStartRoundTripScenario1(t *testing.T) {
	t.Parallel()

	start := AuthenStart{
		Action:     AuthenActionLogin,
		PrivLvl:    1,
		AuthenType: AuthenTypePAP,
		Service:    ServiceLogin,
		User:       []byte("someuser"),
		Data:       []byte("hunter2"),
	}

	hdr := Header{Type: PacketAuthentication, SeqNo: 1, SessionID: 0xAABBCCDD}
	secret := []byte("very secure key that is super secret")

	buf := make([]byte, HeaderSize+start.Len())
	n, err := EncodePacket(buf, hdr, &start, secret)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}
	buf = buf[:n]

	decodedHdr, body, err := DecodePacket(buf, secret, false)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if decodedHdr.Flags.Has(FlagUnencrypted) {
		t.Fatal("header should not carry FlagUnencrypted when a secret is configured")
	}

	if body[4] != 8 {
		t.Fatalf("user_len = %d, want 8", body[4])
	}
	if body[7] != 7 {
		t.Fatalf("data_len = %d, want 7", body[7])
	}

	var got AuthenStart
	if err := DecodeAuthenStart(body, &got); err != nil {
		t.Fatalf("DecodeAuthenStart: %v", err)
	}
	if string(got.User) != "someuser" || string(got.Data) != "hunter2" {
		t.Fatalf("decoded = %+v, want user=someuser data=hunter2", got)
	}
}

func TestAuthenStartZeroLengthFields(t *testing.T) {
	t.Parallel()

	start := AuthenStart{Action: AuthenActionLogin, AuthenType: AuthenTypeASCII, Service: ServiceLogin}
	buf := make([]byte, start.Len())
	n, err := start.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n != 8 {
		t.Fatalf("encoded length = %d, want 8 (header only, all fields zero-length)", n)
	}

	var got AuthenStart
	if err := DecodeAuthenStart(buf[:n], &got); err != nil {
		t.Fatalf("DecodeAuthenStart: %v", err)
	}
	if len(got.User) != 0 || len(got.Data) != 0 {
		t.Fatalf("expected empty variable fields, got %+v", got)
	}
}

func TestAuthenReplyRoundTrip(t *testing.T) {
	t.Parallel()

	reply := AuthenReply{
		Status:    AuthenStatusGetPass,
		Flags:     FlagNoEcho,
		ServerMsg: []byte("Password: "),
	}
	buf := make([]byte, reply.Len())
	n, err := reply.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got AuthenReply
	if err := DecodeAuthenReply(buf[:n], &got); err != nil {
		t.Fatalf("DecodeAuthenReply: %v", err)
	}
	if got.Status != AuthenStatusGetPass || !ReplyFlags(got.Flags).Has(FlagNoEcho) {
		t.Fatalf("decoded = %+v, want GetPass+NoEcho", got)
	}
	if string(got.ServerMsg) != "Password: " {
		t.Fatalf("server_msg = %q", got.ServerMsg)
	}
}

func TestAuthenContinueRoundTrip(t *testing.T) {
	t.Parallel()

	cont := AuthenContinue{UserMsg: []byte("hunter2")}
	buf := make([]byte, cont.Len())
	n, err := cont.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got AuthenContinue
	if err := DecodeAuthenContinue(buf[:n], &got); err != nil {
		t.Fatalf("DecodeAuthenContinue: %v", err)
	}
	if string(got.UserMsg) != "hunter2" {
		t.Fatalf("user_msg = %q", got.UserMsg)
	}
}

func TestAuthenContinueAbortFlag(t *testing.T) {
	t.Parallel()

	cont := AuthenContinue{Flags: FlagAbort}
	buf := make([]byte, cont.Len())
	n, _ := cont.Encode(buf)

	var got AuthenContinue
	if err := DecodeAuthenContinue(buf[:n], &got); err != nil {
		t.Fatalf("DecodeAuthenContinue: %v", err)
	}
	if got.Flags != FlagAbort {
		t.Fatalf("flags = %v, want FlagAbort", got.Flags)
	}
}

// TestAuthorResponseRoundTripScenario3 checks a reply carrying two
// arguments with mandatory and optional separators.
func TestAuthorResponseRoundTripScenario3(t *testing.T) {
	t.Parallel()

	resp := AuthorResponse{
		Status: AuthorStatusPassAdd,
		Args: Args{
			{Name: "number", Value: "42"},
			{Name: "optional thing", Value: "not important", Optional: true},
		},
	}
	buf := make([]byte, resp.Len())
	n, err := resp.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got AuthorResponse
	if err := DecodeAuthorResponse(buf[:n], &got); err != nil {
		t.Fatalf("DecodeAuthorResponse: %v", err)
	}
	if !got.Status.Permitted() {
		t.Fatal("expected a permitted status")
	}
	if len(got.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(got.Args))
	}
	if got.Args[0].Optional {
		t.Fatal("first argument should be mandatory")
	}
	if !got.Args[1].Optional {
		t.Fatal("second argument should be optional")
	}
}

func TestAuthorRequestRoundTrip(t *testing.T) {
	t.Parallel()

	req := AuthorRequest{
		AuthenMethod: AuthenMethodTACACSPlus,
		PrivLvl:      1,
		AuthenType:   AuthenTypeASCII,
		Service:      ServiceLogin,
		User:         []byte("someuser"),
		Port:         []byte("tty0"),
		Args: Args{
			{Name: "service", Value: "authorizeme"},
		},
	}
	buf := make([]byte, req.Len())
	n, err := req.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got AuthorRequest
	if err := DecodeAuthorRequest(buf[:n], &got); err != nil {
		t.Fatalf("DecodeAuthorRequest: %v", err)
	}
	if string(got.User) != "someuser" || string(got.Port) != "tty0" {
		t.Fatalf("decoded = %+v", got)
	}
	if len(got.Args) != 1 || got.Args[0].Value != "authorizeme" {
		t.Fatalf("args = %+v", got.Args)
	}
}

// TestAccountingStopRoundTripScenario4 checks an accounting STOP record
// round trip.
func TestAccountingStopRoundTripScenario4(t *testing.T) {
	t.Parallel()

	req := AcctRequest{
		Flags:        AcctFlagStop,
		AuthenMethod: AuthenMethodTACACSPlus,
		AuthenType:   AuthenTypeASCII,
		Service:      ServiceLogin,
		User:         []byte("someuser"),
		Args: Args{
			{Name: "task_id", Value: "7"},
			{Name: "elapsed", Value: "120"},
		},
	}
	buf := make([]byte, req.Len())
	n, err := req.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got AcctRequest
	if err := DecodeAcctRequest(buf[:n], &got); err != nil {
		t.Fatalf("DecodeAcctRequest: %v", err)
	}
	if got.Flags != AcctFlagStop {
		t.Fatalf("flags = %v, want Stop", got.Flags)
	}
	if len(got.Args) != 2 {
		t.Fatalf("args = %+v", got.Args)
	}

	reply := AcctReply{Status: AcctStatusSuccess}
	rbuf := make([]byte, reply.Len())
	rn, _ := reply.Encode(rbuf)
	var gotReply AcctReply
	if err := DecodeAcctReply(rbuf[:rn], &gotReply); err != nil {
		t.Fatalf("DecodeAcctReply: %v", err)
	}
	if gotReply.Status != AcctStatusSuccess {
		t.Fatalf("status = %v, want Success", gotReply.Status)
	}
}

func TestAcctRequestInvalidFlags(t *testing.T) {
	t.Parallel()

	req := AcctRequest{Flags: 0x80, AuthenType: AuthenTypeASCII, Service: ServiceLogin}
	buf := make([]byte, req.Len())
	_, err := req.Encode(buf)
	if !errors.Is(err, ErrInvalidEnumValue) {
		t.Fatalf("error = %v, want ErrInvalidEnumValue", err)
	}
}

func TestDecodeRejectsInvalidEnum(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 8)
	buf[0] = 0xFF // invalid action
	var got AuthenStart
	if err := DecodeAuthenStart(buf, &got); !errors.Is(err, ErrInvalidEnumValue) {
		t.Fatalf("error = %v, want ErrInvalidEnumValue", err)
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	t.Parallel()

	var got AuthenReply
	if err := DecodeAuthenReply(make([]byte, 3), &got); !errors.Is(err, ErrTruncatedBody) {
		t.Fatalf("error = %v, want ErrTruncatedBody", err)
	}
}

func TestPrivLvlOutOfRange(t *testing.T) {
	t.Parallel()

	start := AuthenStart{Action: AuthenActionLogin, PrivLvl: 16, AuthenType: AuthenTypeASCII, Service: ServiceLogin}
	buf := make([]byte, start.Len())
	if _, err := start.Encode(buf); !errors.Is(err, ErrInvalidEnumValue) {
		t.Fatalf("error = %v, want ErrInvalidEnumValue", err)
	}
}

// TestMaxArgCountAndLength checks the boundary case of 255 arguments of up
// to 255 octets each.
func TestMaxArgCountAndLength(t *testing.T) {
	t.Parallel()

	longValue := bytes.Repeat([]byte("x"), maxArgLen-len("a="))
	args := make(Args, maxArgCount)
	for i := range args {
		args[i] = Argument{Name: "a", Value: string(longValue)}
	}

	req := AuthorRequest{AuthenType: AuthenTypeASCII, Service: ServiceLogin, Args: args}
	buf := make([]byte, req.Len())
	n, err := req.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got AuthorRequest
	if err := DecodeAuthorRequest(buf[:n], &got); err != nil {
		t.Fatalf("DecodeAuthorRequest: %v", err)
	}
	if len(got.Args) != maxArgCount {
		t.Fatalf("got %d args, want %d", len(got.Args), maxArgCount)
	}
}
