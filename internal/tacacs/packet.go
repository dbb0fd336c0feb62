package tacacs

import (
	"encoding/binary"
	"fmt"
)

// -------------------------------------------------------------------------
// Header — RFC 8907 Section 4.1
// -------------------------------------------------------------------------

// Header is the fixed 12-octet TACACS+ frame header (RFC 8907 Section 4.1).
type Header struct {
	MinorVersion uint8
	Type         PacketType
	SeqNo        uint8
	Flags        HeaderFlags
	SessionID    uint32
	Length       uint32
}

// versionByte returns the single octet combining the fixed major version
// with the header's minor version, as written to buf[0] and used as the
// "version" input to the obfuscation pad (RFC 8907 Section 4.5).
func (h Header) versionByte() uint8 {
	return (MajorVersion << 4) | (h.MinorVersion & 0x0F)
}

// encodeHeader writes h into buf[:HeaderSize]. Caller has already sized buf.
func encodeHeader(buf []byte, h Header) {
	buf[0] = h.versionByte()
	buf[1] = byte(h.Type)
	buf[2] = h.SeqNo
	buf[3] = byte(h.Flags)
	binary.BigEndian.PutUint32(buf[4:8], h.SessionID)
	binary.BigEndian.PutUint32(buf[8:12], h.Length)
}

// DecodeHeader parses the 12-octet header at the front of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("have %d octets, need %d: %w", len(buf), HeaderSize, ErrTruncatedHeader)
	}

	major := buf[0] >> 4
	if major != MajorVersion {
		return Header{}, fmt.Errorf("major version %#x: %w", major, ErrUnsupportedVersion)
	}

	t, err := decodePacketType(buf[1])
	if err != nil {
		return Header{}, err
	}

	h := Header{
		MinorVersion: buf[0] & 0x0F,
		Type:         t,
		SeqNo:        buf[2],
		Flags:        HeaderFlags(buf[3]),
		SessionID:    binary.BigEndian.Uint32(buf[4:8]),
		Length:       binary.BigEndian.Uint32(buf[8:12]),
	}

	if h.SeqNo == 0 {
		return Header{}, ErrInvalidSequence
	}

	return h, nil
}

// -------------------------------------------------------------------------
// Body — common interface for the two-pass encode contract
// -------------------------------------------------------------------------

// Body is implemented by every typed packet body. Len reports the exact
// octet count Encode will write, enabling the caller (EncodePacket) to size
// its buffer and the header's length field in one pass, the two-pass
// encoding argument-bearing bodies need.
type Body interface {
	Len() int
	Encode(buf []byte) (int, error)
}

// -------------------------------------------------------------------------
// EncodePacket / DecodePacket — frame-level codec
// -------------------------------------------------------------------------

// EncodePacket writes the 12-octet header plus the obfuscated (or, with no
// secret, clear-text) body into buf, returning the number of octets
// written. buf must be at least HeaderSize+body.Len() octets.
//
// hdr.Length is overwritten with body.Len(); hdr.Flags gains FlagUnencrypted
// when secret is empty, and loses it otherwise. Header flags outside
// knownHeaderFlags are rejected with ErrInvalidEnumValue, and an AuthenStart
// body whose AuthenType requires a different minor version than
// hdr.MinorVersion is rejected with ErrInvalidMinorVersion.
func EncodePacket(buf []byte, hdr Header, body Body, secret []byte) (int, error) {
	bodyLen := body.Len()
	total := HeaderSize + bodyLen
	if len(buf) < total {
		return 0, fmt.Errorf("need %d octets, have %d: %w", total, len(buf), ErrBufferTooSmall)
	}
	if hdr.Flags&^knownHeaderFlags != 0 {
		return 0, fmt.Errorf("header flags %#x: %w", uint8(hdr.Flags), ErrInvalidEnumValue)
	}
	if start, ok := body.(*AuthenStart); ok && hdr.MinorVersion != start.AuthenType.RequiredMinorVersion() {
		return 0, fmt.Errorf("minor version %#x for authen type %s: %w", hdr.MinorVersion, start.AuthenType, ErrInvalidMinorVersion)
	}

	n, err := body.Encode(buf[HeaderSize:total])
	if err != nil {
		return 0, err
	}
	if n != bodyLen {
		return 0, fmt.Errorf("body wrote %d octets, Len() reported %d: %w", n, bodyLen, ErrLengthMismatch)
	}

	if len(secret) == 0 {
		hdr.Flags |= FlagUnencrypted
	} else {
		hdr.Flags &^= FlagUnencrypted
		obfuscate(buf[HeaderSize:total], hdr.SessionID, secret, hdr.versionByte(), hdr.SeqNo)
	}
	hdr.Length = uint32(bodyLen)

	encodeHeader(buf[:HeaderSize], hdr)

	return total, nil
}

// DecodePacket parses the header and deobfuscates the body in place,
// returning the header and the clear-text body slice (a sub-slice of buf;
// no copy is made). Callers then decode the body slice with the
// type-specific DecodeX function matching hdr.Type and the session's
// expected packet kind.
//
// allowClearText permits an incoming frame with FlagUnencrypted set even
// though secret is configured.
func DecodePacket(buf []byte, secret []byte, allowClearText bool) (Header, []byte, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}

	total := HeaderSize + int(hdr.Length)
	if len(buf) < total {
		return Header{}, nil, fmt.Errorf("have %d octets, need %d: %w", len(buf), total, ErrTruncatedBody)
	}
	body := buf[HeaderSize:total]

	unencrypted := hdr.Flags.Has(FlagUnencrypted)
	switch {
	case len(secret) == 0 && !unencrypted:
		return Header{}, nil, ErrUnexpectedObfuscation
	case len(secret) > 0 && unencrypted && !allowClearText:
		return Header{}, nil, ErrUnexpectedClearText
	case len(secret) > 0 && !unencrypted:
		obfuscate(body, hdr.SessionID, secret, hdr.versionByte(), hdr.SeqNo)
	}

	return hdr, body, nil
}

// -------------------------------------------------------------------------
// Authentication START — RFC 8907 Section 5.1
// -------------------------------------------------------------------------

// AuthenStart is the client-initiated body that begins an authentication
// session (RFC 8907 Section 5.1).
type AuthenStart struct {
	Action     AuthenAction
	PrivLvl    uint8
	AuthenType AuthenType
	Service    AuthenService
	User       []byte
	Port       []byte
	RemAddr    []byte
	Data       []byte
}

// Len reports the exact wire length of the body.
func (s *AuthenStart) Len() int {
	return 8 + len(s.User) + len(s.Port) + len(s.RemAddr) + len(s.Data)
}

// Encode writes the body to buf (RFC 8907 Section 5.1 field order: fixed
// fields, then the four 1-octet length prefixes, then the four payloads).
func (s *AuthenStart) Encode(buf []byte) (int, error) {
	if err := validatePrivLvl(s.PrivLvl); err != nil {
		return 0, err
	}
	for _, f := range []struct {
		name string
		n    int
	}{{"user", len(s.User)}, {"port", len(s.Port)}, {"rem_addr", len(s.RemAddr)}, {"data", len(s.Data)}} {
		if f.n > 0xFF {
			return 0, fmt.Errorf("%s is %d octets, exceeds 1-octet length field: %w", f.name, f.n, ErrLengthMismatch)
		}
	}

	need := s.Len()
	if len(buf) < need {
		return 0, fmt.Errorf("need %d octets, have %d: %w", need, len(buf), ErrBufferTooSmall)
	}

	buf[0] = byte(s.Action)
	buf[1] = s.PrivLvl
	buf[2] = byte(s.AuthenType)
	buf[3] = byte(s.Service)
	buf[4] = byte(len(s.User))
	buf[5] = byte(len(s.Port))
	buf[6] = byte(len(s.RemAddr))
	buf[7] = byte(len(s.Data))

	off := 8
	off += copy(buf[off:], s.User)
	off += copy(buf[off:], s.Port)
	off += copy(buf[off:], s.RemAddr)
	off += copy(buf[off:], s.Data)

	return off, nil
}

// DecodeAuthenStart parses buf (a clear-text authentication START body,
// already deobfuscated) into s.
func DecodeAuthenStart(buf []byte, s *AuthenStart) error {
	if len(buf) < 8 {
		return fmt.Errorf("authen start: have %d octets, need 8: %w", len(buf), ErrTruncatedBody)
	}

	action, err := decodeAuthenAction(buf[0])
	if err != nil {
		return err
	}
	authenType, err := decodeAuthenType(buf[2])
	if err != nil {
		return err
	}
	service, err := decodeService(buf[3])
	if err != nil {
		return err
	}
	if err := validatePrivLvl(buf[1]); err != nil {
		return err
	}

	userLen, portLen, remAddrLen, dataLen := int(buf[4]), int(buf[5]), int(buf[6]), int(buf[7])
	off := 8
	user, off, err := sliceField(buf, off, userLen)
	if err != nil {
		return fmt.Errorf("authen start user: %w", err)
	}
	port, off, err := sliceField(buf, off, portLen)
	if err != nil {
		return fmt.Errorf("authen start port: %w", err)
	}
	remAddr, off, err := sliceField(buf, off, remAddrLen)
	if err != nil {
		return fmt.Errorf("authen start rem_addr: %w", err)
	}
	data, off, err := sliceField(buf, off, dataLen)
	if err != nil {
		return fmt.Errorf("authen start data: %w", err)
	}
	if off != len(buf) {
		return fmt.Errorf("authen start: %d trailing octets: %w", len(buf)-off, ErrLengthMismatch)
	}

	s.Action = action
	s.PrivLvl = buf[1]
	s.AuthenType = authenType
	s.Service = service
	s.User = user
	s.Port = port
	s.RemAddr = remAddr
	s.Data = data
	return nil
}

// sliceField returns buf[off:off+n] and the new offset, failing with
// ErrTruncatedBody if n octets are not available.
func sliceField(buf []byte, off, n int) ([]byte, int, error) {
	if off+n > len(buf) {
		return nil, 0, fmt.Errorf("need %d octets at offset %d, have %d: %w", n, off, len(buf)-off, ErrTruncatedBody)
	}
	return buf[off : off+n], off + n, nil
}

// -------------------------------------------------------------------------
// Authentication REPLY — RFC 8907 Section 5.2
// -------------------------------------------------------------------------

// AuthenReply is the server's response to a START or CONTINUE
// (RFC 8907 Section 5.2).
type AuthenReply struct {
	Status    AuthenStatus
	Flags     ReplyFlags
	ServerMsg []byte
	Data      []byte
}

func (r *AuthenReply) Len() int {
	return 6 + len(r.ServerMsg) + len(r.Data)
}

func (r *AuthenReply) Encode(buf []byte) (int, error) {
	if len(r.ServerMsg) > 0xFFFF {
		return 0, fmt.Errorf("server_msg is %d octets, exceeds 2-octet length field: %w", len(r.ServerMsg), ErrLengthMismatch)
	}
	if len(r.Data) > 0xFFFF {
		return 0, fmt.Errorf("data is %d octets, exceeds 2-octet length field: %w", len(r.Data), ErrLengthMismatch)
	}

	need := r.Len()
	if len(buf) < need {
		return 0, fmt.Errorf("need %d octets, have %d: %w", need, len(buf), ErrBufferTooSmall)
	}

	buf[0] = byte(r.Status)
	buf[1] = byte(r.Flags)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(r.ServerMsg)))
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(r.Data)))

	off := 6
	off += copy(buf[off:], r.ServerMsg)
	off += copy(buf[off:], r.Data)

	return off, nil
}

// DecodeAuthenReply parses buf into r.
func DecodeAuthenReply(buf []byte, r *AuthenReply) error {
	if len(buf) < 6 {
		return fmt.Errorf("authen reply: have %d octets, need 6: %w", len(buf), ErrTruncatedBody)
	}

	status, err := decodeAuthenStatus(buf[0])
	if err != nil {
		return err
	}

	msgLen := int(binary.BigEndian.Uint16(buf[2:4]))
	dataLen := int(binary.BigEndian.Uint16(buf[4:6]))

	off := 6
	serverMsg, off, err := sliceField(buf, off, msgLen)
	if err != nil {
		return fmt.Errorf("authen reply server_msg: %w", err)
	}
	data, off, err := sliceField(buf, off, dataLen)
	if err != nil {
		return fmt.Errorf("authen reply data: %w", err)
	}
	if off != len(buf) {
		return fmt.Errorf("authen reply: %d trailing octets: %w", len(buf)-off, ErrLengthMismatch)
	}

	r.Status = status
	r.Flags = ReplyFlags(buf[1])
	r.ServerMsg = serverMsg
	r.Data = data
	return nil
}

// -------------------------------------------------------------------------
// Authentication CONTINUE — RFC 8907 Section 5.3
// -------------------------------------------------------------------------

// AuthenContinue carries the caller's next datum in an interactive
// authentication sub-flow, or an abort notice (RFC 8907 Section 5.3).
type AuthenContinue struct {
	Flags   ContinueFlags
	UserMsg []byte
	Data    []byte
}

func (c *AuthenContinue) Len() int {
	return 5 + len(c.UserMsg) + len(c.Data)
}

func (c *AuthenContinue) Encode(buf []byte) (int, error) {
	if len(c.UserMsg) > 0xFFFF {
		return 0, fmt.Errorf("user_msg is %d octets, exceeds 2-octet length field: %w", len(c.UserMsg), ErrLengthMismatch)
	}
	if len(c.Data) > 0xFFFF {
		return 0, fmt.Errorf("data is %d octets, exceeds 2-octet length field: %w", len(c.Data), ErrLengthMismatch)
	}

	need := c.Len()
	if len(buf) < need {
		return 0, fmt.Errorf("need %d octets, have %d: %w", need, len(buf), ErrBufferTooSmall)
	}

	binary.BigEndian.PutUint16(buf[0:2], uint16(len(c.UserMsg)))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(c.Data)))
	buf[4] = byte(c.Flags)

	off := 5
	off += copy(buf[off:], c.UserMsg)
	off += copy(buf[off:], c.Data)

	return off, nil
}

// DecodeAuthenContinue parses buf into c.
func DecodeAuthenContinue(buf []byte, c *AuthenContinue) error {
	if len(buf) < 5 {
		return fmt.Errorf("authen continue: have %d octets, need 5: %w", len(buf), ErrTruncatedBody)
	}

	msgLen := int(binary.BigEndian.Uint16(buf[0:2]))
	dataLen := int(binary.BigEndian.Uint16(buf[2:4]))

	off := 5
	userMsg, off, err := sliceField(buf, off, msgLen)
	if err != nil {
		return fmt.Errorf("authen continue user_msg: %w", err)
	}
	data, off, err := sliceField(buf, off, dataLen)
	if err != nil {
		return fmt.Errorf("authen continue data: %w", err)
	}
	if off != len(buf) {
		return fmt.Errorf("authen continue: %d trailing octets: %w", len(buf)-off, ErrLengthMismatch)
	}

	c.Flags = ContinueFlags(buf[4])
	c.UserMsg = userMsg
	c.Data = data
	return nil
}

// -------------------------------------------------------------------------
// Authorization REQUEST — RFC 8907 Section 6.1
// -------------------------------------------------------------------------

// AuthorRequest is the client's authorization request body
// (RFC 8907 Section 6.1).
type AuthorRequest struct {
	AuthenMethod AuthenMethod
	PrivLvl      uint8
	AuthenType   AuthenType
	Service      AuthenService
	User         []byte
	Port         []byte
	RemAddr      []byte
	Args         Args
}

func (a *AuthorRequest) Len() int {
	sum := 0
	for _, n := range a.Args.encodedLens() {
		sum += n
	}
	return 8 + len(a.Args) + len(a.User) + len(a.Port) + len(a.RemAddr) + sum
}

func (a *AuthorRequest) Encode(buf []byte) (int, error) {
	if err := validatePrivLvl(a.PrivLvl); err != nil {
		return 0, err
	}
	if err := a.Args.validate(); err != nil {
		return 0, err
	}
	for _, f := range []struct {
		name string
		n    int
	}{{"user", len(a.User)}, {"port", len(a.Port)}, {"rem_addr", len(a.RemAddr)}} {
		if f.n > 0xFF {
			return 0, fmt.Errorf("%s is %d octets, exceeds 1-octet length field: %w", f.name, f.n, ErrLengthMismatch)
		}
	}

	argLens := a.Args.encodedLens()
	need := a.Len()
	if len(buf) < need {
		return 0, fmt.Errorf("need %d octets, have %d: %w", need, len(buf), ErrBufferTooSmall)
	}

	buf[0] = byte(a.AuthenMethod)
	buf[1] = a.PrivLvl
	buf[2] = byte(a.AuthenType)
	buf[3] = byte(a.Service)
	buf[4] = byte(len(a.User))
	buf[5] = byte(len(a.Port))
	buf[6] = byte(len(a.RemAddr))
	buf[7] = byte(len(a.Args))

	off := 8
	for _, n := range argLens {
		buf[off] = byte(n)
		off++
	}
	off += copy(buf[off:], a.User)
	off += copy(buf[off:], a.Port)
	off += copy(buf[off:], a.RemAddr)
	off += writeArgs(buf[off:], a.Args)

	return off, nil
}

// DecodeAuthorRequest parses buf into a.
func DecodeAuthorRequest(buf []byte, a *AuthorRequest) error {
	if len(buf) < 8 {
		return fmt.Errorf("author request: have %d octets, need 8: %w", len(buf), ErrTruncatedBody)
	}

	method, err := decodeAuthenMethod(buf[0])
	if err != nil {
		return err
	}
	if err := validatePrivLvl(buf[1]); err != nil {
		return err
	}
	authenType, err := decodeAuthenType(buf[2])
	if err != nil {
		return err
	}
	service, err := decodeService(buf[3])
	if err != nil {
		return err
	}

	userLen, portLen, remAddrLen, argCnt := int(buf[4]), int(buf[5]), int(buf[6]), int(buf[7])

	off := 8
	argLens, off, err := sliceField(buf, off, argCnt)
	if err != nil {
		return fmt.Errorf("author request arg lengths: %w", err)
	}
	user, off, err := sliceField(buf, off, userLen)
	if err != nil {
		return fmt.Errorf("author request user: %w", err)
	}
	port, off, err := sliceField(buf, off, portLen)
	if err != nil {
		return fmt.Errorf("author request port: %w", err)
	}
	remAddr, off, err := sliceField(buf, off, remAddrLen)
	if err != nil {
		return fmt.Errorf("author request rem_addr: %w", err)
	}
	args, err := readArgs(buf[off:], argLens)
	if err != nil {
		return fmt.Errorf("author request args: %w", err)
	}

	a.AuthenMethod = method
	a.PrivLvl = buf[1]
	a.AuthenType = authenType
	a.Service = service
	a.User = user
	a.Port = port
	a.RemAddr = remAddr
	a.Args = args
	return nil
}

// -------------------------------------------------------------------------
// Authorization RESPONSE — RFC 8907 Section 6.2
// -------------------------------------------------------------------------

// AuthorResponse is the server's authorization decision
// (RFC 8907 Section 6.2).
type AuthorResponse struct {
	Status    AuthorStatus
	ServerMsg []byte
	Data      []byte
	Args      Args
}

func (r *AuthorResponse) Len() int {
	sum := 0
	for _, n := range r.Args.encodedLens() {
		sum += n
	}
	return 6 + len(r.Args) + len(r.ServerMsg) + len(r.Data) + sum
}

func (r *AuthorResponse) Encode(buf []byte) (int, error) {
	if err := r.Args.validate(); err != nil {
		return 0, err
	}
	if len(r.ServerMsg) > 0xFFFF || len(r.Data) > 0xFFFF {
		return 0, fmt.Errorf("server_msg/data exceeds 2-octet length field: %w", ErrLengthMismatch)
	}

	argLens := r.Args.encodedLens()
	need := r.Len()
	if len(buf) < need {
		return 0, fmt.Errorf("need %d octets, have %d: %w", need, len(buf), ErrBufferTooSmall)
	}

	buf[0] = byte(r.Status)
	buf[1] = byte(len(r.Args))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(r.ServerMsg)))
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(r.Data)))

	off := 6
	for _, n := range argLens {
		buf[off] = byte(n)
		off++
	}
	off += copy(buf[off:], r.ServerMsg)
	off += copy(buf[off:], r.Data)
	off += writeArgs(buf[off:], r.Args)

	return off, nil
}

// DecodeAuthorResponse parses buf into r.
func DecodeAuthorResponse(buf []byte, r *AuthorResponse) error {
	if len(buf) < 6 {
		return fmt.Errorf("author response: have %d octets, need 6: %w", len(buf), ErrTruncatedBody)
	}

	status, err := decodeAuthorStatus(buf[0])
	if err != nil {
		return err
	}
	argCnt := int(buf[1])
	msgLen := int(binary.BigEndian.Uint16(buf[2:4]))
	dataLen := int(binary.BigEndian.Uint16(buf[4:6]))

	off := 6
	argLens, off, err := sliceField(buf, off, argCnt)
	if err != nil {
		return fmt.Errorf("author response arg lengths: %w", err)
	}
	serverMsg, off, err := sliceField(buf, off, msgLen)
	if err != nil {
		return fmt.Errorf("author response server_msg: %w", err)
	}
	data, off, err := sliceField(buf, off, dataLen)
	if err != nil {
		return fmt.Errorf("author response data: %w", err)
	}
	args, err := readArgs(buf[off:], argLens)
	if err != nil {
		return fmt.Errorf("author response args: %w", err)
	}

	r.Status = status
	r.ServerMsg = serverMsg
	r.Data = data
	r.Args = args
	return nil
}

// -------------------------------------------------------------------------
// Accounting REQUEST — RFC 8907 Section 7.1
// -------------------------------------------------------------------------

// AcctRequest is the client's accounting record (RFC 8907 Section 7.1).
// It shares the authorization REQUEST layout, prefixed by the record-type
// flags octet.
type AcctRequest struct {
	Flags        AcctFlags
	AuthenMethod AuthenMethod
	PrivLvl      uint8
	AuthenType   AuthenType
	Service      AuthenService
	User         []byte
	Port         []byte
	RemAddr      []byte
	Args         Args
}

func (a *AcctRequest) Len() int {
	sum := 0
	for _, n := range a.Args.encodedLens() {
		sum += n
	}
	return 9 + len(a.Args) + len(a.User) + len(a.Port) + len(a.RemAddr) + sum
}

func (a *AcctRequest) Encode(buf []byte) (int, error) {
	if a.Flags&^knownAcctFlags != 0 {
		return 0, fmt.Errorf("acct flags %#x: %w", uint8(a.Flags), ErrInvalidEnumValue)
	}
	if err := validatePrivLvl(a.PrivLvl); err != nil {
		return 0, err
	}
	if err := a.Args.validate(); err != nil {
		return 0, err
	}
	for _, f := range []struct {
		name string
		n    int
	}{{"user", len(a.User)}, {"port", len(a.Port)}, {"rem_addr", len(a.RemAddr)}} {
		if f.n > 0xFF {
			return 0, fmt.Errorf("%s is %d octets, exceeds 1-octet length field: %w", f.name, f.n, ErrLengthMismatch)
		}
	}

	argLens := a.Args.encodedLens()
	need := a.Len()
	if len(buf) < need {
		return 0, fmt.Errorf("need %d octets, have %d: %w", need, len(buf), ErrBufferTooSmall)
	}

	buf[0] = byte(a.Flags)
	buf[1] = byte(a.AuthenMethod)
	buf[2] = a.PrivLvl
	buf[3] = byte(a.AuthenType)
	buf[4] = byte(a.Service)
	buf[5] = byte(len(a.User))
	buf[6] = byte(len(a.Port))
	buf[7] = byte(len(a.RemAddr))
	buf[8] = byte(len(a.Args))

	off := 9
	for _, n := range argLens {
		buf[off] = byte(n)
		off++
	}
	off += copy(buf[off:], a.User)
	off += copy(buf[off:], a.Port)
	off += copy(buf[off:], a.RemAddr)
	off += writeArgs(buf[off:], a.Args)

	return off, nil
}

// DecodeAcctRequest parses buf into a.
func DecodeAcctRequest(buf []byte, a *AcctRequest) error {
	if len(buf) < 9 {
		return fmt.Errorf("acct request: have %d octets, need 9: %w", len(buf), ErrTruncatedBody)
	}

	flags := AcctFlags(buf[0])
	if flags&^knownAcctFlags != 0 {
		return fmt.Errorf("acct flags %#x: %w", buf[0], ErrInvalidEnumValue)
	}
	method, err := decodeAuthenMethod(buf[1])
	if err != nil {
		return err
	}
	if err := validatePrivLvl(buf[2]); err != nil {
		return err
	}
	authenType, err := decodeAuthenType(buf[3])
	if err != nil {
		return err
	}
	service, err := decodeService(buf[4])
	if err != nil {
		return err
	}

	userLen, portLen, remAddrLen, argCnt := int(buf[5]), int(buf[6]), int(buf[7]), int(buf[8])

	off := 9
	argLens, off, err := sliceField(buf, off, argCnt)
	if err != nil {
		return fmt.Errorf("acct request arg lengths: %w", err)
	}
	user, off, err := sliceField(buf, off, userLen)
	if err != nil {
		return fmt.Errorf("acct request user: %w", err)
	}
	port, off, err := sliceField(buf, off, portLen)
	if err != nil {
		return fmt.Errorf("acct request port: %w", err)
	}
	remAddr, off, err := sliceField(buf, off, remAddrLen)
	if err != nil {
		return fmt.Errorf("acct request rem_addr: %w", err)
	}
	args, err := readArgs(buf[off:], argLens)
	if err != nil {
		return fmt.Errorf("acct request args: %w", err)
	}

	a.Flags = flags
	a.AuthenMethod = method
	a.PrivLvl = buf[2]
	a.AuthenType = authenType
	a.Service = service
	a.User = user
	a.Port = port
	a.RemAddr = remAddr
	a.Args = args
	return nil
}

// -------------------------------------------------------------------------
// Accounting REPLY — RFC 8907 Section 7.2
// -------------------------------------------------------------------------

// AcctReply is the server's accounting acknowledgment
// (RFC 8907 Section 7.2).
type AcctReply struct {
	Status    AcctStatus
	ServerMsg []byte
	Data      []byte
}

func (r *AcctReply) Len() int {
	return 5 + len(r.ServerMsg) + len(r.Data)
}

func (r *AcctReply) Encode(buf []byte) (int, error) {
	if len(r.ServerMsg) > 0xFFFF || len(r.Data) > 0xFFFF {
		return 0, fmt.Errorf("server_msg/data exceeds 2-octet length field: %w", ErrLengthMismatch)
	}

	need := r.Len()
	if len(buf) < need {
		return 0, fmt.Errorf("need %d octets, have %d: %w", need, len(buf), ErrBufferTooSmall)
	}

	binary.BigEndian.PutUint16(buf[0:2], uint16(len(r.ServerMsg)))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(r.Data)))
	buf[4] = byte(r.Status)

	off := 5
	off += copy(buf[off:], r.ServerMsg)
	off += copy(buf[off:], r.Data)

	return off, nil
}

// DecodeAcctReply parses buf into r.
func DecodeAcctReply(buf []byte, r *AcctReply) error {
	if len(buf) < 5 {
		return fmt.Errorf("acct reply: have %d octets, need 5: %w", len(buf), ErrTruncatedBody)
	}

	msgLen := int(binary.BigEndian.Uint16(buf[0:2]))
	dataLen := int(binary.BigEndian.Uint16(buf[2:4]))
	status, err := decodeAcctStatus(buf[4])
	if err != nil {
		return err
	}

	off := 5
	serverMsg, off, err := sliceField(buf, off, msgLen)
	if err != nil {
		return fmt.Errorf("acct reply server_msg: %w", err)
	}
	data, off, err := sliceField(buf, off, dataLen)
	if err != nil {
		return fmt.Errorf("acct reply data: %w", err)
	}
	if off != len(buf) {
		return fmt.Errorf("acct reply: %d trailing octets: %w", len(buf)-off, ErrLengthMismatch)
	}

	r.Status = status
	r.ServerMsg = serverMsg
	r.Data = data
	return nil
}
