package tacacs

import "fmt"

// -------------------------------------------------------------------------
// Protocol Constants — RFC 8907 Section 4.1
// -------------------------------------------------------------------------

// MajorVersion is the TACACS+ major version nibble. RFC 8907 Section 4.1
// fixes this to 0xC for every packet regardless of minor version.
const MajorVersion uint8 = 0xC

// MinorVersionDefault is the minor version used by every authen_type except
// MS-CHAP (RFC 8907 Section 4.1).
const MinorVersionDefault uint8 = 0x0

// MinorVersionOne is the minor version required for MS-CHAP v1/v2 START
// packets (RFC 8907 Section 5.1).
const MinorVersionOne uint8 = 0x1

// HeaderSize is the fixed TACACS+ packet header size in octets
// (RFC 8907 Section 4.1: 12 bytes).
const HeaderSize = 12

// unknownFmt is the format string for unrecognized enum values with their
// numeric code.
const unknownFmt = "Unknown(%d)"

// -------------------------------------------------------------------------
// PacketType — RFC 8907 Section 4.1
// -------------------------------------------------------------------------

// PacketType identifies which of the three AAA exchanges a packet belongs
// to (RFC 8907 Section 4.1, header byte 1).
type PacketType uint8

const (
	// PacketAuthentication carries START/REPLY/CONTINUE bodies.
	PacketAuthentication PacketType = 0x01

	// PacketAuthorization carries REQUEST/RESPONSE bodies.
	PacketAuthorization PacketType = 0x02

	// PacketAccounting carries REQUEST/REPLY bodies.
	PacketAccounting PacketType = 0x03
)

var packetTypeNames = map[PacketType]string{
	PacketAuthentication: "Authentication",
	PacketAuthorization:  "Authorization",
	PacketAccounting:     "Accounting",
}

// String returns the human-readable name of the packet type.
func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint8(t))
}

// decodePacketType validates an octet as a PacketType (RFC 8907 Section 4.1).
func decodePacketType(b byte) (PacketType, error) {
	t := PacketType(b)
	if _, ok := packetTypeNames[t]; !ok {
		return 0, fmt.Errorf("packet type %d: %w", b, ErrInvalidPacketType)
	}
	return t, nil
}

// -------------------------------------------------------------------------
// Header Flags — RFC 8907 Section 4.1
// -------------------------------------------------------------------------

// HeaderFlags is the header-level bitfield (RFC 8907 Section 4.1).
type HeaderFlags uint8

const (
	// FlagUnencrypted disables body obfuscation for the entire packet
	// (RFC 8907 Section 4.5: TAC_PLUS_UNENCRYPTED_FLAG, value 0x01).
	FlagUnencrypted HeaderFlags = 0x01

	// FlagSingleConnection advertises or requests single-connection
	// multiplexing (RFC 8907 Section 4.3: TAC_PLUS_SINGLE_CONNECT_FLAG,
	// value 0x04).
	FlagSingleConnection HeaderFlags = 0x04
)

// knownHeaderFlags is the set of bits this codec recognizes. RFC 8907 does
// not mandate rejecting unknown bits on decode, so decode preserves them;
// encode rejects flags outside this set.
const knownHeaderFlags = FlagUnencrypted | FlagSingleConnection

// Has reports whether f contains every bit set in mask.
func (f HeaderFlags) Has(mask HeaderFlags) bool { return f&mask == mask }

// -------------------------------------------------------------------------
// Authentication Action — RFC 8907 Section 5.1
// -------------------------------------------------------------------------

// AuthenAction identifies why an authentication START was issued.
type AuthenAction uint8

const (
	AuthenActionLogin    AuthenAction = 0x01
	AuthenActionChPass   AuthenAction = 0x02
	AuthenActionSendAuth AuthenAction = 0x04
)

var authenActionNames = map[AuthenAction]string{
	AuthenActionLogin:    "Login",
	AuthenActionChPass:   "ChPass",
	AuthenActionSendAuth: "SendAuth",
}

func (a AuthenAction) String() string {
	if name, ok := authenActionNames[a]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint8(a))
}

func decodeAuthenAction(b byte) (AuthenAction, error) {
	a := AuthenAction(b)
	if _, ok := authenActionNames[a]; !ok {
		return 0, fmt.Errorf("authen action %d: %w", b, ErrInvalidEnumValue)
	}
	return a, nil
}

// -------------------------------------------------------------------------
// Authentication Type — RFC 8907 Section 5.1
// -------------------------------------------------------------------------

// AuthenType identifies the authentication mechanism carried by a START
// packet, and the minor version that pairing requires.
type AuthenType uint8

const (
	AuthenTypeASCII    AuthenType = 0x01
	AuthenTypePAP      AuthenType = 0x02
	AuthenTypeCHAP     AuthenType = 0x03
	AuthenTypeARAP     AuthenType = 0x04
	AuthenTypeMSCHAP   AuthenType = 0x05
	AuthenTypeMSCHAPV2 AuthenType = 0x06
)

var authenTypeNames = map[AuthenType]string{
	AuthenTypeASCII:    "ASCII",
	AuthenTypePAP:      "PAP",
	AuthenTypeCHAP:     "CHAP",
	AuthenTypeARAP:     "ARAP",
	AuthenTypeMSCHAP:   "MSCHAP",
	AuthenTypeMSCHAPV2: "MSCHAPV2",
}

func (a AuthenType) String() string {
	if name, ok := authenTypeNames[a]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint8(a))
}

func decodeAuthenType(b byte) (AuthenType, error) {
	a := AuthenType(b)
	if _, ok := authenTypeNames[a]; !ok {
		return 0, fmt.Errorf("authen type %d: %w", b, ErrInvalidEnumValue)
	}
	return a, nil
}

// RequiredMinorVersion returns the minor version RFC 8907 Section 5.1
// mandates for this authentication type: MSCHAP and MSCHAPV2 require
// MinorVersionOne, every other type requires MinorVersionDefault.
func (a AuthenType) RequiredMinorVersion() uint8 {
	switch a {
	case AuthenTypeMSCHAP, AuthenTypeMSCHAPV2:
		return MinorVersionOne
	default:
		return MinorVersionDefault
	}
}

// -------------------------------------------------------------------------
// Service — RFC 8907 Section 8.2.1
// -------------------------------------------------------------------------

// AuthenService identifies the service that requested authentication.
type AuthenService uint8

const (
	ServiceNone    AuthenService = 0x00
	ServiceLogin   AuthenService = 0x01
	ServiceEnable  AuthenService = 0x02
	ServicePPP     AuthenService = 0x03
	ServiceARAP    AuthenService = 0x04
	ServicePT      AuthenService = 0x05
	ServiceRCMD    AuthenService = 0x06
	ServiceX25     AuthenService = 0x07
	ServiceNASI    AuthenService = 0x08
	ServiceFwProxy AuthenService = 0x09
)

var serviceNames = map[AuthenService]string{
	ServiceNone:    "None",
	ServiceLogin:   "Login",
	ServiceEnable:  "Enable",
	ServicePPP:     "PPP",
	ServiceARAP:    "ARAP",
	ServicePT:      "PT",
	ServiceRCMD:    "RCMD",
	ServiceX25:     "X25",
	ServiceNASI:    "NASI",
	ServiceFwProxy: "FwProxy",
}

func (s AuthenService) String() string {
	if name, ok := serviceNames[s]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint8(s))
}

func decodeService(b byte) (AuthenService, error) {
	s := AuthenService(b)
	if _, ok := serviceNames[s]; !ok {
		return 0, fmt.Errorf("service %d: %w", b, ErrInvalidEnumValue)
	}
	return s, nil
}

// -------------------------------------------------------------------------
// Privilege Level — RFC 8907 Section 5.1
// -------------------------------------------------------------------------

// MaxPrivLvl is the highest valid privilege level (RFC 8907 Section 5.1:
// "a value between 0 and 15").
const MaxPrivLvl = 15

func validatePrivLvl(p uint8) error {
	if p > MaxPrivLvl {
		return fmt.Errorf("priv_lvl %d exceeds maximum %d: %w", p, MaxPrivLvl, ErrInvalidEnumValue)
	}
	return nil
}

// -------------------------------------------------------------------------
// Authentication Reply Status — RFC 8907 Section 5.2
// -------------------------------------------------------------------------

// AuthenStatus is the outcome octet on an authentication REPLY.
type AuthenStatus uint8

const (
	AuthenStatusPass    AuthenStatus = 0x01
	AuthenStatusFail    AuthenStatus = 0x02
	AuthenStatusGetData AuthenStatus = 0x03
	AuthenStatusGetUser AuthenStatus = 0x04
	AuthenStatusGetPass AuthenStatus = 0x05
	AuthenStatusRestart AuthenStatus = 0x06
	AuthenStatusError   AuthenStatus = 0x07
	AuthenStatusFollow  AuthenStatus = 0x21
)

var authenStatusNames = map[AuthenStatus]string{
	AuthenStatusPass:    "Pass",
	AuthenStatusFail:    "Fail",
	AuthenStatusGetData: "GetData",
	AuthenStatusGetUser: "GetUser",
	AuthenStatusGetPass: "GetPass",
	AuthenStatusRestart: "Restart",
	AuthenStatusError:   "Error",
	AuthenStatusFollow:  "Follow",
}

func (s AuthenStatus) String() string {
	if name, ok := authenStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint8(s))
}

func decodeAuthenStatus(b byte) (AuthenStatus, error) {
	s := AuthenStatus(b)
	if _, ok := authenStatusNames[s]; !ok {
		return 0, fmt.Errorf("authen status %d: %w", b, ErrInvalidEnumValue)
	}
	return s, nil
}

// IsInteractive reports whether this status moves the session into
// AwaitingUserInput.
func (s AuthenStatus) IsInteractive() bool {
	switch s {
	case AuthenStatusGetData, AuthenStatusGetUser, AuthenStatusGetPass:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether this status ends the session without a
// further CONTINUE.
func (s AuthenStatus) IsTerminal() bool {
	switch s {
	case AuthenStatusPass, AuthenStatusFail, AuthenStatusError,
		AuthenStatusRestart, AuthenStatusFollow:
		return true
	default:
		return false
	}
}

// -------------------------------------------------------------------------
// Authentication REPLY Flags — RFC 8907 Section 5.2
// -------------------------------------------------------------------------

// ReplyFlags is the single-bit flags field on an authentication REPLY.
type ReplyFlags uint8

// FlagNoEcho indicates the client must not echo the caller's next input
// (RFC 8907 Section 5.2: TAC_PLUS_REPLY_FLAG_NOECHO, value 0x01).
const FlagNoEcho ReplyFlags = 0x01

// -------------------------------------------------------------------------
// Authentication CONTINUE Flags — RFC 8907 Section 5.3
// -------------------------------------------------------------------------

// ContinueFlags is the single-bit flags field on an authentication
// CONTINUE.
type ContinueFlags uint8

// FlagAbort indicates the client is abandoning the authentication sequence
// (RFC 8907 Section 5.3: TAC_PLUS_CONTINUE_FLAG_ABORT, value 0x01).
const FlagAbort ContinueFlags = 0x01

// -------------------------------------------------------------------------
// Authentication Method — RFC 8907 Section 8.2.1 (authorization/accounting)
// -------------------------------------------------------------------------

// AuthenMethod records how the user was originally authenticated, carried
// on authorization REQUEST and accounting REQUEST bodies.
type AuthenMethod uint8

const (
	AuthenMethodNotSet      AuthenMethod = 0x00
	AuthenMethodNone        AuthenMethod = 0x01
	AuthenMethodKRB5        AuthenMethod = 0x02
	AuthenMethodLine        AuthenMethod = 0x03
	AuthenMethodEnable      AuthenMethod = 0x04
	AuthenMethodLocal       AuthenMethod = 0x05
	AuthenMethodTACACSPlus  AuthenMethod = 0x06
	AuthenMethodGuest       AuthenMethod = 0x08
	AuthenMethodRADIUS      AuthenMethod = 0x10
	AuthenMethodKRB5Instance AuthenMethod = 0x11
	AuthenMethodRCMD        AuthenMethod = 0x20
)

var authenMethodNames = map[AuthenMethod]string{
	AuthenMethodNotSet:       "NotSet",
	AuthenMethodNone:         "None",
	AuthenMethodKRB5:         "KRB5",
	AuthenMethodLine:         "Line",
	AuthenMethodEnable:       "Enable",
	AuthenMethodLocal:        "Local",
	AuthenMethodTACACSPlus:   "TACACSPlus",
	AuthenMethodGuest:        "Guest",
	AuthenMethodRADIUS:       "RADIUS",
	AuthenMethodKRB5Instance: "KRB5Instance",
	AuthenMethodRCMD:         "RCMD",
}

func (m AuthenMethod) String() string {
	if name, ok := authenMethodNames[m]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint8(m))
}

func decodeAuthenMethod(b byte) (AuthenMethod, error) {
	m := AuthenMethod(b)
	if _, ok := authenMethodNames[m]; !ok {
		return 0, fmt.Errorf("authen method %d: %w", b, ErrInvalidEnumValue)
	}
	return m, nil
}

// -------------------------------------------------------------------------
// Authorization Response Status — RFC 8907 Section 6.2
// -------------------------------------------------------------------------

// AuthorStatus is the outcome octet on an authorization RESPONSE.
type AuthorStatus uint8

const (
	AuthorStatusPassAdd  AuthorStatus = 0x01
	AuthorStatusPassRepl AuthorStatus = 0x02
	AuthorStatusFail     AuthorStatus = 0x10
	AuthorStatusError    AuthorStatus = 0x11
	AuthorStatusFollow   AuthorStatus = 0x21
)

var authorStatusNames = map[AuthorStatus]string{
	AuthorStatusPassAdd:  "PassAdd",
	AuthorStatusPassRepl: "PassRepl",
	AuthorStatusFail:     "Fail",
	AuthorStatusError:    "Error",
	AuthorStatusFollow:   "Follow",
}

func (s AuthorStatus) String() string {
	if name, ok := authorStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint8(s))
}

func decodeAuthorStatus(b byte) (AuthorStatus, error) {
	s := AuthorStatus(b)
	if _, ok := authorStatusNames[s]; !ok {
		return 0, fmt.Errorf("author status %d: %w", b, ErrInvalidEnumValue)
	}
	return s, nil
}

// Permitted reports whether this status grants the request.
func (s AuthorStatus) Permitted() bool {
	return s == AuthorStatusPassAdd || s == AuthorStatusPassRepl
}

// -------------------------------------------------------------------------
// Accounting Flags — RFC 8907 Section 7.1
// -------------------------------------------------------------------------

// AcctFlags identifies the kind of accounting record on a REQUEST.
type AcctFlags uint8

const (
	AcctFlagStart    AcctFlags = 0x02
	AcctFlagStop     AcctFlags = 0x04
	AcctFlagWatchdog AcctFlags = 0x08
)

// knownAcctFlags is the set of bits this codec recognizes (RFC 8907
// Section 7.1 defines only these three).
const knownAcctFlags = AcctFlagStart | AcctFlagStop | AcctFlagWatchdog

func (f AcctFlags) String() string {
	switch f {
	case AcctFlagStart:
		return "Start"
	case AcctFlagStop:
		return "Stop"
	case AcctFlagWatchdog:
		return "Watchdog"
	case AcctFlagStart | AcctFlagWatchdog:
		return "Start|Watchdog"
	default:
		return fmt.Sprintf(unknownFmt, uint8(f))
	}
}

// -------------------------------------------------------------------------
// Accounting Reply Status — RFC 8907 Section 7.2
// -------------------------------------------------------------------------

// AcctStatus is the outcome octet on an accounting REPLY.
type AcctStatus uint8

const (
	AcctStatusSuccess AcctStatus = 0x01
	AcctStatusError   AcctStatus = 0x02
	AcctStatusFollow  AcctStatus = 0x21
)

var acctStatusNames = map[AcctStatus]string{
	AcctStatusSuccess: "Success",
	AcctStatusError:   "Error",
	AcctStatusFollow:  "Follow",
}

func (s AcctStatus) String() string {
	if name, ok := acctStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint8(s))
}

func decodeAcctStatus(b byte) (AcctStatus, error) {
	s := AcctStatus(b)
	if _, ok := acctStatusNames[s]; !ok {
		return 0, fmt.Errorf("acct status %d: %w", b, ErrInvalidEnumValue)
	}
	return s, nil
}
