// Package tacgo is the public entry point for the TACACS+ (RFC 8907) client
// library. It re-exports the core types from internal/tacacs so external
// callers get a stable, documented surface while the codec and session
// engine stay free to evolve internally.
package tacgo

import (
	"context"
	"io"
	"log/slog"

	"github.com/tacplus-go/tacgo/internal/tacacs"
)

// Re-exported packet-level types.
type (
	PacketType      = tacacs.PacketType
	AuthenAction    = tacacs.AuthenAction
	AuthenType      = tacacs.AuthenType
	AuthenService   = tacacs.AuthenService
	AuthenStatus    = tacacs.AuthenStatus
	AuthenMethod    = tacacs.AuthenMethod
	AuthorStatus    = tacacs.AuthorStatus
	AcctFlags       = tacacs.AcctFlags
	AcctStatus      = tacacs.AcctStatus
	Argument        = tacacs.Argument
	Args            = tacacs.Args
	AuthenStart     = tacacs.AuthenStart
	AuthorRequest   = tacacs.AuthorRequest
	AcctRequest     = tacacs.AcctRequest
	AuthOutcome     = tacacs.AuthOutcome
	AuthorOutcome   = tacacs.AuthorOutcome
	AcctOutcome     = tacacs.AcctOutcome
	Session         = tacacs.Session
	Connection      = tacacs.Connection
	Option          = tacacs.Option
	MetricsReporter = tacacs.MetricsReporter
)

// Re-exported packet type constants.
const (
	PacketAuthentication = tacacs.PacketAuthentication
	PacketAuthorization  = tacacs.PacketAuthorization
	PacketAccounting     = tacacs.PacketAccounting
)

// Re-exported authentication action/type/service constants.
const (
	AuthenActionLogin    = tacacs.AuthenActionLogin
	AuthenActionChPass   = tacacs.AuthenActionChPass
	AuthenActionSendAuth = tacacs.AuthenActionSendAuth

	AuthenTypeASCII    = tacacs.AuthenTypeASCII
	AuthenTypePAP      = tacacs.AuthenTypePAP
	AuthenTypeCHAP     = tacacs.AuthenTypeCHAP
	AuthenTypeARAP     = tacacs.AuthenTypeARAP
	AuthenTypeMSCHAP   = tacacs.AuthenTypeMSCHAP
	AuthenTypeMSCHAPV2 = tacacs.AuthenTypeMSCHAPV2

	ServiceNone    = tacacs.ServiceNone
	ServiceLogin   = tacacs.ServiceLogin
	ServiceEnable  = tacacs.ServiceEnable
	ServicePPP     = tacacs.ServicePPP
)

// Re-exported outcome status constants.
const (
	AuthenStatusPass    = tacacs.AuthenStatusPass
	AuthenStatusFail    = tacacs.AuthenStatusFail
	AuthenStatusGetData = tacacs.AuthenStatusGetData
	AuthenStatusGetUser = tacacs.AuthenStatusGetUser
	AuthenStatusGetPass = tacacs.AuthenStatusGetPass
	AuthenStatusRestart = tacacs.AuthenStatusRestart
	AuthenStatusError   = tacacs.AuthenStatusError
	AuthenStatusFollow  = tacacs.AuthenStatusFollow

	AcctFlagStart    = tacacs.AcctFlagStart
	AcctFlagStop     = tacacs.AcctFlagStop
	AcctFlagWatchdog = tacacs.AcctFlagWatchdog
)

// Dial wraps an established bidirectional byte stream (typically a
// *net.TCPConn) in a Connection. The transport itself is out of scope for
// this library: callers dial the TCP connection and hand it here.
func Dial(ctx context.Context, stream io.ReadWriter, opts ...Option) (*Connection, error) {
	return tacacs.Dial(ctx, stream, opts...)
}

// WithSecret configures the shared secret used for body obfuscation.
func WithSecret(secret []byte) Option { return tacacs.WithSecret(secret) }

// WithAllowClearTextReplies permits inbound clear-text frames even when a
// secret is configured.
func WithAllowClearTextReplies(allow bool) Option { return tacacs.WithAllowClearTextReplies(allow) }

// WithPreferSingleConnection requests single-connection multiplexing on the
// first packet sent over the connection.
func WithPreferSingleConnection(prefer bool) Option { return tacacs.WithPreferSingleConnection(prefer) }

// WithLogger attaches a structured logger to the Connection.
func WithLogger(l *slog.Logger) Option { return tacacs.WithLogger(l) }

// WithMetrics attaches a MetricsReporter to the Connection.
func WithMetrics(mr MetricsReporter) Option { return tacacs.WithMetrics(mr) }
