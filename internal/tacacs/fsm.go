package tacacs

// This file implements the authentication sub-protocol state machine as a
// pure function over a small transition table, no I/O: the FSM decides state,
// Session.applyAuthenReply executes the side effects (updating the Session's
// state, recording a terminal outcome, surfacing it to the caller); the
// CONTINUE packets themselves are sent by Session.Continue.
//
// State diagram (authentication LOGIN, the canonical case):
//
//	Idle --start()--> InFlight(1)
//	InFlight(n) --REPLY{PASS,FAIL,ERROR}--> Terminal
//	InFlight(n) --REPLY{GETUSER,GETPASS,GETDATA}--> AwaitingUserInput
//	AwaitingUserInput --continue(datum)--> InFlight(n+2)
//	AwaitingUserInput --abort(reason)--> Terminal(abort)
//	InFlight(n) --REPLY{RESTART}--> Terminal(restart)
//	InFlight(n) --REPLY{FOLLOW}--> Terminal(follow)

// sessionState is a Session's coarse lifecycle position:
// Idle -> InFlight(seq) -> Terminal.
type sessionState uint8

const (
	stateIdle sessionState = iota
	stateInFlight
	stateAwaitingUserInput
	stateTerminal
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateInFlight:
		return "InFlight"
	case stateAwaitingUserInput:
		return "AwaitingUserInput"
	case stateTerminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}

// terminalReason records why an authentication session reached
// stateTerminal, distinguishing a normal PASS/FAIL outcome from the two
// cases the caller must react to explicitly.
type terminalReason uint8

const (
	terminalNormal terminalReason = iota
	terminalRestart
	terminalFollow
	terminalAbort
)

// nextAuthenState computes the FSM transition for an authentication
// session on receipt of a REPLY with the given status. It is a pure
// function: no I/O, no Session fields beyond what is passed in.
func nextAuthenState(current sessionState, status AuthenStatus) (sessionState, terminalReason) {
	switch status {
	case AuthenStatusRestart:
		return stateTerminal, terminalRestart
	case AuthenStatusFollow:
		return stateTerminal, terminalFollow
	default:
		if status.IsInteractive() {
			return stateAwaitingUserInput, terminalNormal
		}
		return stateTerminal, terminalNormal
	}
}
