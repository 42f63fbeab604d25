package protocol

// Opcode identifies the operation carried by a frame.
type Opcode uint32

const (
	OpNone Opcode = iota
	OpLogin
	OpLoginResult
	OpLogoutNotice
	OpWaitStart
	OpCardDeal
	OpGrabLandlord
	OpPlayCard
	OpRoundOver
	OpDeskTwo
	OpDeskThree

	opMax
)

// String returns the opcode name for logging.
func (op Opcode) String() string {
	switch op {
	case OpLogin:
		return "Login"
	case OpLoginResult:
		return "LoginResult"
	case OpLogoutNotice:
		return "LogoutNotice"
	case OpWaitStart:
		return "WaitStart"
	case OpCardDeal:
		return "CardDeal"
	case OpGrabLandlord:
		return "GrabLandlord"
	case OpPlayCard:
		return "PlayCard"
	case OpRoundOver:
		return "RoundOver"
	case OpDeskTwo:
		return "DeskTwo"
	case OpDeskThree:
		return "DeskThree"
	default:
		return "Unknown"
	}
}

// Known reports whether the opcode is part of the catalog. Unknown opcodes on
// an authenticated session are logged and dropped, never fatal.
func (op Opcode) Known() bool {
	return op > OpNone && op < opMax
}
