package game

// Status is the seat's primary state-machine variable. Ordering matters:
// several transitions compare against the round order, so new values must
// keep the round sequence contiguous.
type Status int

const (
	StatusWaitStart Status = iota
	StatusStarting
	StatusStarted
	StatusDealingCard
	StatusDealedCard
	StatusGrabLandlordIng
	StatusGrabLandlordEd
	StatusWaitOutCard
	StatusOutCarding
	StatusOutCarded
	StatusRoundOverIng
	StatusRoundOverEd
	StatusLoggedOut
)

// String returns the string representation of a status
func (s Status) String() string {
	switch s {
	case StatusWaitStart:
		return "WaitStart"
	case StatusStarting:
		return "Starting"
	case StatusStarted:
		return "Started"
	case StatusDealingCard:
		return "DealingCard"
	case StatusDealedCard:
		return "DealedCard"
	case StatusGrabLandlordIng:
		return "GrabLandlordIng"
	case StatusGrabLandlordEd:
		return "GrabLandlordEd"
	case StatusWaitOutCard:
		return "WaitOutCard"
	case StatusOutCarding:
		return "OutCarding"
	case StatusOutCarded:
		return "OutCarded"
	case StatusRoundOverIng:
		return "RoundOverIng"
	case StatusRoundOverEd:
		return "RoundOverEd"
	case StatusLoggedOut:
		return "LoggedOut"
	default:
		return "Unknown"
	}
}

// Control says who drives a seat's decisions.
type Control int

const (
	Human Control = iota
	AI
)

// String returns the string representation of a control kind
func (c Control) String() string {
	switch c {
	case Human:
		return "Human"
	case AI:
		return "AI"
	default:
		return "Unknown"
	}
}

// DeskView records how many neighbors a seat has already announced, so desk
// snapshots are re-sent only when occupancy actually changes.
type DeskView int

const (
	DeskNone DeskView = iota
	DeskTwo
	DeskThree
)
