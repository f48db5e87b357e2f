package actions

import (
	"parkstep.io/internal/sim/world"
)

type Status uint8

const (
	StatusOK Status = iota
	StatusInvalidParameters
	StatusDisallowed
	StatusGamePaused
	StatusInsufficientFunds
	StatusNotOwned
	StatusNoClearance
	StatusNoFreeElements
	StatusUnknown Status = 255
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidParameters:
		return "invalid_parameters"
	case StatusDisallowed:
		return "disallowed"
	case StatusGamePaused:
		return "game_paused"
	case StatusInsufficientFunds:
		return "insufficient_funds"
	case StatusNotOwned:
		return "not_owned"
	case StatusNoClearance:
		return "no_clearance"
	case StatusNoFreeElements:
		return "no_free_elements"
	default:
		return "unknown"
	}
}

// Result is the outcome of Query or Execute.
type Result struct {
	Status      Status
	Title       StringID
	Message     StringID
	Args        []any
	Cost        world.Money
	Expenditure world.ExpenditureType
	Position    world.Coords
}

func NewResult() *Result {
	return &Result{
		Status:      StatusOK,
		Title:       StringNone,
		Message:     StringNone,
		Expenditure: world.ExpenditureNone,
		Position:    world.NullCoords,
	}
}

func Failure(status Status, title, message StringID, args ...any) *Result {
	r := NewResult()
	r.Status = status
	r.Title = title
	r.Message = message
	r.Args = args
	return r
}

func (r *Result) IsOK() bool { return r.Status == StatusOK }

func (r *Result) ErrorTitleText() string { return r.Title.Format() }

func (r *Result) ErrorMessageText() string { return r.Message.Format(r.Args...) }
