package actions

import "fmt"

// StringID names a user-facing message template.
type StringID uint16

const (
	StringNone StringID = 0xFFFF
)

const (
	StringCantDoThis StringID = iota + 1
	StringConstructionNotPossibleWhilePaused
	StringNotEnoughCashRequires
	StringCantPositionThisHere
	StringCantBuildThisHere
	StringOffEdgeOfMap
	StringObjectInTheWay
	StringInvalidSelectionOfObjects
	StringCantHireNewStaff
	StringTooManyStaffInGame
	StringCantChangeStaffOrders
	StringCantChangeEntranceFee
	StringInvalidValue
	StringActionNotAllowedDuringReplay
)

var stringTable = map[StringID]string{
	StringCantDoThis:                         "Can't do this...",
	StringConstructionNotPossibleWhilePaused: "Construction is not possible while game is paused!",
	StringNotEnoughCashRequires:              "Not enough cash - requires %s",
	StringCantPositionThisHere:               "Can't position this here...",
	StringCantBuildThisHere:                  "Can't build this here...",
	StringOffEdgeOfMap:                       "Off edge of map!",
	StringObjectInTheWay:                     "%s in the way",
	StringInvalidSelectionOfObjects:          "Invalid selection of objects",
	StringCantHireNewStaff:                   "Can't hire new staff...",
	StringTooManyStaffInGame:                 "Too many staff in game",
	StringCantChangeStaffOrders:              "Can't change staff orders...",
	StringCantChangeEntranceFee:              "Can't change entrance fee...",
	StringInvalidValue:                       "Invalid value",
	StringActionNotAllowedDuringReplay:       "Action not allowed during replay",
}

// Format renders id with args. Unknown ids render empty.
func (id StringID) Format(args ...any) string {
	tmpl, ok := stringTable[id]
	if !ok {
		return ""
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
