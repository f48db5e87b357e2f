package actions

import "fmt"

// Type is the closed set of game actions.
type Type uint32

const (
	TypePauseToggle Type = iota
	TypeLoadOrQuit
	TypeCheatSet
	TypeParkSetEntranceFee
	TypeSmallSceneryPlace
	TypeWallPlace
	TypeLargeSceneryPlace
	TypeBannerPlace
	TypeStaffHire
	TypeStaffSetOrders
	TypeBalloonPress
	TypeCount
)

var typeNames = [TypeCount]string{
	TypePauseToggle:        "PauseToggle",
	TypeLoadOrQuit:         "LoadOrQuit",
	TypeCheatSet:           "CheatSet",
	TypeParkSetEntranceFee: "ParkSetEntranceFee",
	TypeSmallSceneryPlace:  "SmallSceneryPlace",
	TypeWallPlace:          "WallPlace",
	TypeLargeSceneryPlace:  "LargeSceneryPlace",
	TypeBannerPlace:        "BannerPlace",
	TypeStaffHire:          "StaffHire",
	TypeStaffSetOrders:     "StaffSetOrders",
	TypeBalloonPress:       "BalloonPress",
}

func (t Type) String() string {
	if t < TypeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint32(t))
}

func (t Type) Valid() bool { return t < TypeCount }

// Flags are per-instance command flags carried on the wire.
type Flags uint32

const (
	FlagReplay            Flags = 1 << 1
	FlagAllowDuringPaused Flags = 1 << 3
	FlagNoSpend           Flags = 1 << 5
	FlagGhost             Flags = 1 << 6
	FlagNetworked         Flags = 1 << 31
)

// ActionFlags are fixed per action type.
type ActionFlags uint16

const (
	AllowWhilePaused ActionFlags = 1 << 0
	ClientOnly       ActionFlags = 1 << 1
	IgnoreForReplays ActionFlags = 1 << 2
)

type PlayerID int32

// PlayerUnassigned is resolved to the local player when a networked
// session enqueues the action.
const PlayerUnassigned PlayerID = -1
