package world

import "math"

type Money = int64

// MoneyNull marks an unset cost.
const MoneyNull Money = math.MinInt64

type ExpenditureType uint8

const (
	ExpenditureRideConstruction ExpenditureType = iota
	ExpenditureRideRunningCosts
	ExpenditureLandPurchase
	ExpenditureLandscaping
	ExpenditureParkEntranceTickets
	ExpenditureParkRideTickets
	ExpenditureShopSales
	ExpenditureShopStock
	ExpenditureFoodDrinkSales
	ExpenditureFoodDrinkStock
	ExpenditureWages
	ExpenditureMarketing
	ExpenditureResearch
	ExpenditureInterest
	ExpenditureCount

	ExpenditureNone ExpenditureType = 0xFF
)

var expenditureNames = [ExpenditureCount]string{
	"RideConstruction", "RideRunningCosts", "LandPurchase", "Landscaping",
	"ParkEntranceTickets", "ParkRideTickets", "ShopSales", "ShopStock",
	"FoodDrinkSales", "FoodDrinkStock", "Wages", "Marketing", "Research", "Interest",
}

func (e ExpenditureType) String() string {
	if e < ExpenditureCount {
		return expenditureNames[e]
	}
	return "None"
}

type ParkFlags uint32

const (
	ParkFlagOpen ParkFlags = 1 << iota
	ParkFlagNoMoney
	ParkFlagFreeEntry
)

// Payment debits cost from cash and books it under category. Negative
// costs are income. Parks without money ignore payments.
func (w *World) Payment(cost Money, category ExpenditureType) {
	if w.parkFlags&ParkFlagNoMoney != 0 || cost == 0 || cost == MoneyNull {
		return
	}
	w.cash -= cost
	if category < ExpenditureCount {
		w.expenditure[category] -= cost
	}
}

func (w *World) Cash() Money              { return w.cash }
func (w *World) SetCash(v Money)          { w.cash = v }
func (w *World) NoMoney() bool            { return w.parkFlags&ParkFlagNoMoney != 0 }
func (w *World) ParkFlags() ParkFlags     { return w.parkFlags }
func (w *World) SetParkFlags(f ParkFlags) { w.parkFlags = f }

// Expenditure returns the running total booked under category this
// session. Spending is negative.
func (w *World) Expenditure(category ExpenditureType) Money {
	if category >= ExpenditureCount {
		return 0
	}
	return w.expenditure[category]
}

func (w *World) EntranceFee() Money     { return w.entranceFee }
func (w *World) SetEntranceFee(v Money) { w.entranceFee = v }
func (w *World) Rating() uint16         { return w.rating }
func (w *World) SetRating(v uint16)     { w.rating = v }
