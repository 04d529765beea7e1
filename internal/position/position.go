// Package position classifies the 5-way sentiment code attached to an event.
package position

// Code is the numeric position code stored with an event. Valid codes are 1..5;
// everything else, including the zero value, is undefined.
type Code int

const (
	Undefined       Code = 0
	Favor           Code = 1
	PotentialFavor  Code = 2
	Neutral         Code = 3
	PotentialContra Code = 4
	Contra          Code = 5
)

// Stance is the coarse {favor, contra, neutral} grouping of a Code.
type Stance string

const (
	StanceFavor     Stance = "favor"
	StanceContra    Stance = "contra"
	StanceNeutral   Stance = "neutral"
	StanceUndefined Stance = "undefined"
)

// All lists the defined codes in ascending order.
var All = [...]Code{Favor, PotentialFavor, Neutral, PotentialContra, Contra}

// FromInt maps any integer onto a Code. Out-of-range values become Undefined.
func FromInt(n int64) Code {
	c := Code(n)
	if !c.Valid() {
		return Undefined
	}
	return c
}

// FromNullable maps a nullable integer onto a Code.
func FromNullable(n int64, valid bool) Code {
	if !valid {
		return Undefined
	}
	return FromInt(n)
}

func (c Code) Valid() bool {
	return c >= Favor && c <= Contra
}

// Label returns the category label for c.
func (c Code) Label() string {
	switch c {
	case Favor:
		return "favor"
	case PotentialFavor:
		return "potential_favor"
	case Neutral:
		return "neutral"
	case PotentialContra:
		return "potential_contra"
	case Contra:
		return "contra"
	default:
		return "undefined"
	}
}

// Stance groups 1,2 as favor, 4,5 as contra and 3 as neutral.
func (c Code) Stance() Stance {
	switch c {
	case Favor, PotentialFavor:
		return StanceFavor
	case PotentialContra, Contra:
		return StanceContra
	case Neutral:
		return StanceNeutral
	default:
		return StanceUndefined
	}
}

func (c Code) String() string {
	return c.Label()
}
