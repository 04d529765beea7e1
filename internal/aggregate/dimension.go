package aggregate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/coctel/internal/bucket"
	"github.com/ppiankov/coctel/internal/event"
)

// Dimension is one column of a grouping key.
type Dimension string

const (
	Week     Dimension = "week"
	Month    Dimension = "month"
	Location Dimension = "location"
	Region   Dimension = "region"
	Source   Dimension = "source"
	Medium   Dimension = "medium"
	Channel  Dimension = "channel"
	Program  Dimension = "program"
	Page     Dimension = "page"
	Position Dimension = "position"
	Stance   Dimension = "stance"
	Topic    Dimension = "topic"
	Actor    Dimension = "actor"
	Flag     Dimension = "flag"
)

var known = map[Dimension]bool{
	Week: true, Month: true, Location: true, Region: true, Source: true,
	Medium: true, Channel: true, Program: true, Page: true, Position: true,
	Stance: true, Topic: true, Actor: true, Flag: true,
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	return known[d]
}

// IsTime reports whether d is a period dimension.
func (d Dimension) IsTime() bool {
	return d == Week || d == Month
}

func checkDims(dims []Dimension) error {
	seen := make(map[Dimension]bool, len(dims))
	for _, d := range dims {
		if !d.Valid() {
			return fmt.Errorf("unknown dimension %q", d)
		}
		if seen[d] {
			return fmt.Errorf("dimension %q repeated", d)
		}
		seen[d] = true
	}
	return nil
}

// Keyer extracts dimension values from rows.
type Keyer struct {
	Bucketer bucket.Bucketer
	// Regions maps a location to its macro-region.
	Regions map[string]string
	// IncludeUndefined keeps rows with an undefined position when grouping
	// by position or stance.
	IncludeUndefined bool
}

// Value returns the value of dimension d for r. ok is false when r has no
// value for d; such rows are left out of any grouping on d.
func (k Keyer) Value(r event.Row, d Dimension) (string, bool) {
	switch d {
	case Week:
		if r.At.IsZero() {
			return "", false
		}
		return k.Bucketer.Week(r.At).Label(), true
	case Month:
		if r.At.IsZero() {
			return "", false
		}
		return k.Bucketer.Month(r.At).Label(), true
	case Location:
		return nonEmpty(r.Location)
	case Region:
		region, ok := k.Regions[r.Location]
		if !ok {
			return "", false
		}
		return nonEmpty(region)
	case Source:
		if r.Entity == nil {
			return "", false
		}
		return nonEmpty(r.Entity.Source())
	case Medium:
		if r.Entity == nil || r.Entity.Family != event.Broadcast {
			return "", false
		}
		return nonEmpty(string(r.Entity.Medium))
	case Channel:
		if r.Entity == nil {
			return "", false
		}
		return nonEmpty(r.Entity.Channel)
	case Program:
		if r.Entity == nil || r.Entity.Family != event.Broadcast {
			return "", false
		}
		return nonEmpty(r.Entity.Name)
	case Page:
		if r.Entity == nil || r.Entity.Family != event.Social {
			return "", false
		}
		return nonEmpty(r.Entity.Channel)
	case Position:
		if !r.Position.Valid() && !k.IncludeUndefined {
			return "", false
		}
		return r.Position.Label(), true
	case Stance:
		if !r.Position.Valid() && !k.IncludeUndefined {
			return "", false
		}
		return string(r.Position.Stance()), true
	case Topic:
		return nonEmpty(r.Topic)
	case Actor:
		return nonEmpty(r.Actor)
	case Flag:
		return event.FlagLabel(r.Flagged), true
	default:
		return "", false
	}
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
