// Package event holds the record types the aggregation engine operates on:
// raw joined rows, grouping entities and their associations with events.
package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/coctel/internal/position"
)

// Family is the source family that produced an association.
type Family string

const (
	Broadcast Family = "broadcast"
	Social    Family = "social"
)

// Medium is the broadcast medium of a program.
type Medium string

const (
	Radio Medium = "radio"
	TV    Medium = "tv"
)

// ParseMedium accepts the medium spellings found in ingested data.
func ParseMedium(s string) (Medium, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "radio":
		return Radio, true
	case "tv", "television", "televisión", "televisión abierta":
		return TV, true
	default:
		return "", false
	}
}

// keySep separates fields of composite keys. It never occurs in names.
const keySep = "\x1f"

// Entity is a grouping entity: a broadcast program or a social post.
type Entity struct {
	Family  Family
	Medium  Medium // broadcast only
	Channel string // broadcast channel, or publisher page for social posts
	Name    string // program name, broadcast only
	PostID  string // social only
}

// Program builds a broadcast grouping entity.
func Program(name, channel string, medium Medium) Entity {
	return Entity{Family: Broadcast, Medium: medium, Channel: channel, Name: name}
}

// Post builds a social grouping entity published by page.
func Post(page, postID string) Entity {
	return Entity{Family: Social, Channel: page, PostID: postID}
}

// Key identifies the entity. Two programs with the same name on different
// channels have different keys.
func (e Entity) Key() string {
	if e.Family == Social {
		return "s" + keySep + e.Channel + keySep + e.PostID
	}
	return "b" + keySep + string(e.Medium) + keySep + e.Channel + keySep + e.Name
}

// Source returns the source label used in reports: radio, tv or social.
func (e Entity) Source() string {
	if e.Family == Social {
		return string(Social)
	}
	return string(e.Medium)
}

// Association is one (event, grouping entity) pair.
type Association struct {
	EventID int64
	Entity  Entity
}

// Key identifies the association.
func (a Association) Key() string {
	return JoinKey(formatID(a.EventID), a.Entity.Key())
}

// Row is one raw tuple returned by the query layer: an event joined with at
// most one grouping entity, topic and actor. Rows may repeat when the join
// fans out on an unrelated dimension.
type Row struct {
	EventID  int64
	At       time.Time
	Location string
	Position position.Code
	Flagged  bool
	Family   Family

	// Entity is nil when the join found no association.
	Entity *Entity
	// Topic and Actor are empty when the event carries no tag.
	Topic string
	Actor string
}

// Association returns the row's association, if any.
func (r Row) Association() (Association, bool) {
	if r.Entity == nil {
		return Association{}, false
	}
	return Association{EventID: r.EventID, Entity: *r.Entity}, true
}

// JoinKey joins key parts with a separator that cannot appear in names.
func JoinKey(parts ...string) string {
	return strings.Join(parts, keySep)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
