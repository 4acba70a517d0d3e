package friend

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/meetme/progression-engine/internal/domain/shared"
)

// Roster is the ordered set of friends, indexed by id.
// The zero value is an empty roster ready to use.
type Roster struct {
	friends []*Friend
	byID    map[string]*Friend
}

// NewRoster builds a roster from friends, keeping the first of any duplicate id.
func NewRoster(friends ...*Friend) *Roster {
	r := &Roster{}
	for _, f := range friends {
		_ = r.Add(f)
	}
	return r
}

// Add appends a friend. Returns ErrFriendExists for a known id.
func (r *Roster) Add(f *Friend) error {
	if r.byID == nil {
		r.byID = make(map[string]*Friend)
	}
	if _, ok := r.byID[f.ID]; ok {
		return shared.ErrFriendExists
	}
	r.friends = append(r.friends, f)
	r.byID[f.ID] = f
	return nil
}

// Get returns the live friend for id.
func (r *Roster) Get(id string) (*Friend, bool) {
	f, ok := r.byID[id]
	return f, ok
}

// Has reports whether id is in the roster.
func (r *Roster) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Len returns the roster size.
func (r *Roster) Len() int {
	return len(r.friends)
}

// All returns copies of every friend in insertion order.
func (r *Roster) All() []*Friend {
	out := make([]*Friend, 0, len(r.friends))
	for _, f := range r.friends {
		out = append(out, f.Clone())
	}
	return out
}

// Ranking returns copies sorted by chill minutes descending, then by name.
func (r *Roster) Ranking() []*Friend {
	out := r.All()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChillMinutes != out[j].ChillMinutes {
			return out[i].ChillMinutes > out[j].ChillMinutes
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Top returns the friend with the most chill minutes.
func (r *Roster) Top() (*Friend, bool) {
	ranking := r.Ranking()
	if len(ranking) == 0 {
		return nil, false
	}
	return ranking[0], true
}

// Clone returns a deep copy.
func (r *Roster) Clone() *Roster {
	return NewRoster(r.All()...)
}

// MarshalJSON encodes the roster as an ordered array.
func (r *Roster) MarshalJSON() ([]byte, error) {
	friends := r.friends
	if friends == nil {
		friends = []*Friend{}
	}
	return json.Marshal(friends)
}

// UnmarshalJSON decodes an ordered array, dropping entries without an id.
func (r *Roster) UnmarshalJSON(data []byte) error {
	var friends []*Friend
	if err := json.Unmarshal(data, &friends); err != nil {
		return err
	}
	*r = Roster{}
	for _, f := range friends {
		if f == nil || f.ID == "" {
			continue
		}
		_ = r.Add(f)
	}
	return nil
}

// JoinFirstNames renders names the way the selection summary reads:
// "nobody", "Anna", "Anna & Max", "Anna, Max & Lisa".
func JoinFirstNames(friends []*Friend) string {
	names := make([]string, 0, len(friends))
	for _, f := range friends {
		names = append(names, f.FirstName())
	}
	switch len(names) {
	case 0:
		return "nobody"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " & " + names[len(names)-1]
	}
}
