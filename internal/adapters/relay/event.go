// Package relay implements the event bus over the Nostr relay protocol.
//
// Events are published to every configured relay and a publish resolves on
// the first acknowledgment. Subscriptions are standing queries against all
// relays; delivery is at-least-once and unordered across relays, so each
// subscription carries its own duplicate-suppression cache.
package relay

import (
	"encoding/json"
)

// Event kinds used by the quiz protocol.
const (
	KindQuizDefinition = 35000
	KindGameSession    = 35001
	KindPlayerJoin     = 35002
	KindAnswer         = 35003
	KindScoreUpdate    = 35004
)

// Event is the signed envelope exchanged with relays.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Tag returns the first value of the named tag, or "" when absent.
func (e *Event) Tag(name string) string {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == name {
			return t[1]
		}
	}
	return ""
}

// Filter selects events by kind and indexed tag values, mirroring the relay
// query schema. Tag keys are bare names ("e", "p", "d"); marshaling adds the
// "#" prefix the wire format requires.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Tags    map[string][]string
	Since   int64
	Limit   int
}

// MarshalJSON renders the filter in relay query form.
func (f Filter) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{})
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	for name, values := range f.Tags {
		if len(values) > 0 {
			m["#"+name] = values
		}
	}
	if f.Since > 0 {
		m["since"] = f.Since
	}
	if f.Limit > 0 {
		m["limit"] = f.Limit
	}
	return json.Marshal(m)
}

// UnmarshalJSON parses the relay query form back into a Filter.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Filter{}
	for key, value := range raw {
		switch {
		case key == "ids":
			if err := json.Unmarshal(value, &f.IDs); err != nil {
				return err
			}
		case key == "authors":
			if err := json.Unmarshal(value, &f.Authors); err != nil {
				return err
			}
		case key == "kinds":
			if err := json.Unmarshal(value, &f.Kinds); err != nil {
				return err
			}
		case key == "since":
			if err := json.Unmarshal(value, &f.Since); err != nil {
				return err
			}
		case key == "limit":
			if err := json.Unmarshal(value, &f.Limit); err != nil {
				return err
			}
		case len(key) > 1 && key[0] == '#':
			var values []string
			if err := json.Unmarshal(value, &values); err != nil {
				return err
			}
			if f.Tags == nil {
				f.Tags = make(map[string][]string)
			}
			f.Tags[key[1:]] = values
		}
	}
	return nil
}

// Matches reports whether an event satisfies the filter. Relays filter
// server-side; this is used by tests and as a guard against misbehaving
// relays returning out-of-filter events.
func (f Filter) Matches(e *Event) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if e.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for name, values := range f.Tags {
		if len(values) == 0 {
			continue
		}
		got := e.Tag(name)
		found := false
		for _, v := range values {
			if got == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
