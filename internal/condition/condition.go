package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Leaf is a single condition that can be checked against facts of type F.
type Leaf[F any] interface {
	IsMet(facts F) bool
}

// Kind is the node type of a Collection.
type Kind int

const (
	KindLeaf Kind = iota
	KindAll
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindAll:
		return "all"
	case KindAny:
		return "any"
	default:
		return "leaf"
	}
}

// Collection is a boolean tree over leaf conditions of type L.
//
// In JSON a node is either a bare leaf object or {"all": [...]} / {"any": [...]}.
// A nil *Collection stands for a condition the suite did not declare and is never met.
type Collection[F any, L Leaf[F]] struct {
	kind     Kind
	children []Collection[F, L]
	leaf     L
}

// All builds a node that is met when every child is met. All() is always met.
func All[F any, L Leaf[F]](children ...Collection[F, L]) Collection[F, L] {
	return Collection[F, L]{kind: KindAll, children: children}
}

// Any builds a node that is met when at least one child is met. Any() is never met.
func Any[F any, L Leaf[F]](children ...Collection[F, L]) Collection[F, L] {
	return Collection[F, L]{kind: KindAny, children: children}
}

// Of wraps a single leaf.
func Of[F any, L Leaf[F]](leaf L) Collection[F, L] {
	return Collection[F, L]{kind: KindLeaf, leaf: leaf}
}

// Kind reports the node type.
func (c *Collection[F, L]) Kind() Kind {
	return c.kind
}

// IsMet evaluates the tree against facts.
func (c *Collection[F, L]) IsMet(facts F) bool {
	if c == nil {
		return false
	}
	switch c.kind {
	case KindAll:
		for i := range c.children {
			if !c.children[i].IsMet(facts) {
				return false
			}
		}
		return true
	case KindAny:
		for i := range c.children {
			if c.children[i].IsMet(facts) {
				return true
			}
		}
		return false
	default:
		return c.leaf.IsMet(facts)
	}
}

// MarshalJSON implements json.Marshaler.
func (c Collection[F, L]) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindAll, KindAny:
		children := c.children
		if children == nil {
			children = []Collection[F, L]{}
		}
		return json.Marshal(map[string][]Collection[F, L]{c.kind.String(): children})
	default:
		return json.Marshal(c.leaf)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Leaves are decoded strictly.
func (c *Collection[F, L]) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("condition must be an object: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("condition must be an object, got null")
	}

	if len(fields) != 1 {
		return c.unmarshalLeaf(data)
	}

	kind := KindLeaf
	var raw json.RawMessage
	if r, ok := fields["all"]; ok {
		kind, raw = KindAll, r
	} else if r, ok := fields["any"]; ok {
		kind, raw = KindAny, r
	}
	if kind == KindLeaf {
		return c.unmarshalLeaf(data)
	}

	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%q must be a list, got null", kind)
	}
	var children []Collection[F, L]
	if err := json.Unmarshal(raw, &children); err != nil {
		return fmt.Errorf("%q: %w", kind, err)
	}
	*c = Collection[F, L]{kind: kind, children: children}
	return nil
}

func (c *Collection[F, L]) unmarshalLeaf(data []byte) error {
	var leaf L
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&leaf); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	*c = Collection[F, L]{kind: KindLeaf, leaf: leaf}
	return nil
}
