package core

import (
	"encoding/json"
	"fmt"
)

// Category classifies an event by novelty.
type Category int

const (
	// Chaos is low-novelty routine noise.
	Chaos Category = iota
	// Foundation is medium-novelty building-block information.
	Foundation
	// Glow is high-novelty breakthrough material.
	Glow
)

// String returns the lowercase wire name.
func (c Category) String() string {
	switch c {
	case Chaos:
		return "chaos"
	case Foundation:
		return "foundation"
	case Glow:
		return "glow"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// MarshalJSON encodes the category as its string name.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a category from its string name.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory converts a wire name back to a Category.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "chaos":
		return Chaos, nil
	case "foundation":
		return Foundation, nil
	case "glow":
		return Glow, nil
	default:
		return Chaos, fmt.Errorf("unknown category %q", s)
	}
}
