package tiling

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind tags a node variant.
type Kind string

const (
	KindLeaf  Kind = "leaf"
	KindSplit Kind = "split"
	KindStack Kind = "stack"
)

// Orientation is the axis a split divides along.
type Orientation string

const (
	// Horizontal lays children out left to right.
	Horizontal Orientation = "horizontal"
	// Vertical lays children out top to bottom.
	Vertical Orientation = "vertical"
)

// Fallback is applied when a window does not fit the layout's capacity.
type Fallback string

const (
	FallbackFloat Fallback = "float"
	FallbackStack Fallback = "stack"
)

// Template is one node of a layout definition's structure.
type Template struct {
	Type        Kind        `yaml:"type" json:"type"`
	Orientation Orientation `yaml:"orientation,omitempty" json:"orientation,omitempty"`
	// Weight is this node's share of its parent split. Zero means 1.
	Weight float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	// Capacity bounds a stack; 0 is unbounded. Leaves always hold one window.
	Capacity int         `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	Children []*Template `yaml:"children,omitempty" json:"children,omitempty"`

	parent *Template
}

func (t *Template) weight() float64 {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

func (t *Template) childIndex(c *Template) int {
	for i, ch := range t.Children {
		if ch == c {
			return i
		}
	}
	return -1
}

// path returns the templates from the root down to t.
func (t *Template) path() []*Template {
	var out []*Template
	for n := t; n != nil; n = n.parent {
		out = append([]*Template{n}, out...)
	}
	return out
}

// slots returns the leaf and stack templates in depth-first order.
func (t *Template) slots() []*Template {
	if t.Type != KindSplit {
		return []*Template{t}
	}
	var out []*Template
	for _, c := range t.Children {
		out = append(out, c.slots()...)
	}
	return out
}

// LayoutDefinition is an immutable tiling template.
type LayoutDefinition struct {
	ID        string    `yaml:"-" json:"id"`
	Fallback  Fallback  `yaml:"no_fallback_behavior" json:"no_fallback_behavior"`
	Structure *Template `yaml:"structure" json:"structure"`
}

// Capacity returns the number of windows the layout holds before the
// fallback applies, or -1 when a stack makes it unbounded.
func (d *LayoutDefinition) Capacity() int {
	total := 0
	for _, s := range d.Structure.slots() {
		switch {
		case s.Type == KindLeaf:
			total++
		case s.Capacity == 0:
			return -1
		default:
			total += s.Capacity
		}
	}
	return total
}

// Validate checks the structure and links template parents. It must be
// called before the definition is used.
func (d *LayoutDefinition) Validate() error {
	switch d.Fallback {
	case "":
		d.Fallback = FallbackFloat
	case FallbackFloat, FallbackStack:
	default:
		return fmt.Errorf("layout %q: invalid no_fallback_behavior %q (use float or stack)", d.ID, d.Fallback)
	}
	if d.Structure == nil {
		return fmt.Errorf("layout %q: structure is required", d.ID)
	}
	if err := validateTemplate(d.Structure, nil); err != nil {
		return fmt.Errorf("layout %q: %w", d.ID, err)
	}
	return nil
}

func validateTemplate(t *Template, parent *Template) error {
	t.parent = parent
	if t.Weight < 0 {
		return errors.New("weight must be >= 0")
	}
	switch t.Type {
	case KindLeaf:
		if len(t.Children) > 0 {
			return errors.New("leaf cannot have children")
		}
	case KindStack:
		if len(t.Children) > 0 {
			return errors.New("stack cannot have children")
		}
		if t.Capacity < 0 {
			return errors.New("stack capacity must be >= 0")
		}
	case KindSplit:
		if t.Orientation != Horizontal && t.Orientation != Vertical {
			return fmt.Errorf("split orientation %q must be horizontal or vertical", t.Orientation)
		}
		if len(t.Children) == 0 {
			return errors.New("split needs at least one child")
		}
		for _, c := range t.Children {
			if c == nil {
				return errors.New("split child is empty")
			}
			if err := validateTemplate(c, t); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown node type %q", t.Type)
	}
	return nil
}

// ParseLayouts decodes a YAML mapping of layout id to definition.
func ParseLayouts(data []byte) (map[string]*LayoutDefinition, error) {
	var raw map[string]*LayoutDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}
	for id, def := range raw {
		if def == nil {
			return nil, fmt.Errorf("layout %q is empty", id)
		}
		def.ID = id
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func leaf(weight float64) *Template {
	return &Template{Type: KindLeaf, Weight: weight}
}

func split(o Orientation, children ...*Template) *Template {
	return &Template{Type: KindSplit, Orientation: o, Children: children}
}

// BuiltinLayouts returns fresh copies of the layouts shipped with panewm.
func BuiltinLayouts() map[string]*LayoutDefinition {
	defs := map[string]*LayoutDefinition{
		"pair": {
			Fallback:  FallbackStack,
			Structure: split(Horizontal, leaf(1), leaf(1)),
		},
		"columns3": {
			Fallback:  FallbackStack,
			Structure: split(Horizontal, leaf(1), leaf(1), leaf(1)),
		},
		"grid4": {
			Fallback: FallbackFloat,
			Structure: split(Vertical,
				split(Horizontal, leaf(1), leaf(1)),
				split(Horizontal, leaf(1), leaf(1)),
			),
		},
		"tall": {
			Fallback: FallbackStack,
			Structure: split(Horizontal,
				leaf(0.6),
				&Template{Type: KindStack, Weight: 0.4},
			),
		},
		"monocle": {
			Fallback:  FallbackStack,
			Structure: &Template{Type: KindStack},
		},
	}
	for id, def := range defs {
		def.ID = id
		if err := def.Validate(); err != nil {
			panic(err)
		}
	}
	return defs
}
