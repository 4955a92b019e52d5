// Package permmap maps (object class, permission) pairs to information
// flow weights and directions. The analysis engine consumes a Map to
// decide how much information each granted permission can carry and
// which way it moves.
package permmap

import (
	"fmt"
	"sort"

	"github.com/teflow/teflow/internal/policy"
)

// Direction tags which way information flows when a permission is
// exercised by a subject on an object. DirectionUnknown entries never
// contribute to the flow graph.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionRead
	DirectionWrite
	DirectionBoth
)

func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "read"
	case DirectionWrite:
		return "write"
	case DirectionBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Mapping is the weight and direction of one (class, permission) pair.
// Excluded mappings keep their values but stop contributing.
type Mapping struct {
	Weight    int
	Direction Direction
	Excluded  bool
}

// Map is a permission weight table. Weights are 0..10; weight 0 and
// direction unknown both mean "no flow".
type Map struct {
	classes map[string]map[string]*Mapping
}

// New returns an empty Map.
func New() *Map {
	return &Map{classes: map[string]map[string]*Mapping{}}
}

// UnmappedClassError reports a lookup of an object class the map does
// not know.
type UnmappedClassError struct {
	Class string
}

func (e *UnmappedClassError) Error() string {
	return fmt.Sprintf("object class %q is not mapped", e.Class)
}

// UnmappedPermissionError reports a lookup of a permission the map does
// not know within a mapped class.
type UnmappedPermissionError struct {
	Class      string
	Permission string
}

func (e *UnmappedPermissionError) Error() string {
	return fmt.Sprintf("permission %q of object class %q is not mapped", e.Permission, e.Class)
}

func (m *Map) mapping(class, perm string) (*Mapping, error) {
	perms, ok := m.classes[class]
	if !ok {
		return nil, &UnmappedClassError{Class: class}
	}
	entry, ok := perms[perm]
	if !ok {
		return nil, &UnmappedPermissionError{Class: class, Permission: perm}
	}
	return entry, nil
}

// Lookup returns the mapping for a (class, permission) pair.
func (m *Map) Lookup(class, perm string) (Mapping, error) {
	entry, err := m.mapping(class, perm)
	if err != nil {
		return Mapping{}, err
	}
	return *entry, nil
}

// Classes returns the mapped object class names in sorted order.
func (m *Map) Classes() []string {
	names := make([]string, 0, len(m.classes))
	for name := range m.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Permissions returns the mapped permission names of a class in sorted
// order.
func (m *Map) Permissions(class string) ([]string, error) {
	perms, ok := m.classes[class]
	if !ok {
		return nil, &UnmappedClassError{Class: class}
	}
	names := make([]string, 0, len(perms))
	for name := range perms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RuleWeight computes the strongest read and write weights granted by a
// permission set on a class: the maximum weight among contributing
// permissions in each direction. Excluded, zero-weight and
// unknown-direction permissions contribute nothing. Unmapped classes and
// permissions are errors.
func (m *Map) RuleWeight(class string, perms []string) (readWeight, writeWeight int, err error) {
	for _, perm := range perms {
		entry, err := m.mapping(class, perm)
		if err != nil {
			return 0, 0, err
		}
		if entry.Excluded || entry.Weight == 0 {
			continue
		}
		switch entry.Direction {
		case DirectionRead:
			readWeight = max(readWeight, entry.Weight)
		case DirectionWrite:
			writeWeight = max(writeWeight, entry.Weight)
		case DirectionBoth:
			readWeight = max(readWeight, entry.Weight)
			writeWeight = max(writeWeight, entry.Weight)
		}
	}
	return readWeight, writeWeight, nil
}

// ExcludeClass stops every permission of a class from contributing.
func (m *Map) ExcludeClass(class string) error {
	return m.setClassExcluded(class, true)
}

// IncludeClass reverses ExcludeClass.
func (m *Map) IncludeClass(class string) error {
	return m.setClassExcluded(class, false)
}

func (m *Map) setClassExcluded(class string, excluded bool) error {
	perms, ok := m.classes[class]
	if !ok {
		return &UnmappedClassError{Class: class}
	}
	for _, entry := range perms {
		entry.Excluded = excluded
	}
	return nil
}

// ExcludePermission stops one permission from contributing.
func (m *Map) ExcludePermission(class, perm string) error {
	entry, err := m.mapping(class, perm)
	if err != nil {
		return err
	}
	entry.Excluded = true
	return nil
}

// IncludePermission reverses ExcludePermission.
func (m *Map) IncludePermission(class, perm string) error {
	entry, err := m.mapping(class, perm)
	if err != nil {
		return err
	}
	entry.Excluded = false
	return nil
}

// SetWeight overrides the weight of a mapping. Weights are 0..10.
func (m *Map) SetWeight(class, perm string, weight int) error {
	if weight < 0 || weight > 10 {
		return fmt.Errorf("weight %d out of range 0-10", weight)
	}
	entry, err := m.mapping(class, perm)
	if err != nil {
		return err
	}
	entry.Weight = weight
	return nil
}

// SetDirection overrides the direction of a mapping.
func (m *Map) SetDirection(class, perm string, dir Direction) error {
	entry, err := m.mapping(class, perm)
	if err != nil {
		return err
	}
	entry.Direction = dir
	return nil
}

func (m *Map) add(class, perm string, entry Mapping) error {
	if m.classes[class] == nil {
		m.classes[class] = map[string]*Mapping{}
	}
	if _, dup := m.classes[class][perm]; dup {
		return fmt.Errorf("permission %q of class %q mapped twice", perm, class)
	}
	e := entry
	m.classes[class][perm] = &e
	return nil
}

// MapPolicy fills in mappings for every (class, permission) pair the
// policy's rules use but the map does not know, with weight 1 and
// direction unknown. Analyses then treat unmapped permissions as
// carrying no flow instead of failing on lookup.
func (m *Map) MapPolicy(p *policy.Policy) {
	for i := range p.Rules {
		rule := &p.Rules[i]
		for _, perm := range rule.Perms {
			if m.classes[rule.Class] == nil {
				m.classes[rule.Class] = map[string]*Mapping{}
			}
			if _, ok := m.classes[rule.Class][perm]; !ok {
				m.classes[rule.Class][perm] = &Mapping{Weight: 1, Direction: DirectionUnknown}
			}
		}
	}
}
