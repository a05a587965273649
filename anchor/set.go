package anchor

import (
	"fmt"
	"sort"

	"github.com/educhainverify/credential-service/interfaces"
)

// Set selects an Anchorer by type.
type Set struct {
	anchors     map[interfaces.AnchorType]interfaces.Anchorer
	defaultType interfaces.AnchorType
}

// NewSet builds a set whose default must be among anchors.
func NewSet(defaultType interfaces.AnchorType, anchors ...interfaces.Anchorer) (*Set, error) {
	s := &Set{
		anchors:     make(map[interfaces.AnchorType]interfaces.Anchorer, len(anchors)),
		defaultType: defaultType,
	}
	for _, a := range anchors {
		s.anchors[a.Type()] = a
	}
	if _, ok := s.anchors[defaultType]; !ok {
		return nil, fmt.Errorf("%w: default anchor %q is not configured", interfaces.ErrUnknownAnchor, defaultType)
	}
	return s, nil
}

// Get returns the anchorer for t, or the default when t is empty.
func (s *Set) Get(t interfaces.AnchorType) (interfaces.Anchorer, error) {
	if t == "" {
		t = s.defaultType
	}
	a, ok := s.anchors[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not configured", interfaces.ErrUnknownAnchor, t)
	}
	return a, nil
}

func (s *Set) Default() interfaces.AnchorType {
	return s.defaultType
}

// Types lists the configured anchor types in name order.
func (s *Set) Types() []interfaces.AnchorType {
	types := make([]interfaces.AnchorType, 0, len(s.anchors))
	for t := range s.anchors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
