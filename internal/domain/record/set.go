package record

import "strings"

// CategorySet is an immutable set of categories backed by a bit mask. It is
// a comparable value: two sets holding the same categories are ==.
type CategorySet uint32

// NewCategorySet builds a set from the given categories. Invalid
// categories are ignored.
func NewCategorySet(categories ...Category) CategorySet {
	var s CategorySet
	for _, c := range categories {
		s = s.With(c)
	}
	return s
}

// With returns a copy of s that also contains c.
func (s CategorySet) With(c Category) CategorySet {
	if !c.Valid() {
		return s
	}
	return s | 1<<c
}

// Union returns the categories present in either set.
func (s CategorySet) Union(other CategorySet) CategorySet {
	return s | other
}

// Has reports whether c is in the set.
func (s CategorySet) Has(c Category) bool {
	return c.Valid() && s&(1<<c) != 0
}

// Len returns the number of categories in the set.
func (s CategorySet) Len() int {
	n := 0
	for c := Profile; c <= Attachments; c++ {
		if s.Has(c) {
			n++
		}
	}
	return n
}

// Slice returns the members in declaration order.
func (s CategorySet) Slice() []Category {
	out := make([]Category, 0, s.Len())
	for c := Profile; c <= Attachments; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s CategorySet) String() string {
	names := make([]string, 0, s.Len())
	for _, c := range s.Slice() {
		names = append(names, c.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
