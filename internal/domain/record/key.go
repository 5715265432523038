package record

import "strings"

// Key identifies one cache entry. It is a comparable value: two keys are
// equal iff subject, category and qualifier are equal, so Key is used
// directly as a map key.
type Key struct {
	Subject   SubjectID
	Category  Category
	Qualifier string
}

// KeyFor builds a key. At most one qualifier is used; extra values are
// joined with "&" so callers cannot produce two spellings of one variant.
func KeyFor(subject SubjectID, category Category, qualifier ...string) Key {
	return Key{
		Subject:   subject,
		Category:  category,
		Qualifier: strings.Join(qualifier, "&"),
	}
}

// String renders subject/category[/qualifier].
func (k Key) String() string {
	s := k.Subject.String() + "/" + k.Category.String()
	if k.Qualifier != "" {
		s += "/" + k.Qualifier
	}
	return s
}

// Namespace owns the canonical qualifier of every category, so the live
// load and the prefetcher always build the same key for a category.
type Namespace struct {
	qualifiers map[Category]string
}

// DefaultQualifiers mirrors the row limits the record screen requests.
var DefaultQualifiers = map[Category]string{
	SoapRecords:  "limit=10",
	Measurements: "limit=all",
}

// NewNamespace returns a namespace with the given qualifier table. A nil
// table means DefaultQualifiers.
func NewNamespace(qualifiers map[Category]string) *Namespace {
	if qualifiers == nil {
		qualifiers = DefaultQualifiers
	}
	copied := make(map[Category]string, len(qualifiers))
	for c, q := range qualifiers {
		copied[c] = q
	}
	return &Namespace{qualifiers: copied}
}

// ViewKey returns the canonical key of category for subject.
func (n *Namespace) ViewKey(subject SubjectID, category Category) Key {
	if q, ok := n.qualifiers[category]; ok {
		return KeyFor(subject, category, q)
	}
	return KeyFor(subject, category)
}
