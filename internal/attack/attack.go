// Package attack provides the ATT&CK taxonomy index used to enrich detections
// with technique display names, tactics and threat groups.
package attack

import (
	"slices"
	"sort"
	"strings"
)

// Lookup resolves technique identifiers. Unknown identifiers yield empty
// results, never an error.
type Lookup interface {
	Tactics(id string) []string
	Groups(id string) []string
	DisplayName(id string) string
}

// Technique is one entry of the taxonomy dataset.
type Technique struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Tactics []string `json:"tactics" yaml:"tactics"`
	Groups  []string `json:"groups" yaml:"groups"`
}

// Index is an immutable technique index. It is safe for concurrent reads.
type Index struct {
	techniques map[string]Technique
}

// NewIndex builds an index from techniques. Tactic and group lists keep their
// declared order with duplicates removed. Entries repeating an id are merged
// into the first one.
func NewIndex(techniques []Technique) *Index {
	idx := &Index{techniques: make(map[string]Technique, len(techniques))}
	for _, t := range techniques {
		id := normalizeID(t.ID)
		if id == "" {
			continue
		}
		existing, ok := idx.techniques[id]
		if !ok {
			existing = Technique{ID: id, Name: strings.TrimSpace(t.Name)}
		}
		if existing.Name == "" {
			existing.Name = strings.TrimSpace(t.Name)
		}
		existing.Tactics = AppendUnique(existing.Tactics, t.Tactics...)
		existing.Groups = AppendUnique(existing.Groups, t.Groups...)
		idx.techniques[id] = existing
	}
	return idx
}

// Empty returns an index with no techniques.
func Empty() *Index {
	return &Index{techniques: map[string]Technique{}}
}

// Len returns the number of techniques in the index.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.techniques)
}

// Technique returns a copy of the entry for id.
func (ix *Index) Technique(id string) (Technique, bool) {
	if ix == nil {
		return Technique{}, false
	}
	t, ok := ix.techniques[normalizeID(id)]
	if !ok {
		return Technique{}, false
	}
	t.Tactics = slices.Clone(t.Tactics)
	t.Groups = slices.Clone(t.Groups)
	return t, true
}

// IDs returns every technique id in sorted order.
func (ix *Index) IDs() []string {
	if ix == nil {
		return nil
	}
	ids := make([]string, 0, len(ix.techniques))
	for id := range ix.techniques {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tactics returns the tactics of technique id in dataset order.
func (ix *Index) Tactics(id string) []string {
	t, _ := ix.Technique(id)
	return t.Tactics
}

// Groups returns the threat groups using technique id in dataset order.
func (ix *Index) Groups(id string) []string {
	t, _ := ix.Technique(id)
	return t.Groups
}

// DisplayName returns the technique name, or "" for unknown ids.
func (ix *Index) DisplayName(id string) string {
	t, _ := ix.Technique(id)
	return t.Name
}

// AppendUnique appends the values of add not already present in dst,
// preserving first-seen order. Empty strings are dropped.
func AppendUnique(dst []string, add ...string) []string {
	for _, v := range add {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
