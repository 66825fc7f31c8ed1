package label

import (
	"sort"
	"strings"

	"github.com/vasilvv/decor/internal/graph"
)

// SourceSet is the set of private-origin parameters a value depends on.
// The nil map is the canonical empty set; every operation treats it as such
// and never mutates a received set.
type SourceSet map[string]struct{}

// NewSourceSet builds a set from the given origin names.
func NewSourceSet(names ...string) SourceSet {
	if len(names) == 0 {
		return nil
	}
	s := make(SourceSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Empty reports whether the set has no elements.
func (s SourceSet) Empty() bool { return len(s) == 0 }

// Contains reports membership of one origin.
func (s SourceSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Union returns the union of two sets, sharing the larger input when the
// other is empty.
func (s SourceSet) Union(o SourceSet) SourceSet {
	if len(o) == 0 {
		return s
	}
	if len(s) == 0 {
		return o
	}
	out := make(SourceSet, len(s)+len(o))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range o {
		out[k] = struct{}{}
	}
	return out
}

// SubsetOf reports whether every element of s is named in names.
func (s SourceSet) SubsetOf(names []string) bool {
	if len(s) == 0 {
		return true
	}
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	for k := range s {
		if _, ok := allowed[k]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the elements of s not named in names, sorted.
func (s SourceSet) Missing(names []string) []string {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	var out []string
	for k := range s {
		if _, ok := allowed[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Equal reports set equality.
func (s SourceSet) Equal(o SourceSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// Names returns the elements sorted, for deterministic diagnostics.
func (s SourceSet) Names() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s SourceSet) String() string {
	if len(s) == 0 {
		return "{}"
	}
	return "{" + strings.Join(s.Names(), ",") + "}"
}

// Info is one value's resolved sensitivity: the label and the sources it
// derives from. The two stay coherent: Private exactly when Sources is
// non-empty.
type Info struct {
	Label   graph.Label
	Sources SourceSet
}

// PublicInfo is the bottom element.
var PublicInfo = Info{Label: graph.Public}

// PrivateInfo builds a private Info from origin names.
func PrivateInfo(names ...string) Info {
	return infoFrom(NewSourceSet(names...))
}

func infoFrom(s SourceSet) Info {
	if s.Empty() {
		return PublicInfo
	}
	return Info{Label: graph.Private, Sources: s}
}

// Join returns the least upper bound: labels join, sources union.
func (i Info) Join(o Info) Info {
	return infoFrom(i.Sources.Union(o.Sources))
}

// Equal reports whether two infos coincide.
func (i Info) Equal(o Info) bool {
	return i.Label == o.Label && i.Sources.Equal(o.Sources)
}

func (i Info) String() string {
	if i.Label == graph.Public {
		return "public"
	}
	return "private" + i.Sources.String()
}
