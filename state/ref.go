package state

import (
	"fmt"
	"strconv"
	"strings"
)

const REF_SEPARATOR string = "."
const FORM_SEPARATOR string = ":"

// FormSegment addresses a form of an actor by position, by ref, or both.
type FormSegment struct {
	Index int
	Ref   string
}

func (f FormSegment) HasIndex() bool {
	return f.Index >= 0
}

func (f FormSegment) String() string {
	if !f.HasIndex() {
		return f.Ref
	}
	if f.Ref == "" {
		return strconv.Itoa(f.Index)
	}
	return fmt.Sprintf("%d%s%s", f.Index, FORM_SEPARATOR, f.Ref)
}

// Path is a parsed ref: node[.actor].form.input
type Path struct {
	Node     string
	Actor    string
	HasActor bool
	Form     FormSegment
	Input    string
}

func (p Path) String() string {
	parts := []string{p.Node}
	if p.HasActor {
		parts = append(parts, p.Actor)
	}
	parts = append(parts, p.Form.String(), p.Input)
	return strings.Join(parts, REF_SEPARATOR)
}

// ParseRef splits a ref into its typed segments. Only the shape is checked
// here; whether the segments name something is up to Resolve.
//
// Node ids, form refs and input names never contain the separator, so any
// segments between the node and the form belong to the actor identifier.
func ParseRef(ref string) (Path, error) {
	segments := strings.Split(ref, REF_SEPARATOR)
	for i, s := range segments {
		if s == "" {
			return Path{}, fmt.Errorf("ref %s has an empty segment at %d", ref, i)
		}
	}
	n := len(segments)
	if n < 3 {
		return Path{}, fmt.Errorf("ref %s must have at least 3 segments, got %d", ref, n)
	}
	p := Path{Node: segments[0], Input: segments[n-1], Form: parseFormSegment(segments[n-2])}
	if n > 3 {
		p.Actor = strings.Join(segments[1:n-2], REF_SEPARATOR)
		p.HasActor = true
	}
	return p, nil
}

func parseFormSegment(s string) FormSegment {
	head, tail, found := strings.Cut(s, FORM_SEPARATOR)
	if idx, ok := parseIndex(head); ok {
		if found {
			return FormSegment{Index: idx, Ref: tail}
		}
		return FormSegment{Index: idx}
	}
	return FormSegment{Index: -1, Ref: s}
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return idx, true
}
