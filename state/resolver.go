package state

import (
	"strconv"

	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/model"
)

type Mode int

const READ Mode = 0
const WRITE Mode = 1

// Leaf is one input of the state tree together with everything above it.
type Leaf struct {
	Node          *model.NodeState
	Actor         *model.ActorState
	Form          *model.FormState
	Input         *model.InputState
	ActorId       string
	FormIndex     int
	InputName     string
	implicitActor bool
}

// Canonical is the ref that names this leaf. The actor segment is left out
// when the node has a single actor.
func (l *Leaf) Canonical() string {
	p := Path{
		Node:     l.Node.Id,
		Actor:    l.ActorId,
		HasActor: !l.implicitActor,
		Form:     FormSegment{Index: l.FormIndex, Ref: l.Form.Ref},
		Input:    l.InputName,
	}
	return p.String()
}

// Valid tells whether the leaf and all its ancestors are valid.
func (l *Leaf) Valid() bool {
	return l.Node.State == model.STATE_VALID &&
		l.Actor.State == model.STATE_VALID &&
		l.Form.State == model.STATE_VALID &&
		l.Input.State == model.STATE_VALID
}

// Resolve finds the single leaf named by ref. where is reported on failure.
// WRITE mode only targets action nodes.
func Resolve(tree model.StateTree, ref string, mode Mode, where string) (*Leaf, error) {
	path, err := ParseRef(ref)
	if err != nil {
		return nil, api.NewRefResolutionError(ref, where, "%s", err.Error())
	}
	return ResolvePath(tree, path, ref, mode, where)
}

func ResolvePath(tree model.StateTree, path Path, ref string, mode Mode, where string) (*Leaf, error) {
	node, ok := tree.Get(path.Node)
	if !ok {
		return nil, api.NewRefResolutionError(ref, where, "node %s not found", path.Node)
	}
	if mode == WRITE && node.Kind != model.NODE_KIND_ACTION {
		return nil, api.NewRefResolutionError(ref, where, "node %s is not an action node", path.Node)
	}

	leaf := &Leaf{Node: node}
	switch node.Actors.Len() {
	case 0:
		return nil, api.NewRefResolutionError(ref, where, "node %s has no actors", path.Node)
	case 1:
		actorId, actor, _ := node.Actors.At(0)
		if path.HasActor && path.Actor != actorId {
			return nil, api.NewRefResolutionError(ref, where, "actor %s not found in node %s", path.Actor, path.Node)
		}
		leaf.ActorId = actorId
		leaf.Actor = actor
		leaf.implicitActor = true
	default:
		if !path.HasActor {
			return nil, api.NewRefResolutionError(ref, where, "node %s has several actors, ref must name one", path.Node)
		}
		actor, ok := node.Actors.Get(path.Actor)
		if !ok {
			return nil, api.NewRefResolutionError(ref, where, "actor %s not found in node %s", path.Actor, path.Node)
		}
		leaf.ActorId = path.Actor
		leaf.Actor = actor
	}

	idx, err := resolveForm(leaf.Actor, path.Form, ref, where)
	if err != nil {
		return nil, err
	}
	leaf.FormIndex = idx
	leaf.Form = leaf.Actor.Forms[idx]

	in, ok := leaf.Form.Inputs.Get(path.Input)
	if !ok {
		return nil, api.NewRefResolutionError(ref, where, "input %s not found in form %s", path.Input, leaf.Form.Ref)
	}
	leaf.Input = in
	leaf.InputName = path.Input
	return leaf, nil
}

func resolveForm(actor *model.ActorState, seg FormSegment, ref string, where string) (int, error) {
	if seg.HasIndex() {
		if seg.Index >= len(actor.Forms) {
			return 0, api.NewRefResolutionError(ref, where, "form %s not found", strconv.Itoa(seg.Index))
		}
		if seg.Ref != "" && actor.Forms[seg.Index].Ref != seg.Ref {
			return 0, api.NewRefResolutionError(ref, where, "form %d is not %s", seg.Index, seg.Ref)
		}
		return seg.Index, nil
	}
	found := -1
	for i, f := range actor.Forms {
		if f.Ref != seg.Ref {
			continue
		}
		if found >= 0 {
			return 0, api.NewRefResolutionError(ref, where, "More than one form with ref %s", seg.Ref)
		}
		found = i
	}
	if found < 0 {
		return 0, api.NewRefResolutionError(ref, where, "form %s not found", seg.Ref)
	}
	return found, nil
}
