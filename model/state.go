package model

type State string

const STATE_PENDING State = "pending"
const STATE_ONGOING State = "ongoing"
const STATE_VALID State = "valid"
const STATE_INVALID State = "invalid"
const STATE_CANCELLED State = "cancelled"

func (s State) IsTerminal() bool {
	return s == STATE_VALID || s == STATE_INVALID || s == STATE_CANCELLED
}

type NodeKind string

const NODE_KIND_ACTION NodeKind = "action"
const NODE_KIND_VALIDATION NodeKind = "validation"
const NODE_KIND_EXCLUSIVE_GATEWAY NodeKind = "exclusive-gateway"
const NODE_KIND_PARALLEL_GATEWAY NodeKind = "parallel-gateway"
const NODE_KIND_END NodeKind = "end"

const TYPE_NODE string = "node"
const TYPE_ACTOR string = "actor"
const TYPE_FORM string = "form"

type User struct {
	Identifier string `json:"identifier" bson:"identifier"`
	HumanName  string `json:"human_name" bson:"human_name"`
}

type InputState struct {
	Name         string `json:"name" bson:"name"`
	Label        string `json:"label" bson:"label"`
	Type         string `json:"type" bson:"type"`
	Value        any    `json:"value" bson:"value"`
	ValueCaption string `json:"value_caption" bson:"value_caption"`
	State        State  `json:"state" bson:"state"`
	Hidden       bool   `json:"hidden" bson:"hidden"`
}

type FormState struct {
	Type   string                  `json:"_type" bson:"_type"`
	Ref    string                  `json:"ref" bson:"ref"`
	State  State                   `json:"state" bson:"state"`
	Inputs SortedMap[*InputState] `json:"inputs" bson:"inputs"`
}

func NewFormState(ref string) *FormState {
	return &FormState{
		Type:   TYPE_FORM,
		Ref:    ref,
		State:  STATE_VALID,
		Inputs: NewSortedMap[*InputState](),
	}
}

type ActorState struct {
	Type  string       `json:"_type" bson:"_type"`
	User  User         `json:"user" bson:"user"`
	State State        `json:"state" bson:"state"`
	Forms []*FormState `json:"forms" bson:"forms"`
}

func NewActorState(user User, forms []*FormState) *ActorState {
	if forms == nil {
		forms = make([]*FormState, 0)
	}
	return &ActorState{
		Type:  TYPE_ACTOR,
		User:  user,
		State: STATE_VALID,
		Forms: forms,
	}
}

type NodeState struct {
	Type    string                  `json:"_type" bson:"_type"`
	Id      string                  `json:"id" bson:"id"`
	Kind    NodeKind                `json:"type" bson:"type"`
	Name    string                  `json:"name" bson:"name"`
	State   State                   `json:"state" bson:"state"`
	Comment string                  `json:"comment" bson:"comment"`
	Actors  SortedMap[*ActorState] `json:"actors" bson:"actors"`
}

func NewNodeState(id string, kind NodeKind, name string) *NodeState {
	return &NodeState{
		Type:   TYPE_NODE,
		Id:     id,
		Kind:   kind,
		Name:   name,
		State:  STATE_PENDING,
		Actors: NewSortedMap[*ActorState](),
	}
}

// ValidActors counts the actors whose submission currently stands.
func (n *NodeState) ValidActors() int {
	count := 0
	for _, actor := range n.Actors.Values() {
		if actor.State == STATE_VALID {
			count++
		}
	}
	return count
}

// Invalidate marks the node and everything recorded under it invalid.
func (n *NodeState) Invalidate() {
	n.State = STATE_INVALID
	for _, actor := range n.Actors.Values() {
		actor.Invalidate()
	}
}

func (a *ActorState) Invalidate() {
	a.State = STATE_INVALID
	for _, form := range a.Forms {
		form.Invalidate()
	}
}

func (f *FormState) Invalidate() {
	f.State = STATE_INVALID
	for _, in := range f.Inputs.Values() {
		in.State = STATE_INVALID
	}
}

// Clone copies the actor down to its inputs, so later changes to the
// execution state do not reach the copy.
func (a *ActorState) Clone() *ActorState {
	out := *a
	out.Forms = make([]*FormState, 0, len(a.Forms))
	for _, form := range a.Forms {
		out.Forms = append(out.Forms, form.Clone())
	}
	return &out
}

func (f *FormState) Clone() *FormState {
	out := *f
	out.Inputs = NewSortedMap[*InputState]()
	for _, name := range f.Inputs.Keys() {
		in, _ := f.Inputs.Get(name)
		copied := *in
		out.Inputs.Set(name, &copied)
	}
	return &out
}

// StateTree maps node ids to their recorded state, in visiting order.
type StateTree = SortedMap[*NodeState]

func NewStateTree() StateTree {
	return NewSortedMap[*NodeState]()
}
