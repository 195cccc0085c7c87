package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/process"
	"github.com/mohitkumar/humanflow/state"
	"github.com/mohitkumar/humanflow/util"
	"go.uber.org/zap"
)

// MAX_AUTOMATIC_HOPS bounds how many gateways one command may pass through.
const MAX_AUTOMATIC_HOPS = 64

// txn gathers the changes one command makes to an execution before they
// are committed together.
type txn struct {
	graph   *process.Graph
	exec    *model.Execution
	now     time.Time
	changed map[string]*model.Pointer
	order   []string
	entries []model.HistoryEntry
}

func newTxn(graph *process.Graph, exec *model.Execution, now time.Time) *txn {
	return &txn{
		graph:   graph,
		exec:    exec,
		now:     now,
		changed: make(map[string]*model.Pointer),
	}
}

func (tx *txn) touch(ptr *model.Pointer) {
	if _, ok := tx.changed[ptr.Id]; !ok {
		tx.order = append(tx.order, ptr.Id)
	}
	tx.changed[ptr.Id] = ptr
}

func (tx *txn) pointers() []*model.Pointer {
	out := make([]*model.Pointer, 0, len(tx.order))
	for _, id := range tx.order {
		out = append(out, tx.changed[id])
	}
	return out
}

// history returns the entries of nodes that ended in this command.
func (tx *txn) history() []model.HistoryEntry {
	for i := range tx.entries {
		tx.entries[i].Execution = model.HistoryExecution{
			Id:          tx.exec.Id,
			Name:        tx.exec.Name,
			Description: tx.exec.Description,
		}
	}
	return tx.entries
}

func (tx *txn) record(ns *model.NodeState, startedAt time.Time) {
	actors := make([]*model.ActorState, 0, ns.Actors.Len())
	for _, actor := range ns.Actors.Values() {
		actors = append(actors, actor.Clone())
	}
	tx.entries = append(tx.entries, model.HistoryEntry{
		StartedAt:  startedAt,
		FinishedAt: tx.now,
		Node:       model.HistoryNode{Id: ns.Id, Kind: ns.Kind, Name: ns.Name},
		Actors:     actors,
		State:      ns.State,
		Comment:    ns.Comment,
	})
}

// nodeState returns the state entry for node, creating it on first visit.
// A revisited node starts over unless a reject left it invalid, in which
// case the inputs that were not rejected keep standing.
func (tx *txn) nodeState(node process.Node) *model.NodeState {
	ns, ok := tx.exec.State.Get(node.GetId())
	if !ok {
		ns = model.NewNodeState(node.GetId(), node.GetKind(), node.GetName())
		tx.exec.State.Set(node.GetId(), ns)
		return ns
	}
	if !(ns.Kind == model.NODE_KIND_ACTION && ns.State == model.STATE_INVALID) {
		ns.Invalidate()
	}
	ns.State = model.STATE_PENDING
	ns.Comment = ""
	return ns
}

// enter moves the execution onto node. Human nodes get a pointer, other
// nodes are passed through at once.
func (tx *txn) enter(node process.Node, hops int) error {
	if node.IsHuman() {
		_, err := tx.openPointer(node)
		return err
	}
	if hops >= MAX_AUTOMATIC_HOPS {
		return api.NewGraphError(api.CODE_GRAPH_GUARD, node.GetId(), "more than %d automatic transitions reaching node %s", MAX_AUTOMATIC_HOPS, node.GetId())
	}
	ns := tx.nodeState(node)
	ns.State = model.STATE_VALID
	tx.record(ns, tx.now)
	return tx.advance(node.GetId(), hops+1)
}

func (tx *txn) advance(nodeId string, hops int) error {
	next, err := tx.graph.Outbound(nodeId, tx.exec)
	if err != nil {
		return err
	}
	for _, n := range next {
		if err := tx.enter(n, hops); err != nil {
			return err
		}
	}
	return nil
}

// openPointer creates the pointer of a human node. A node holds at most one
// live pointer; arriving at a node that already has one changes nothing.
func (tx *txn) openPointer(node process.Node) (*model.Pointer, error) {
	if lp, ok := tx.exec.LivePointerAt(node.GetId()); ok {
		logger.Debug("node already has a live pointer", zap.String("node", node.GetId()), zap.String("pointer", lp.Id))
		if ns, ok := tx.exec.State.Get(node.GetId()); ok && ns.State.IsTerminal() {
			ns.State = model.STATE_ONGOING
		}
		return tx.changed[lp.Id], nil
	}
	def := node.GetDef()
	ns := tx.nodeState(node)
	ptr := &model.Pointer{
		Id:            uuid.New().String(),
		ExecutionId:   tx.exec.Id,
		NodeId:        node.GetId(),
		NodeKind:      node.GetKind(),
		Name:          ns.Name,
		Status:        model.POINTER_ONGOING,
		StartedAt:     tx.now,
		Actors:        append(make([]string, 0, len(def.Actors)), def.Actors...),
		NotifiedUsers: append(make([]string, 0, len(def.Actors)), def.Actors...),
	}
	if node.GetKind() == model.NODE_KIND_VALIDATION {
		idx := state.NewDepIndex(tx.exec.State)
		deps := make([]model.DepLeaf, 0)
		for _, dep := range def.Deps {
			leaves, err := idx.Collect(dep)
			if err != nil {
				return nil, api.NewGraphError(api.CODE_GRAPH_MALFORMED, node.GetId(), "%s", err.Error())
			}
			deps = append(deps, leaves...)
		}
		ptr.Dependencies = deps
	}
	tx.exec.Pointers = append(tx.exec.Pointers, model.LivePointer{Id: ptr.Id, NodeId: ptr.NodeId})
	tx.touch(ptr)
	return ptr, nil
}

// close ends ptr and leaves its node in st.
func (tx *txn) close(ptr *model.Pointer, st model.State) {
	finishedAt := tx.now
	ptr.FinishedAt = &finishedAt
	if st == model.STATE_CANCELLED {
		ptr.Status = model.POINTER_CANCELLED
	} else {
		ptr.Status = model.POINTER_FINISHED
	}
	tx.exec.RemovePointer(ptr.Id)
	if ns, ok := tx.exec.State.Get(ptr.NodeId); ok {
		ns.State = st
		tx.record(ns, ptr.StartedAt)
	}
}

// act records what user submitted on ptr and moves on once the node has
// heard from every actor it needs.
func (tx *txn) act(ptr *model.Pointer, node process.Node, user model.User, forms []*model.FormState) error {
	ns, ok := tx.exec.State.Get(node.GetId())
	if !ok {
		return api.NewGraphError(api.CODE_GRAPH_NOT_FOUND, node.GetId(), "node %s has no state in execution %s", node.GetId(), tx.exec.Id)
	}
	ns.Actors.Set(user.Identifier, model.NewActorState(user, forms))
	ns.State = model.STATE_ONGOING
	if ns.ValidActors() < process.RequiredActors(node.GetDef()) {
		return nil
	}
	tx.close(ptr, model.STATE_VALID)
	return tx.advance(node.GetId(), 0)
}

// review applies a validation node decision. Accepting works like act.
// Rejecting marks the referenced inputs invalid and sends the execution
// back to the nodes that own them, or along the edges when no input is
// named.
func (tx *txn) review(ptr *model.Pointer, node process.Node, cmd model.Command) error {
	if cmd.Response != model.RESPONSE_ACCEPT && cmd.Response != model.RESPONSE_REJECT {
		return api.Invalid("response", "response must be %s or %s", model.RESPONSE_ACCEPT, model.RESPONSE_REJECT)
	}
	leaves := make([]*state.Leaf, 0, len(cmd.Inputs))
	if cmd.Response == model.RESPONSE_REJECT {
		for i, in := range cmd.Inputs {
			leaf, err := state.Resolve(tx.exec.State, in.Ref, state.WRITE, refWhere(i))
			if err != nil {
				return err
			}
			leaves = append(leaves, leaf)
		}
	}

	form := model.NewFormState(model.VALIDATION_FORM_REF)
	form.Inputs.Set("response", decisionInput("response", cmd.Response))
	form.Inputs.Set("comment", decisionInput("comment", cmd.Comment))
	forms := []*model.FormState{form}
	ns, ok := tx.exec.State.Get(node.GetId())
	if !ok {
		return api.NewGraphError(api.CODE_GRAPH_NOT_FOUND, node.GetId(), "node %s has no state in execution %s", node.GetId(), tx.exec.Id)
	}
	if cmd.Comment != "" {
		ns.Comment = cmd.Comment
	}
	if cmd.Response == model.RESPONSE_ACCEPT {
		return tx.act(ptr, node, cmd.User(), forms)
	}

	ns.Actors.Set(cmd.UserIdentifier, model.NewActorState(cmd.User(), forms))
	tx.close(ptr, model.STATE_INVALID)
	if len(leaves) == 0 {
		return tx.advance(node.GetId(), 0)
	}
	owners := make(map[string]bool)
	for _, leaf := range leaves {
		leaf.Input.State = model.STATE_INVALID
		leaf.Form.State = model.STATE_INVALID
		leaf.Actor.State = model.STATE_INVALID
		leaf.Node.State = model.STATE_INVALID
		owners[leaf.Node.Id] = true
	}
	for _, id := range tx.exec.State.Keys() {
		if !owners[id] {
			continue
		}
		owner, err := tx.graph.Node(id)
		if err != nil {
			return err
		}
		if err := tx.enter(owner, 0); err != nil {
			return err
		}
	}
	return nil
}

func decisionInput(name string, value string) *model.InputState {
	return &model.InputState{
		Name:         name,
		Label:        name,
		Type:         input.TYPE_TEXT,
		Value:        value,
		ValueCaption: value,
		State:        model.STATE_VALID,
	}
}

// render fills the execution name and description from the process
// templates.
func (tx *txn) render() {
	p := tx.graph.Process()
	if p.ExecutionName == "" && p.ExecutionDescription == "" {
		return
	}
	doc, err := state.Document(tx.exec)
	if err != nil {
		logger.Error("can not render execution name", zap.String("execution", tx.exec.Id), zap.Error(err))
		return
	}
	if p.ExecutionName != "" {
		tx.exec.Name = util.Interpolate(doc, p.ExecutionName)
	}
	if p.ExecutionDescription != "" {
		tx.exec.Description = util.Interpolate(doc, p.ExecutionDescription)
	}
}

func refWhere(i int) string {
	return fmt.Sprintf("inputs.%d.ref", i)
}

func valueWhere(i int) string {
	return fmt.Sprintf("inputs.%d.value", i)
}
