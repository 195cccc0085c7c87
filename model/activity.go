package model

import "strings"

const ACTIVITY_SEPARATOR string = ":"

// Activity records that a user acted on a node of an execution.
type Activity struct {
	Id          string `json:"id"`
	Ref         string `json:"ref"`
	ExecutionId string `json:"execution_id"`
	NodeId      string `json:"node_id"`
	User        User   `json:"user"`
}

func ActivityId(executionId string, nodeId string, user string) string {
	return strings.Join([]string{executionId, nodeId, user}, ACTIVITY_SEPARATOR)
}

// Activities lists every user that acted on a node of e, in visiting order.
func (e *Execution) Activities() []Activity {
	out := make([]Activity, 0)
	for _, ns := range e.State.Values() {
		for _, actor := range ns.Actors.Values() {
			out = append(out, Activity{
				Id:          ActivityId(e.Id, ns.Id, actor.User.Identifier),
				Ref:         "#" + ns.Id,
				ExecutionId: e.Id,
				NodeId:      ns.Id,
				User:        actor.User,
			})
		}
	}
	return out
}

// IsTaskOf tells whether user is expected to act on the pointer.
func (p *Pointer) IsTaskOf(user string) bool {
	if p.Status != POINTER_ONGOING {
		return false
	}
	for _, actor := range p.Actors {
		if actor == user {
			return true
		}
	}
	return false
}
