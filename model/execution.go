package model

import "time"

type ExecutionStatus string

const EXECUTION_ONGOING ExecutionStatus = "ongoing"
const EXECUTION_FINISHED ExecutionStatus = "finished"
const EXECUTION_CANCELLED ExecutionStatus = "cancelled"

type LivePointer struct {
	Id     string `json:"id"`
	NodeId string `json:"node_id"`
}

// Execution runs on the process version it was started on.
type Execution struct {
	Id             string          `json:"id"`
	ProcessName    string          `json:"process_name"`
	ProcessVersion string          `json:"process_version"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Status         ExecutionStatus `json:"status"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at"`
	State          StateTree       `json:"state"`
	Pointers       []LivePointer   `json:"pointers"`
	Version        int64           `json:"version"`
}

func (e *Execution) LivePointerAt(nodeId string) (LivePointer, bool) {
	for _, p := range e.Pointers {
		if p.NodeId == nodeId {
			return p, true
		}
	}
	return LivePointer{}, false
}

func (e *Execution) IsLive(pointerId string) bool {
	for _, p := range e.Pointers {
		if p.Id == pointerId {
			return true
		}
	}
	return false
}

func (e *Execution) RemovePointer(pointerId string) {
	live := make([]LivePointer, 0, len(e.Pointers))
	for _, p := range e.Pointers {
		if p.Id != pointerId {
			live = append(live, p)
		}
	}
	e.Pointers = live
}

type PointerStatus string

const POINTER_ONGOING PointerStatus = "ongoing"
const POINTER_FINISHED PointerStatus = "finished"
const POINTER_CANCELLED PointerStatus = "cancelled"

type Pointer struct {
	Id            string        `json:"id"`
	ExecutionId   string        `json:"execution_id"`
	NodeId        string        `json:"node_id"`
	NodeKind      NodeKind      `json:"node_type"`
	Name          string        `json:"name"`
	Status        PointerStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at"`
	Actors        []string      `json:"actors"`
	NotifiedUsers []string      `json:"notified_users"`
	Dependencies  []DepLeaf     `json:"dependencies,omitempty"`
}

// DepLeaf is one valid input found by a validation node's dependency scan.
type DepLeaf struct {
	Dep          string `json:"dep"`
	Ref          string `json:"ref"`
	NodeId       string `json:"node_id"`
	Actor        string `json:"actor"`
	FormRef      string `json:"form_ref"`
	FormIndex    int    `json:"form_index"`
	Input        string `json:"input"`
	Value        any    `json:"value"`
	ValueCaption string `json:"value_caption"`
}
