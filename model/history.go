package model

import "time"

type HistoryExecution struct {
	Id          string `json:"id" bson:"id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
}

type HistoryNode struct {
	Id   string   `json:"id" bson:"id"`
	Kind NodeKind `json:"type" bson:"type"`
	Name string   `json:"name" bson:"name"`
}

type HistoryEntry struct {
	StartedAt  time.Time        `json:"started_at" bson:"started_at"`
	FinishedAt time.Time        `json:"finished_at" bson:"finished_at"`
	Execution  HistoryExecution `json:"execution" bson:"execution"`
	Node       HistoryNode      `json:"node" bson:"node"`
	Actors     []*ActorState    `json:"actors" bson:"actors"`
	State      State            `json:"state" bson:"state"`
	Comment    string           `json:"comment,omitempty" bson:"comment,omitempty"`
}
