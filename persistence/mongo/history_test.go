package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/humanflow/model"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestHistoryDocEncoding(t *testing.T) {
	form := model.NewFormState("auth-form")
	form.Inputs.Set("secret", &model.InputState{Name: "secret", Value: "123456", State: model.STATE_VALID})
	entry := model.HistoryEntry{
		StartedAt:  time.Date(2018, 5, 10, 17, 4, 44, 0, time.UTC),
		FinishedAt: time.Date(2018, 5, 10, 17, 5, 44, 0, time.UTC),
		Execution:  model.HistoryExecution{Id: "e1", Name: "Simple"},
		Node:       model.HistoryNode{Id: "start", Kind: model.NODE_KIND_ACTION},
		Actors:     []*model.ActorState{model.NewActorState(model.User{Identifier: "juan", HumanName: "Juan"}, []*model.FormState{form})},
		State:      model.STATE_VALID,
	}
	data, err := bson.Marshal(historyDoc{ExecutionId: "e1", Seq: 1, HistoryEntry: entry})
	require.NoError(t, err)

	var decoded historyDoc
	require.NoError(t, bson.Unmarshal(data, &decoded))
	require.Equal(t, "e1", decoded.ExecutionId)
	require.Equal(t, "start", decoded.Node.Id)
	require.Equal(t, "juan", decoded.Actors[0].User.Identifier)
	in, ok := decoded.Actors[0].Forms[0].Inputs.Get("secret")
	require.True(t, ok)
	require.Equal(t, "123456", in.Value)

	raw := bson.Raw(data)
	require.Equal(t, "start", raw.Lookup("node", "id").StringValue())
}

// TestHistoryStorage runs against a live server named by HUMANFLOW_MONGO_URI.
func TestHistoryStorage(t *testing.T) {
	uri := os.Getenv("HUMANFLOW_MONGO_URI")
	if uri == "" {
		t.Skip("HUMANFLOW_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	storage := NewMongoHistoryStorage(client, "humanflow_test", "history_"+uuid.NewString())
	defer storage.coll.Drop(ctx)

	require.NoError(t, storage.Append(ctx, []model.HistoryEntry{
		{Execution: model.HistoryExecution{Id: "e1"}, Node: model.HistoryNode{Id: "a"}},
		{Execution: model.HistoryExecution{Id: "e1"}, Node: model.HistoryNode{Id: "b"}},
		{Execution: model.HistoryExecution{Id: "e2"}, Node: model.HistoryNode{Id: "a"}},
	}))
	got, err := storage.List(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "b", got[1].Node.Id)
}
