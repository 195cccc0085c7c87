package mongo

import (
	"context"
	"time"

	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DEFAULT_DATABASE string = "humanflow"
const DEFAULT_HISTORY_COLLECTION string = "history"

const callTimeout = 5 * time.Second

var _ persistence.HistoryStorage = new(MongoHistoryStorage)

// MongoHistoryStorage keeps one document per finished node visit.
type MongoHistoryStorage struct {
	coll *mongo.Collection
}

func NewMongoHistoryStorage(client *mongo.Client, dbName, collName string) *MongoHistoryStorage {
	if dbName == "" {
		dbName = DEFAULT_DATABASE
	}
	if collName == "" {
		collName = DEFAULT_HISTORY_COLLECTION
	}
	return &MongoHistoryStorage{
		coll: client.Database(dbName).Collection(collName),
	}
}

// Connect opens a client for uri and checks it answers.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

type historyDoc struct {
	ExecutionId string `bson:"execution_id"`
	Seq         int64  `bson:"seq"`
	model.HistoryEntry `bson:",inline"`
}

func (s *MongoHistoryStorage) Append(ctx context.Context, entries []model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	now := time.Now().UnixNano()
	docs := make([]any, 0, len(entries))
	for i, e := range entries {
		docs = append(docs, historyDoc{
			ExecutionId:  e.Execution.Id,
			Seq:          now + int64(i),
			HistoryEntry: e,
		})
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *MongoHistoryStorage) List(ctx context.Context, executionId string) ([]model.HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"execution_id": executionId}, opts)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer cur.Close(ctx)
	out := make([]model.HistoryEntry, 0)
	for cur.Next(ctx) {
		var doc historyDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.HistoryEntry)
	}
	if err := cur.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return out, nil
}
