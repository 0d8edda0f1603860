package target

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/storepulse/storepulse/internal/table"
)

const (
	stagingSuffix = "__staging"
	insertBatch   = 1000
)

// MongoSink publishes tables to MongoDB, one document per row.
type MongoSink struct {
	client   *mongo.Client
	database string
}

// NewMongoSink creates a new MongoSink connected to the given MongoDB instance.
func NewMongoSink(ctx context.Context, connectionString, database string) (*MongoSink, error) {
	opts := options.Client().ApplyURI(connectionString)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	return &MongoSink{client: client, database: database}, nil
}

func (m *MongoSink) Name() string { return "mongodb" }

// ReplaceTable loads the rows into a staging collection and renames it
// over the destination.
func (m *MongoSink) ReplaceTable(ctx context.Context, name string, t *table.Table) (int64, error) {
	db := m.client.Database(m.database)
	staging := name + stagingSuffix

	if err := db.Collection(staging).Drop(ctx); err != nil {
		return 0, fmt.Errorf("dropping collection %s: %w", staging, err)
	}
	if err := db.CreateCollection(ctx, staging); err != nil {
		return 0, fmt.Errorf("creating collection %s: %w", staging, err)
	}

	coll := db.Collection(staging)
	var inserted int64
	for start := 0; start < t.Len(); start += insertBatch {
		end := min(start+insertBatch, t.Len())
		docs := make([]any, 0, end-start)
		for i := start; i < end; i++ {
			docs = append(docs, rowDocument(t, i))
		}
		res, err := coll.InsertMany(ctx, docs)
		if err != nil {
			return inserted, fmt.Errorf("inserting into %s: %w", staging, err)
		}
		inserted += int64(len(res.InsertedIDs))
	}

	err := m.client.Database("admin").RunCommand(ctx, bson.D{
		{Key: "renameCollection", Value: m.database + "." + staging},
		{Key: "to", Value: m.database + "." + name},
		{Key: "dropTarget", Value: true},
	}).Err()
	if err != nil {
		return inserted, fmt.Errorf("renaming %s to %s: %w", staging, name, err)
	}
	return inserted, nil
}

func rowDocument(t *table.Table, i int) bson.D {
	doc := make(bson.D, 0, len(t.Columns))
	for j, c := range t.Columns {
		doc = append(doc, bson.E{Key: c, Value: nullable(t.Rows[i][j])})
	}
	return doc
}

// Close disconnects from MongoDB.
func (m *MongoSink) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
