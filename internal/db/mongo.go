package eggs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	model "github.com/tohatch/eggchain/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoSnapshot struct {
	mgo  *mongo.Client
	coll *mongo.Collection
}

// снапшот хранится одним документом; ключи мап - int64,
// поэтому тело лежит как JSON-строка
type snapshotDoc struct {
	ID      string `bson:"_id"`
	Version int    `bson:"version"`
	Data    string `bson:"data"`
}

const snapshotDocID = "state"

func NewMongoSnapshot() (*MongoSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mng := os.Getenv("EGGCHAIN_MONGO")
	if mng == "" {
		return nil, fmt.Errorf("env EGGCHAIN_MONGO is not set")
	}

	options := options.Client().ApplyURI("mongodb://" + mng)
	client, err := mongo.Connect(ctx, options)
	if err != nil {
		return nil, err
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, err
	}
	db := client.Database("eggchainDB")
	coll := db.Collection("snapshots")

	return &MongoSnapshot{client, coll}, nil
}

func (m *MongoSnapshot) Load(ctx context.Context) (*model.Snapshot, error) {
	doc := &snapshotDoc{}
	err := m.coll.FindOne(ctx, bson.M{"_id": snapshotDocID}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.NewSnapshot(), nil
	}
	if err != nil {
		return nil, err
	}

	snap := model.NewSnapshot()
	if err := json.Unmarshal([]byte(doc.Data), snap); err != nil {
		return nil, err
	}
	normalize(snap)
	return snap, nil
}

func (m *MongoSnapshot) Save(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	doc := &snapshotDoc{ID: snapshotDocID, Version: snap.Version, Data: string(data)}
	opts := options.Replace().SetUpsert(true)
	_, err = m.coll.ReplaceOne(ctx, bson.M{"_id": snapshotDocID}, doc, opts)
	return err
}
