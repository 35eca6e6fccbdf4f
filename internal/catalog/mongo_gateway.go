package catalog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/electrohogar/catalogo/app/models"
)

// MongoGateway implements Gateway over a MongoDB collection.
type MongoGateway struct {
	client *mongo.Client
	col    *mongo.Collection
}

// NewMongoGateway connects to uri and binds the db/collection pair.
// The caller must eventually call Close.
func NewMongoGateway(ctx context.Context, uri, db, collection string) (*MongoGateway, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("catalog/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("catalog/mongo: ping: %w", err)
	}

	return &MongoGateway{
		client: client,
		col:    client.Database(db).Collection(collection),
	}, nil
}

// Close disconnects the underlying client.
func (g *MongoGateway) Close(ctx context.Context) error {
	return g.client.Disconnect(ctx)
}

func (g *MongoGateway) FetchAll(ctx context.Context) ([]map[string]any, error) {
	cur, err := g.col.Find(ctx, bson.D{})
	if err != nil {
		return nil, &TransportError{Op: "fetchAll", Err: err}
	}
	defer cur.Close(ctx)

	var docs []map[string]any
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, &TransportError{Op: "fetchAll", Err: err}
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, &TransportError{Op: "fetchAll", Err: err}
	}
	return docs, nil
}

func (g *MongoGateway) Create(ctx context.Context, doc map[string]any) (string, error) {
	// The store, not the client, assigns the creation timestamp.
	doc["createdAt"] = time.Now().UTC().Truncate(time.Millisecond)

	res, err := g.col.InsertOne(ctx, bson.M(doc))
	if err != nil {
		delete(doc, "createdAt")
		return "", &TransportError{Op: "create", Err: err}
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

func (g *MongoGateway) Update(ctx context.Context, id string, patch models.Patch) error {
	update := bson.M{"$set": bson.M(patch.Set)}
	if len(patch.Unset) > 0 {
		unset := bson.M{}
		for _, field := range patch.Unset {
			unset[field] = ""
		}
		update["$unset"] = unset
	}

	res, err := g.col.UpdateOne(ctx, idFilter(id), update)
	if err != nil {
		return &TransportError{Op: "update", Err: err}
	}
	if res.MatchedCount == 0 {
		return &TransportError{Op: "update", Err: mongo.ErrNoDocuments}
	}
	return nil
}

func (g *MongoGateway) Delete(ctx context.Context, id string) error {
	res, err := g.col.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return &TransportError{Op: "delete", Err: err}
	}
	if res.DeletedCount == 0 {
		return &TransportError{Op: "delete", Err: mongo.ErrNoDocuments}
	}
	return nil
}

// idFilter matches either a real ObjectID or a plain string _id, since
// seeded and legacy documents use string ids.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": id}
}
