package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists the catalog tree in MongoDB. Each top-level path
// segment ("colleges", "users") is one document in the trees collection, so
// any multi-path update confined to a single root is document-atomic; updates
// spanning roots run inside a transaction.
//
// Subscribe is backed by change streams, which require a replica set (Atlas
// clusters qualify).
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() int64
}

type treeDoc struct {
	ID   string `bson:"_id"`
	Data bson.M `bson:"data"`
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   db.Collection("trees"),
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// fieldFor maps path segments to the dotted field path inside the root's
// document. The root segment itself maps to the whole data field.
func fieldFor(segs []string) string {
	if len(segs) == 1 {
		return "data"
	}
	return "data." + strings.Join(segs[1:], ".")
}

func (s *MongoStore) Get(ctx context.Context, path string) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}

	opts := options.FindOne().SetProjection(bson.M{fieldFor(segs): 1})

	var doc treeDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": segs[0]}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{Path: path}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cur any = doc.Data
	for _, seg := range segs[1:] {
		node, ok := cur.(bson.M)
		if !ok {
			return Snapshot{Path: path}, nil
		}
		cur, ok = node[seg]
		if !ok {
			return Snapshot{Path: path}, nil
		}
	}
	return Snapshot{Path: path, Value: fromBSON(cur)}, nil
}

func (s *MongoStore) Set(ctx context.Context, path string, value any) error {
	if value == nil {
		return s.Remove(ctx, path)
	}
	return s.Update(ctx, map[string]any{path: value})
}

func (s *MongoStore) Update(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	type rootOps struct {
		set   bson.M
		unset bson.M
	}

	now := s.now()
	perRoot := make(map[string]*rootOps)
	for path, value := range values {
		segs, err := splitPath(path)
		if err != nil {
			return err
		}
		ops := perRoot[segs[0]]
		if ops == nil {
			ops = &rootOps{set: bson.M{}, unset: bson.M{}}
			perRoot[segs[0]] = ops
		}
		if value == nil {
			ops.unset[fieldFor(segs)] = ""
		} else {
			ops.set[fieldFor(segs)] = resolveTimestamps(value, now)
		}
	}

	apply := func(ctx context.Context, root string, ops *rootOps) error {
		update := bson.M{}
		if len(ops.set) > 0 {
			update["$set"] = ops.set
		}
		if len(ops.unset) > 0 {
			update["$unset"] = ops.unset
		}
		_, err := s.coll.UpdateOne(ctx, bson.M{"_id": root}, update, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to update tree root %s: %w", root, err)
		}
		return nil
	}

	// A single root means a single document, which Mongo updates atomically
	// on its own. Cross-root updates need a transaction.
	if len(perRoot) == 1 {
		for root, ops := range perRoot {
			return apply(ctx, root, ops)
		}
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session for multi-path update: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for root, ops := range perRoot {
			if err := apply(sc, root, ops); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("multi-path update failed: %w", err)
	}
	return nil
}

func (s *MongoStore) Remove(ctx context.Context, path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	_, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": segs[0]},
		bson.M{"$unset": bson.M{fieldFor(segs): ""}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func (s *MongoStore) Subscribe(_ context.Context, path string) (*Subscription, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	// Subscription lifetime is governed by Close, not by the caller's
	// request context.
	ctx, cancel := context.WithCancel(context.Background())

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": segs[0]}}},
	}
	stream, err := s.coll.Watch(ctx, pipeline)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open change stream for %s: %w", path, err)
	}

	sub := newSubscription(path, 16, cancel)
	go s.pump(ctx, stream, sub)
	return sub, nil
}

func (s *MongoStore) pump(ctx context.Context, stream *mongo.ChangeStream, sub *Subscription) {
	defer close(sub.ch)
	defer stream.Close(context.Background())

	snap, err := s.Get(ctx, sub.path)
	if err == nil {
		sub.deliver(snap)
	} else if ctx.Err() == nil {
		log.Printf("[MongoStore] initial snapshot read failed for %s: %v", sub.path, err)
	}

	for stream.Next(ctx) {
		snap, err := s.Get(ctx, sub.path)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[MongoStore] snapshot re-read failed for %s: %v", sub.path, err)
			continue
		}
		sub.deliver(snap)
	}
}

// fromBSON rewrites driver types into the plain map/slice/scalar shapes the
// rest of the system works with.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			out[k] = fromBSON(elem)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, elem := range t {
			out[elem.Key] = fromBSON(elem.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = fromBSON(elem)
		}
		return out
	case primitive.DateTime:
		return t.Time().UnixMilli()
	case int32:
		return int64(t)
	default:
		return v
	}
}
