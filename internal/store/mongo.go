package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDAO is the production DAO implementation, backed by MongoDB.
type mongoDAO struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to uri and returns a DAO bound to database dbName.
// Connection errors are returned to the caller, who — per spec.md §7 —
// should treat them as fatal at boot.
func NewMongo(ctx context.Context, cfg Config) (DAO, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts = opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("store: mongo ping: %w", err)
	}
	return &mongoDAO{client: client, db: client.Database(cfg.Name)}, nil
}

func (m *mongoDAO) InsertIfAbsent(ctx context.Context, collection, key string, keyValue, doc any) error {
	_, err := m.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (m *mongoDAO) FindOne(ctx context.Context, collection, key string, keyValue, out any) (bool, error) {
	err := m.db.Collection(collection).FindOne(ctx, bson.M{key: keyValue}).Decode(out)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *mongoDAO) CountByKey(ctx context.Context, collection, key string, keyValue any) (int64, error) {
	return m.db.Collection(collection).CountDocuments(ctx, bson.M{key: keyValue})
}

func (m *mongoDAO) AppendSet(ctx context.Context, collection, key string, keyValue any, arrayField string, items []any) error {
	update := bson.M{"$addToSet": bson.M{arrayField: bson.M{"$each": items}}}
	_, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{key: keyValue}, update)
	return err
}

func (m *mongoDAO) RunPipeline(ctx context.Context, collection string, pipeline []map[string]any, out any) error {
	bsonPipeline := make(mongo.Pipeline, 0, len(pipeline))
	for _, stage := range pipeline {
		bsonPipeline = append(bsonPipeline, bson.D{primitiveElem(stage)})
	}
	cur, err := m.db.Collection(collection).Aggregate(ctx, bsonPipeline)
	if err != nil {
		return fmt.Errorf("store: aggregate: %w", err)
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

// primitiveElem converts a single-keyed stage map (e.g. {"$match": {...}})
// into a bson.E; pipelines built by internal/filterpipe always carry
// single-key stage maps, matching Mongo's own stage shape.
func primitiveElem(stage map[string]any) bson.E {
	for k, v := range stage {
		return bson.E{Key: k, Value: v}
	}
	return bson.E{}
}

func (m *mongoDAO) GeoWithinRadius(ctx context.Context, collection string, lon, lat, radiusRad float64, projection []string) ([]GeoRow, error) {
	filter := bson.M{
		"coordinates.radec_geojson": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{lon, lat}, radiusRad},
			},
		},
	}
	findOpts := options.Find()
	if len(projection) > 0 {
		proj := bson.M{}
		for _, f := range projection {
			proj[f] = 1
		}
		proj["ra"] = 1
		proj["dec"] = 1
		findOpts.SetProjection(proj)
	}
	cur, err := m.db.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("store: geo query on %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}
	rows := make([]GeoRow, 0, len(raw))
	for _, doc := range raw {
		row := GeoRow{Fields: map[string]any(doc)}
		if ra, ok := numeric(doc["ra"]); ok {
			row.RA, row.HasRA = ra, true
		}
		if dec, ok := numeric(doc["dec"]); ok {
			row.Dec, row.HasDec = dec, true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (m *mongoDAO) Ping(ctx context.Context) error { return m.client.Ping(ctx, nil) }

func (m *mongoDAO) Close(ctx context.Context) error { return m.client.Disconnect(ctx) }
