// Package mongo implements the document store on MongoDB.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/store"
)

// Opener connects to one database collection. It implements store.Opener.
type Opener struct {
	uri        string
	database   string
	collection string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewOpener creates an Opener. timeout bounds both server selection and the
// liveness ping.
func NewOpener(uri, database, collection string, timeout time.Duration, logger *slog.Logger) *Opener {
	return &Opener{
		uri:        uri,
		database:   database,
		collection: collection,
		timeout:    timeout,
		logger:     logger,
	}
}

// Open connects and pings the server. Failures wrap domain.ErrStoreUnavailable.
func (o *Opener) Open(ctx context.Context) (store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(o.uri).
		SetServerSelectionTimeout(o.timeout).
		SetConnectTimeout(o.timeout))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", domain.ErrStoreUnavailable, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %w", domain.ErrStoreUnavailable, err)
	}

	o.logger.Debug("mongo connected", "database", o.database, "collection", o.collection)
	return &Store{
		client:     client,
		collection: client.Database(o.database).Collection(o.collection),
	}, nil
}

// Store is a connected collection handle. It implements store.Store.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// observationDocument is the persisted form. Absent readings are written as
// null rather than omitted so every document carries the full schema.
type observationDocument struct {
	Timestamp    string   `bson:"timestamp"`
	TemperatureC *float64 `bson:"temperature_c"`
	HumidityPct  *float64 `bson:"humidity_pct"`
	PressureHPa  *float64 `bson:"pressure_hpa"`
	WindSpeedMS  *float64 `bson:"wind_speed_ms"`
	RainAccumMM  *float64 `bson:"rain_accum_mm"`
	StationID    string   `bson:"station_id"`
	DataSource   string   `bson:"data_source"`
}

func toDocument(o domain.Observation) observationDocument {
	return observationDocument{
		Timestamp:    o.Timestamp,
		TemperatureC: o.TemperatureC.Ptr(),
		HumidityPct:  o.HumidityPct.Ptr(),
		PressureHPa:  o.PressureHPa.Ptr(),
		WindSpeedMS:  o.WindSpeedMS.Ptr(),
		RainAccumMM:  o.RainAccumMM.Ptr(),
		StationID:    o.StationID,
		DataSource:   o.DataSource,
	}
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) InsertMany(ctx context.Context, obs []domain.Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, len(obs))
	for i := range obs {
		docs[i] = toDocument(obs[i])
	}
	res, err := s.collection.InsertMany(ctx, docs)
	if err != nil {
		inserted := 0
		if res != nil {
			inserted = len(res.InsertedIDs)
		}
		return inserted, fmt.Errorf("insert many: %w", err)
	}
	return len(res.InsertedIDs), nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, filterDocument(f))
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *Store) SumConditions(ctx context.Context, sums []store.Sum) (map[string]int64, error) {
	out := make(map[string]int64, len(sums))
	for _, sum := range sums {
		out[sum.Name] = 0
	}
	if len(sums) == 0 {
		return out, nil
	}

	cursor, err := s.collection.Aggregate(ctx, mongo.Pipeline{{{Key: "$group", Value: groupDocument(sums)}}})
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	var rows []bson.M
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("read aggregate: %w", err)
	}
	if len(rows) == 0 {
		return out, nil
	}
	for _, sum := range sums {
		out[sum.Name] = toInt64(rows[0][sum.Name])
	}
	return out, nil
}

func (s *Store) Distinct(ctx context.Context, field string) ([]string, error) {
	filter := bson.D{{Key: field, Value: bson.D{{Key: "$type", Value: "string"}}}}
	values, err := s.collection.Distinct(ctx, field, filter)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// filterDocument translates an out-of-range filter into
// {$or: [{field: {$lt: min}}, {field: {$gt: max}}]}. MongoDB's type
// bracketing keeps null and string values from matching numeric bounds.
func filterDocument(f store.Filter) bson.D {
	if len(f.Any) > 0 {
		var clauses bson.A
		for _, sub := range f.Any {
			clauses = append(clauses, filterDocument(sub))
		}
		return bson.D{{Key: "$or", Value: clauses}}
	}
	if f.Field == "" {
		return bson.D{}
	}
	var clauses bson.A
	if f.Below != nil {
		clauses = append(clauses, bson.D{{Key: f.Field, Value: bson.D{{Key: "$lt", Value: *f.Below}}}})
	}
	if f.Above != nil {
		clauses = append(clauses, bson.D{{Key: f.Field, Value: bson.D{{Key: "$gt", Value: *f.Above}}}})
	}
	if len(clauses) == 0 {
		return bson.D{{Key: f.Field, Value: bson.D{{Key: "$type", Value: "number"}}}}
	}
	return bson.D{{Key: "$or", Value: clauses}}
}

// groupDocument builds one $group stage with a conditional $sum per request.
func groupDocument(sums []store.Sum) bson.D {
	group := bson.D{{Key: "_id", Value: nil}}
	for _, sum := range sums {
		group = append(group, bson.E{Key: sum.Name, Value: bson.D{{Key: "$sum", Value: bson.D{
			{Key: "$cond", Value: bson.A{conditionExpr(sum.Field, sum.Condition), 1, 0}},
		}}}})
	}
	return group
}

func conditionExpr(field string, c store.Condition) bson.D {
	ref := "$" + field
	typeOf := bson.D{{Key: "$type", Value: ref}}
	switch c {
	case store.IsNull:
		// $ifNull folds a missing field into null.
		return bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{ref, nil}}}, nil}}}
	case store.IsText:
		return bson.D{{Key: "$eq", Value: bson.A{typeOf, "string"}}}
	case store.IsNonNumeric:
		return bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$not", Value: bson.A{bson.D{{Key: "$in", Value: bson.A{typeOf, bson.A{"missing", "null"}}}}}}},
			bson.D{{Key: "$not", Value: bson.A{bson.D{{Key: "$isNumber", Value: ref}}}}},
		}}}
	default:
		return bson.D{{Key: "$literal", Value: false}}
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
