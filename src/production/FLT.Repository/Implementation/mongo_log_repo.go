package implementation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// MongoLogRepository is the document-store backend for telemetry logs,
// selected with LOG_BACKEND=mongo.
type MongoLogRepository struct {
	coll *mongo.Collection
}

func NewMongoLogRepository(coll *mongo.Collection) *MongoLogRepository {
	return &MongoLogRepository{coll: coll}
}

func (r *MongoLogRepository) Insert(ctx context.Context, entry *fltmodels.LogEntry) (*fltmodels.LogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if entry.LogID == "" {
		entry.LogID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := r.coll.InsertOne(ctx, entry)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *MongoLogRepository) Query(ctx context.Context, deviceID string, params interfaces.LogQueryParams) (*interfaces.LogQueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}

	filter := bson.M{"device_id": deviceID}
	if params.Event != "" {
		filter["event"] = params.Event
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	entries := make([]fltmodels.LogEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return &interfaces.LogQueryResult{
		Items: entries,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// SummarizeUsage runs the reduction as an aggregation pipeline. The
// $type match keeps string/boolean/object values out of the numeric
// aggregate.
func (r *MongoLogRepository) SummarizeUsage(ctx context.Context, deviceID string, events []string, since time.Time) (*interfaces.UsageSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"device_id": deviceID,
			"event":     bson.M{"$in": events},
			"timestamp": bson.M{"$gte": since},
			"value":     bson.M{"$type": "number"},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":        nil,
			"totalValue": bson.M{"$sum": "$value"},
			"count":      bson.M{"$sum": 1},
			"avgValue":   bson.M{"$avg": "$value"},
			"maxValue":   bson.M{"$max": "$value"},
			"minValue":   bson.M{"$min": "$value"},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var results []struct {
		TotalValue float64 `bson:"totalValue"`
		Count      int64   `bson:"count"`
		AvgValue   float64 `bson:"avgValue"`
		MaxValue   float64 `bson:"maxValue"`
		MinValue   float64 `bson:"minValue"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	// No matching entries yields the all-zero summary, not an error.
	if len(results) == 0 {
		return &interfaces.UsageSummary{}, nil
	}

	return &interfaces.UsageSummary{
		TotalValue: results[0].TotalValue,
		Count:      results[0].Count,
		AvgValue:   results[0].AvgValue,
		MaxValue:   results[0].MaxValue,
		MinValue:   results[0].MinValue,
	}, nil
}

func (r *MongoLogRepository) RecentSince(ctx context.Context, deviceID string, since time.Time, limit int) ([]fltmodels.LogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"device_id": deviceID,
		"timestamp": bson.M{"$gte": since},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	entries := make([]fltmodels.LogEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *MongoLogRepository) DeleteByDevice(ctx context.Context, deviceID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.coll.DeleteMany(ctx, bson.M{"device_id": deviceID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
