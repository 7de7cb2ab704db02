package repository

import (
	"context"
	"fmt"
	"parkd/pkg/calendar"
	"parkd/pkg/config"
	"parkd/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "AvailabilityMarks"
)

type mongoAvailabilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type AvailabilityRepository interface {
	Upsert(ctx context.Context, mark *model.AvailabilityMark) error
	FindBySpotDates(ctx context.Context, spotID string, dates []time.Time) ([]*model.AvailabilityMark, error)
	FindBySpotFrom(ctx context.Context, spotID string, from time.Time) ([]*model.AvailabilityMark, error)
	FindReleasedOnDate(ctx context.Context, date time.Time) ([]*model.AvailabilityMark, error)
	FindReleasedInRange(ctx context.Context, from, to time.Time) ([]*model.AvailabilityMark, error)
}

func NewMongoAvailabilityRepository(cfg *config.Config) AvailabilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAvailabilityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoAvailabilityRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Upsert writes the mark keyed on (spot_id, date). The unique index on that
// pair makes concurrent upserts for the same day collapse onto one document.
func (r *mongoAvailabilityRepository) Upsert(ctx context.Context, mark *model.AvailabilityMark) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	day := calendar.DayKey(mark.Date)

	filter := bson.M{"spot_id": mark.SpotID, "date": day}
	update := bson.M{
		"$set": bson.M{
			"released":   mark.Released,
			"marked_by":  mark.MarkedBy,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"spot_id":    mark.SpotID,
			"date":       day,
			"created_at": now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert availability mark: %w", err)
	}
	return nil
}

func (r *mongoAvailabilityRepository) FindBySpotDates(ctx context.Context, spotID string, dates []time.Time) ([]*model.AvailabilityMark, error) {
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, calendar.DayKey(d))
	}
	filter := bson.M{"spot_id": spotID, "date": bson.M{"$in": days}}
	return r.find(ctx, filter)
}

func (r *mongoAvailabilityRepository) FindBySpotFrom(ctx context.Context, spotID string, from time.Time) ([]*model.AvailabilityMark, error) {
	filter := bson.M{"spot_id": spotID, "date": bson.M{"$gte": calendar.DayKey(from)}}
	return r.find(ctx, filter)
}

func (r *mongoAvailabilityRepository) FindReleasedOnDate(ctx context.Context, date time.Time) ([]*model.AvailabilityMark, error) {
	filter := bson.M{"date": calendar.DayKey(date), "released": true}
	return r.find(ctx, filter)
}

func (r *mongoAvailabilityRepository) FindReleasedInRange(ctx context.Context, from, to time.Time) ([]*model.AvailabilityMark, error) {
	filter := bson.M{
		"date":     bson.M{"$gte": calendar.DayKey(from), "$lte": calendar.DayKey(to)},
		"released": true,
	}
	return r.find(ctx, filter)
}

func (r *mongoAvailabilityRepository) find(ctx context.Context, filter bson.M) ([]*model.AvailabilityMark, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability marks: %w", err)
	}
	defer cursor.Close(ctx)

	var marks []*model.AvailabilityMark
	if err = cursor.All(ctx, &marks); err != nil {
		return nil, fmt.Errorf("failed to decode availability marks: %w", err)
	}

	return marks, nil
}
