package repository

import (
	"context"
	"errors"
	"fmt"
	reservationserrors "parkd/internal/reservations/errors"
	"parkd/pkg/calendar"
	"parkd/pkg/config"
	mongotx "parkd/pkg/db/mongo"
	"parkd/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindActiveBySlot(ctx context.Context, spotID string, date time.Time) (*model.Reservation, error)
	CountActiveOnDates(ctx context.Context, spotID string, dates []time.Time) (int64, error)
	FindActiveOnDate(ctx context.Context, date time.Time) ([]*model.Reservation, error)
	FindActiveInRange(ctx context.Context, from, to time.Time) ([]*model.Reservation, error)
	FindActiveByEmployeeFrom(ctx context.Context, employeeID string, from time.Time) ([]*model.Reservation, error)
	FindByEmployee(ctx context.Context, employeeID string, from *time.Time) ([]*model.Reservation, error)
	Cancel(ctx context.Context, id string, cancelledAt time.Time) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Create inserts the reservation. The partial unique index on
// (spot_id, date) scoped to ACTIVE status turns a lost race into a
// duplicate key error, surfaced as ErrAlreadyReserved.
func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	reservation.Date = calendar.DayKey(reservation.Date)
	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationserrors.ErrAlreadyReserved
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	var reservation model.Reservation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindActiveBySlot(ctx context.Context, spotID string, date time.Time) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"spot_id": spotID,
		"date":    calendar.DayKey(date),
		"status":  model.ReservationActive,
	}

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, filter).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) CountActiveOnDates(ctx context.Context, spotID string, dates []time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, calendar.DayKey(d))
	}

	filter := bson.M{
		"spot_id": spotID,
		"date":    bson.M{"$in": days},
		"status":  model.ReservationActive,
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count active reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) FindActiveOnDate(ctx context.Context, date time.Time) ([]*model.Reservation, error) {
	filter := bson.M{
		"date":   calendar.DayKey(date),
		"status": model.ReservationActive,
	}
	return r.find(ctx, filter, bson.D{{Key: "spot_id", Value: 1}})
}

func (r *mongoReservationRepository) FindActiveInRange(ctx context.Context, from, to time.Time) ([]*model.Reservation, error) {
	filter := bson.M{
		"date":   bson.M{"$gte": calendar.DayKey(from), "$lte": calendar.DayKey(to)},
		"status": model.ReservationActive,
	}
	return r.find(ctx, filter, bson.D{{Key: "date", Value: 1}})
}

func (r *mongoReservationRepository) FindActiveByEmployeeFrom(ctx context.Context, employeeID string, from time.Time) ([]*model.Reservation, error) {
	filter := bson.M{
		"employee_id": employeeID,
		"date":        bson.M{"$gte": calendar.DayKey(from)},
		"status":      model.ReservationActive,
	}
	return r.find(ctx, filter, bson.D{{Key: "date", Value: 1}})
}

func (r *mongoReservationRepository) FindByEmployee(ctx context.Context, employeeID string, from *time.Time) ([]*model.Reservation, error) {
	filter := bson.M{"employee_id": employeeID}
	if from != nil {
		filter["date"] = bson.M{"$gte": calendar.DayKey(*from)}
	}
	return r.find(ctx, filter, bson.D{{Key: "date", Value: 1}})
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

// Cancel flips an ACTIVE reservation to CANCELLED. Matching on status makes
// the operation a no-op for already cancelled rows, reported as ErrNotFound.
func (r *mongoReservationRepository) Cancel(ctx context.Context, id string, cancelledAt time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": model.ReservationActive}
	update := bson.M{"$set": bson.M{
		"status":       model.ReservationCancelled,
		"cancelled_at": cancelledAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
