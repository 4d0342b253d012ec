// Package mongo is a MongoDB store. Subscriptions are single documents with
// their lines and produced-document links embedded.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/sequence"
	tuitionstore "github.com/xraph/tuition/store"
	"github.com/xraph/tuition/subscription"
)

// Collection name constants.
const (
	colSubscriptions = "tuition_subscriptions"
	colHistory       = "tuition_history"
	colSequences     = "tuition_sequences"
	colJobs          = "tuition_jobs"
	colCounters      = "tuition_counters"
)

// compile-time interface check
var _ tuitionstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a store over the named database of client.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Connect dials uri and returns a store owning the client.
func Connect(uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("tuition/mongo: connect: %w", err)
	}
	return New(client, database), nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all tuition collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tuition/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.db.Collection(colSubscriptions).InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: subscription %s", tuition.ErrAlreadyExists, sub.ID)
		}
		return fmt.Errorf("tuition/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).
		FindOne(ctx, bson.M{"_id": subID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tuition.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("tuition/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	filter := bson.M{}
	if opts.State != "" {
		filter["state"] = string(opts.State)
	}
	if !opts.SubscriptorID.IsNil() {
		filter["subscriptor_id"] = opts.SubscriptorID.String()
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colSubscriptions).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("tuition/mongo: list subscriptions: %w", err)
	}
	var models []subscriptionModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("tuition/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

// UpdateSubscription replaces every field except the produced-document
// links, which are merged so they only grow.
func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()

	set := bson.M{
		"description":     m.Description,
		"date":            m.Date,
		"company_id":      m.CompanyID,
		"subscriptor_id":  m.SubscriptorID,
		"student_id":      m.StudentID,
		"invoice_method":  m.InvoiceMethod,
		"state":           m.State,
		"currency":        m.Currency,
		"price_list_id":   m.PriceListID,
		"payment_term_id": m.PaymentTermID,
		"media_contact":   m.MediaContact,
		"salesman_id":     m.SalesmanID,
		"user_id":         m.UserID,
		"request_user_id": m.RequestUserID,
		"interval_number": m.IntervalNumber,
		"interval_type":   m.IntervalType,
		"next_call":       m.NextCall,
		"number_calls":    m.NumberCalls,
		"model_source":    m.ModelSource,
		"job_id":          m.JobID,
		"total":           m.Total,
		"active":          m.Active,
		"lines":           m.Lines,
		"updated_at":      m.UpdatedAt,
	}
	update := bson.M{
		"$set": set,
		"$addToSet": bson.M{
			"sale_ids":    bson.M{"$each": m.SaleIDs},
			"invoice_ids": bson.M{"$each": m.InvoiceIDs},
		},
	}
	if m.Code == "" {
		update["$unset"] = bson.M{"code": ""}
	} else {
		set["code"] = m.Code
	}

	res, err := s.db.Collection(colSubscriptions).UpdateOne(ctx, bson.M{"_id": m.ID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: subscription code %q", tuition.ErrAlreadyExists, m.Code)
		}
		return fmt.Errorf("tuition/mongo: update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return tuition.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error {
	key := subID.String()
	res, err := s.db.Collection(colSubscriptions).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("tuition/mongo: delete subscription: %w", err)
	}
	if res.DeletedCount == 0 {
		return tuition.ErrSubscriptionNotFound
	}
	if _, err := s.db.Collection(colHistory).DeleteMany(ctx, bson.M{"subscription_id": key}); err != nil {
		return fmt.Errorf("tuition/mongo: delete history: %w", err)
	}
	_, err = s.db.Collection(colCounters).DeleteOne(ctx, bson.M{"_id": historyCounter(key)})
	return err
}

func (s *Store) CountLinesBySession(ctx context.Context, sessionID id.SessionID) (int, error) {
	key := sessionID.String()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"lines.session_id": key}}},
		{{Key: "$unwind", Value: "$lines"}},
		{{Key: "$match", Value: bson.M{"lines.session_id": key}}},
		{{Key: "$count", Value: "n"}},
	}
	cur, err := s.db.Collection(colSubscriptions).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("tuition/mongo: count lines: %w", err)
	}
	var out []struct {
		N int `bson:"n"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, fmt.Errorf("tuition/mongo: count lines: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].N, nil
}

func (s *Store) IsDocumentReferenced(ctx context.Context, docID id.AnyID) (bool, error) {
	key := docID.String()
	n, err := s.db.Collection(colSubscriptions).CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"sale_ids": key},
		bson.M{"invoice_ids": key},
		bson.M{"model_source.id": key},
	}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("tuition/mongo: document references: %w", err)
	}
	return n > 0, nil
}

// ==================== History Store ====================

// CreateHistory appends an entry. Entries carry a per-subscription counter so
// listing returns them in insertion order.
func (s *Store) CreateHistory(ctx context.Context, e *history.Entry) error {
	key := e.SubscriptionID.String()
	n, err := s.db.Collection(colSubscriptions).CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("tuition/mongo: create history: %w", err)
	}
	if n == 0 {
		return tuition.ErrSubscriptionNotFound
	}

	seq, err := s.increment(ctx, historyCounter(key))
	if err != nil {
		return fmt.Errorf("tuition/mongo: create history: %w", err)
	}
	if _, err := s.db.Collection(colHistory).InsertOne(ctx, toHistoryModel(e, seq)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: history %s", tuition.ErrAlreadyExists, e.ID)
		}
		return fmt.Errorf("tuition/mongo: create history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, subID id.SubscriptionID, opts history.ListOpts) ([]*history.Entry, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colHistory).Find(ctx, bson.M{"subscription_id": subID.String()}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("tuition/mongo: list history: %w", err)
	}
	var models []historyModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("tuition/mongo: list history: %w", err)
	}

	result := make([]*history.Entry, len(models))
	for i := range models {
		e, err := fromHistoryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Sequence Store ====================

func (s *Store) CreateSequence(ctx context.Context, seq *sequence.Sequence) error {
	_, err := s.db.Collection(colSequences).InsertOne(ctx, toSequenceModel(seq))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: sequence code %q", tuition.ErrAlreadyExists, seq.Code)
		}
		return fmt.Errorf("tuition/mongo: create sequence: %w", err)
	}
	return nil
}

func (s *Store) GetSequence(ctx context.Context, seqID id.SequenceID) (*sequence.Sequence, error) {
	return s.findSequence(ctx, bson.M{"_id": seqID.String()})
}

func (s *Store) GetSequenceByCode(ctx context.Context, code string) (*sequence.Sequence, error) {
	return s.findSequence(ctx, bson.M{"code": code})
}

func (s *Store) findSequence(ctx context.Context, filter bson.M) (*sequence.Sequence, error) {
	var m sequenceModel
	err := s.db.Collection(colSequences).FindOne(ctx, filter).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tuition.ErrSequenceNotFound
		}
		return nil, fmt.Errorf("tuition/mongo: get sequence: %w", err)
	}
	return fromSequenceModel(&m)
}

// NextSequenceNumber advances the counter with a single pipeline update and
// returns the value it held before.
func (s *Store) NextSequenceNumber(ctx context.Context, seqID id.SequenceID) (int64, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"number_next": bson.M{"$add": bson.A{"$number_next", bson.M{"$max": bson.A{"$increment", 1}}}},
			"updated_at":  now(),
		}}},
	}
	var m sequenceModel
	err := s.db.Collection(colSequences).
		FindOneAndUpdate(ctx, bson.M{"_id": seqID.String()}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.Before)).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, tuition.ErrSequenceNotFound
		}
		return 0, fmt.Errorf("tuition/mongo: next sequence number: %w", err)
	}
	return m.NumberNext, nil
}

// ==================== Job Store ====================

func (s *Store) InsertJob(ctx context.Context, j *scheduler.Job) error {
	_, err := s.db.Collection(colJobs).InsertOne(ctx, toJobModel(j))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: job %s", tuition.ErrAlreadyExists, j.ID)
		}
		return fmt.Errorf("tuition/mongo: insert job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*scheduler.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tuition.ErrJobNotFound
		}
		return nil, fmt.Errorf("tuition/mongo: get job: %w", err)
	}
	return fromJobModel(&m)
}

func (s *Store) UpdateJob(ctx context.Context, j *scheduler.Job) error {
	m := toJobModel(j)
	res, err := s.db.Collection(colJobs).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("tuition/mongo: update job: %w", err)
	}
	if res.MatchedCount == 0 {
		return tuition.ErrJobNotFound
	}
	return nil
}

func (s *Store) FindJobByName(ctx context.Context, model, name string, active bool) (*scheduler.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx,
		bson.M{"model": model, "name": name, "active": active},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tuition.ErrJobNotFound
		}
		return nil, fmt.Errorf("tuition/mongo: find job: %w", err)
	}
	return fromJobModel(&m)
}

func (s *Store) ListDueJobs(ctx context.Context, at time.Time) ([]*scheduler.Job, error) {
	cur, err := s.db.Collection(colJobs).Find(ctx, bson.M{
		"active":       true,
		"number_calls": bson.M{"$ne": 0},
		"next_call":    bson.M{"$lte": at},
	}, options.Find().SetSort(bson.D{{Key: "next_call", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("tuition/mongo: list due jobs: %w", err)
	}
	var models []jobModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("tuition/mongo: list due jobs: %w", err)
	}

	result := make([]*scheduler.Job, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = j
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks for the mongo no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func historyCounter(subKey string) string {
	return "history:" + subKey
}

// increment bumps the named counter and returns its new value.
func (s *Store) increment(ctx context.Context, name string) (int64, error) {
	var out struct {
		Value int64 `bson:"value"`
	}
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	return out.Value, err
}

// migrationIndexes returns the index definitions for each collection.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSubscriptions: {
			{
				Keys: bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"code": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "subscriptor_id", Value: 1}}},
			{Keys: bson.D{{Key: "lines.session_id", Value: 1}}},
			{Keys: bson.D{{Key: "sale_ids", Value: 1}}},
			{Keys: bson.D{{Key: "invoice_ids", Value: 1}}},
		},
		colHistory: {
			{Keys: bson.D{{Key: "subscription_id", Value: 1}, {Key: "seq", Value: 1}}},
		},
		colSequences: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colJobs: {
			{Keys: bson.D{{Key: "model", Value: 1}, {Key: "name", Value: 1}, {Key: "active", Value: 1}}},
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "next_call", Value: 1}}},
		},
	}
}
