package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/NovelGoat/internal/types"
)

const statsDocID = "global"

// MongoStore keeps users in a "users" collection and counters in a single
// "global" document of the "stats" collection.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	stats  *mongo.Collection
	logger *slog.Logger
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	db := client.Database(database)
	s := &MongoStore{
		client: client,
		users:  db.Collection("users"),
		stats:  db.Collection("stats"),
		logger: logger.With("component", "mongo_store"),
	}
	s.logger.Info("mongodb store connected", "database", database)
	return s, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) wrap(op string, err error) error {
	return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("%s: %w", op, err)}
}

// onInsert holds the fields a user document gets when an update creates it.
func onInsert(now time.Time) bson.M {
	return bson.M{
		"joined":   now,
		"settings": DefaultSettings(),
	}
}

func (s *MongoStore) AddUser(ctx context.Context, id int64, firstName string) (bool, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{"last_seen": now, "first_name": firstName},
		"$setOnInsert": bson.M{
			"joined":         now,
			"settings":       DefaultSettings(),
			"last_novel_url": "",
			"last_chapter":   0,
		},
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, s.wrap("add user", err)
	}

	created := res.UpsertedCount > 0
	if created {
		if err := s.IncrStat(ctx, StatTotalUsers, 1); err != nil {
			return true, err
		}
		s.logger.Debug("user registered", "user_id", id)
	}
	return created, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("get user", err)
	}
	return &u, nil
}

func (s *MongoStore) TouchUser(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set":         bson.M{"last_seen": now},
		"$setOnInsert": onInsert(now),
	}
	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true)); err != nil {
		return s.wrap("touch user", err)
	}
	return nil
}

func (s *MongoStore) Settings(ctx context.Context, id int64) (Settings, error) {
	var doc struct {
		Settings *Settings `bson:"settings"`
	}
	opts := options.FindOne().SetProjection(bson.M{"settings": 1})
	err := s.users.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, s.wrap("get settings", err)
	}
	if doc.Settings == nil {
		return DefaultSettings(), nil
	}
	return *doc.Settings, nil
}

// UpdateSetting stores the whole settings document so that users created
// by this call still get defaults for the other keys.
func (s *MongoStore) UpdateSetting(ctx context.Context, id int64, key string, value any) error {
	settings, err := s.Settings(ctx, id)
	if err != nil {
		return err
	}
	if err := settings.Set(key, value); err != nil {
		return s.wrap("update setting", err)
	}

	update := bson.M{
		"$set":         bson.M{"settings": settings},
		"$setOnInsert": bson.M{"joined": time.Now().UTC()},
	}
	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true)); err != nil {
		return s.wrap("update setting", err)
	}
	return nil
}

func (s *MongoStore) SaveProgress(ctx context.Context, id int64, novelURL string, chapter int) error {
	update := bson.M{
		"$set":         bson.M{"last_novel_url": novelURL, "last_chapter": chapter},
		"$setOnInsert": onInsert(time.Now().UTC()),
	}
	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true)); err != nil {
		return s.wrap("save progress", err)
	}
	return nil
}

func (s *MongoStore) Progress(ctx context.Context, id int64) (string, int, error) {
	u, err := s.GetUser(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return u.LastNovelURL, u.LastChapter, nil
}

func (s *MongoStore) IncrStat(ctx context.Context, key string, n int64) error {
	update := bson.M{"$inc": bson.M{key: n}}
	if _, err := s.stats.UpdateOne(ctx, bson.M{"_id": statsDocID}, update, options.Update().SetUpsert(true)); err != nil {
		return s.wrap("increment stat", err)
	}
	return nil
}

func (s *MongoStore) Stats(ctx context.Context) (Stats, error) {
	var doc struct {
		NovelsScraped int64 `bson:"novels_scraped"`
		ChaptersSent  int64 `bson:"chapters_sent"`
	}
	err := s.stats.FindOne(ctx, bson.M{"_id": statsDocID}).Decode(&doc)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return Stats{}, s.wrap("get stats", err)
	}

	total, err := s.TotalUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	active, err := s.ActiveSince(ctx, startOfDay(time.Now()))
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalUsers:    total,
		ActiveToday:   active,
		NovelsScraped: doc.NovelsScraped,
		ChaptersSent:  doc.ChaptersSent,
	}, nil
}

func (s *MongoStore) TotalUsers(ctx context.Context) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, s.wrap("count users", err)
	}
	return n, nil
}

func (s *MongoStore) ActiveSince(ctx context.Context, since time.Time) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{"last_seen": bson.M{"$gte": since.UTC()}})
	if err != nil {
		return 0, s.wrap("count active users", err)
	}
	return n, nil
}

func (s *MongoStore) Close() error {
	s.logger.Info("mongodb store closing")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
