package repository

import (
	"context"
	"fmt"
	"time"

	"animesync/internal/logging"
	"animesync/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAnimeStore implements AnimeStore using MongoDB.
// Documents are model.Anime keyed by _id = mal_id.
type MongoAnimeStore struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	log        logging.Logger
}

// NewMongoAnimeStore connects to MongoDB and prepares the collection indexes.
func NewMongoAnimeStore(uri, database, collection string, log logging.Logger) (*MongoAnimeStore, error) {
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("component", "store", "backend", "mongodb")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	coll := db.Collection(collection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "rank", Value: 1}}},
		{Keys: bson.D{{Key: "favorite", Value: 1}, {Key: "last_updated", Value: -1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn(ctx, "failed to create indexes", "error", err)
	}

	log.Info(ctx, "connected", "database", database, "collection", collection)
	return &MongoAnimeStore{
		client:     client,
		db:         db,
		collection: coll,
		log:        log,
	}, nil
}

// Get returns one record, or nil if it is not cached.
func (r *MongoAnimeStore) Get(ctx context.Context, id int) (*model.Anime, error) {
	var a model.Anime
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anime %d: %w", id, err)
	}
	a.LastUpdated = a.LastUpdated.UTC()
	return &a, nil
}

// GetAll returns every record ordered by rank, unranked last.
// Mongo sorts missing fields first, so the order is applied after loading.
func (r *MongoAnimeStore) GetAll(ctx context.Context) ([]model.Anime, error) {
	list, err := r.find(ctx, bson.M{}, options.Find())
	if err != nil {
		return nil, err
	}
	model.SortByRank(list)
	return list, nil
}

// ListFavorites returns favorited records, most recently refreshed first.
func (r *MongoAnimeStore) ListFavorites(ctx context.Context) ([]model.Anime, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_updated", Value: -1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"favorite": true}, opts)
}

func (r *MongoAnimeStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Anime, error) {
	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find anime: %w", err)
	}
	defer cur.Close(ctx)

	result := make([]model.Anime, 0)
	if err := cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode anime: %w", err)
	}
	for i := range result {
		result[i].LastUpdated = result[i].LastUpdated.UTC()
	}
	return result, nil
}

// Upsert inserts or replaces one record.
func (r *MongoAnimeStore) Upsert(ctx context.Context, item model.Anime) error {
	if !item.Valid() {
		return fmt.Errorf("refusing to persist anime %d: %w", item.ID, model.ErrInvalidArgument)
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": item.ID}, item, opts); err != nil {
		return fmt.Errorf("failed to upsert anime %d: %w", item.ID, err)
	}
	return nil
}

// ReplaceAll clears the collection and inserts items.
// Standalone servers have no multi-document transactions, so a concurrent
// reader can observe the collection between the delete and the insert.
func (r *MongoAnimeStore) ReplaceAll(ctx context.Context, items []model.Anime) error {
	docs := make([]interface{}, 0, len(items))
	for _, item := range items {
		if !item.Valid() {
			return fmt.Errorf("refusing to persist anime %d: %w", item.ID, model.ErrInvalidArgument)
		}
		docs = append(docs, item)
	}

	if _, err := r.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear anime: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	opts := options.InsertMany().SetOrdered(false)
	if _, err := r.collection.InsertMany(ctx, docs, opts); err != nil {
		return fmt.Errorf("failed to insert anime: %w", err)
	}

	r.log.Debug(ctx, "replaced collection", "count", len(docs))
	return nil
}

// SetFavorite flips the favorite field only.
func (r *MongoAnimeStore) SetFavorite(ctx context.Context, id int, favorite bool) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"favorite": favorite}})
	if err != nil {
		return fmt.Errorf("failed to update favorite for anime %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("anime %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// Clear removes every record.
func (r *MongoAnimeStore) Clear(ctx context.Context) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear anime: %w", err)
	}
	return nil
}

// Count returns the number of records.
func (r *MongoAnimeStore) Count(ctx context.Context) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count anime: %w", err)
	}
	return n, nil
}

// Stats returns statistics about the anime collection.
func (r *MongoAnimeStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["backend"] = "mongodb"

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["total_anime"] = count

	if favorites, err := r.collection.CountDocuments(ctx, bson.M{"favorite": true}); err == nil {
		stats["favorites"] = favorites
	}

	var newest model.Anime
	opts := options.FindOne().SetSort(bson.D{{Key: "last_updated", Value: -1}})
	if err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&newest); err == nil {
		stats["last_sync"] = newest.LastUpdated.UTC()
	}

	var oldest model.Anime
	opts = options.FindOne().SetSort(bson.D{{Key: "last_updated", Value: 1}})
	if err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&oldest); err == nil {
		stats["oldest_update"] = oldest.LastUpdated.UTC()
	}

	result := r.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: r.collection.Name()}})
	var collStats bson.M
	if err := result.Decode(&collStats); err == nil {
		if size, ok := collStats["size"].(int64); ok {
			stats["db_size_bytes"] = size
		} else if size, ok := collStats["size"].(int32); ok {
			stats["db_size_bytes"] = int64(size)
		}
	}

	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoAnimeStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

var _ AnimeStore = (*MongoAnimeStore)(nil)
