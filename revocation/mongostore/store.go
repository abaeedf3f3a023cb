// Package mongostore implements revocation.Store on MongoDB. Expired entries are
// removed by a TTL index on expires_at.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection is the collection name used by the reference server.
const DefaultCollection = "revoked_tokens"

type revokedDocument struct {
	JTI       string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store is a MongoDB-backed denylist. Documents are keyed by jti.
type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

// New returns a Store writing to coll. Call EnsureIndexes once at startup.
func New(coll *mongo.Collection) (*Store, error) {
	if coll == nil {
		return nil, errors.New("collection cannot be nil")
	}
	return &Store{coll: coll, now: time.Now}, nil
}

// EnsureIndexes creates the TTL index that drops documents once the token expires.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create revoked token indexes: %w", err)
	}
	return nil
}

// Revoke upserts jti and keeps the later of the stored and requested expiry.
func (s *Store) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	update := bson.M{
		"$max":         bson.M{"expires_at": expiresAt.UTC()},
		"$setOnInsert": bson.M{"created_at": s.now().UTC()},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": jti}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has a document that has not expired yet.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var doc revokedDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": jti}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongodb lookup: %w", err)
	}
	// the TTL monitor runs about once a minute, so expiry is checked here as well
	return s.now().Before(doc.ExpiresAt), nil
}
