package db

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect initializes the MongoDB connection using the provided URI and
// verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, err
	}

	log.Println("Connected to MongoDB!")
	return client, nil
}

// EnsureIndexes creates the uniqueness and lookup indexes the contribution
// core relies on. The unique reference index doubles as the collision guard
// for generated references; (member, type, due_date) prevents duplicate
// obligations for a cycle.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	mcIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "member_id", Value: 1},
				{Key: "contribution_type_id", Value: 1},
				{Key: "due_date", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		{Keys: bson.D{{Key: "contribution_type_id", Value: 1}}},
	}
	if _, err := database.Collection("member_contributions").Indexes().CreateMany(ctx, mcIndexes); err != nil {
		return err
	}

	payIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "checkout_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "is_approved", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "member_contribution_id", Value: 1}}},
	}
	if _, err := database.Collection("payments").Indexes().CreateMany(ctx, payIndexes); err != nil {
		return err
	}

	ctIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := database.Collection("contribution_types").Indexes().CreateMany(ctx, ctIndexes); err != nil {
		return err
	}

	memberIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := database.Collection("members").Indexes().CreateMany(ctx, memberIndexes); err != nil {
		return err
	}

	return nil
}
