package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"livepoll/internal/model"
)

// PollRepo is the durable poll store. GetByID returns (nil, nil) when the
// poll does not exist.
type PollRepo interface {
	Create(ctx context.Context, poll *model.Poll) error
	GetByID(ctx context.Context, id string) (*model.Poll, error)
	Update(ctx context.Context, poll *model.Poll) error
	Delete(ctx context.Context, id string) error
}

type pollRepo struct {
	collection *mongo.Collection
}

func NewPollRepo(db *mongo.Database) PollRepo {
	return &pollRepo{
		collection: db.Collection("polls"),
	}
}

func (r *pollRepo) Create(ctx context.Context, poll *model.Poll) error {
	if poll.ID == "" {
		poll.ID = primitive.NewObjectID().Hex()
	}
	if poll.CreatedAt.IsZero() {
		poll.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, poll)
	return err
}

func (r *pollRepo) GetByID(ctx context.Context, id string) (*model.Poll, error) {
	var poll model.Poll
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&poll)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Poll not found
		}
		return nil, err
	}

	return &poll, nil
}

func (r *pollRepo) Update(ctx context.Context, poll *model.Poll) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": poll.ID}, poll)
	return err
}

func (r *pollRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
