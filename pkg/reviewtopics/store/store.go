package store

import (
	"context"
)

// Store holds the review dataset shown next to the model. It is read-mostly:
// reviews are inserted once at startup and only queried afterwards.
type Store interface {
	Close() error

	InsertReviews(ctx context.Context, reviews []Review) error

	// Head returns the first n reviews in insertion order.
	Head(ctx context.Context, n int) ([]Review, error)

	// ReviewsByTopic returns up to limit reviews whose dominant topic is topic.
	ReviewsByTopic(ctx context.Context, topic int, limit int) ([]Review, error)

	// CountByTopic returns the number of reviews per dominant topic.
	CountByTopic(ctx context.Context) (map[int]int, error)

	Count(ctx context.Context) (int, error)

	// Clear removes every review.
	Clear(ctx context.Context) error
}

// Review is one row of the labelled review dataset.
type Review struct {
	ID            int64  `json:"id"`
	Text          string `json:"text"`
	DominantTopic int    `json:"dominant_topic"`
	TopicLabel    string `json:"topic_label"`
}
