package news

import (
	"context"
	"time"
)

// SearchClient drains the external search API for one query. Implementations
// return whatever was collected before an ordinary fault; the only error they
// surface is ErrRateLimitExhausted, and even then the partial slice is valid.
type SearchClient interface {
	FetchAll(ctx context.Context, query string) ([]RawItem, error)
}

// ArticleStore persists article batches and answers the per-day watermark.
type ArticleStore interface {
	// InsertArticles writes the batch in a single transaction; on any row
	// failure the whole batch is rolled back.
	InsertArticles(ctx context.Context, articles []Article) error
	// MaxPublishTime returns the latest stored pub_time for the date as
	// "HH:MM:SS", or "00:00:00" when the date has no rows.
	MaxPublishTime(ctx context.Context, date time.Time) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run summary events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for archive object naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
