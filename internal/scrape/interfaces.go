package scrape

import (
	"context"
	"io"
	"time"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// CredentialStore resolves stored secrets by identifier.
type CredentialStore interface {
	FetchCredentialSecret(ctx context.Context, identifier string) (string, error)
}

// TargetStore lists work items that have not been scraped yet.
type TargetStore interface {
	FetchCandidateTargets(ctx context.Context, filter TargetFilter) ([]WorkItem, error)
}

// ResultSink persists extracted records, upserting by record ID.
type ResultSink interface {
	Persist(ctx context.Context, records []ExtractedRecord) (int, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Launcher runs one worker to completion. Messages are delivered through emit
// in the order the worker produced them. A non-nil error means the worker
// exited abnormally.
type Launcher interface {
	Launch(ctx context.Context, assignment Assignment, emit Emit) error
}

// SessionOptions tune a single browser session.
type SessionOptions struct {
	Headless bool
}

// Browser opens isolated sessions. Sessions never share cookies or storage.
type Browser interface {
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is one authenticated browser context owned by one worker.
type Session interface {
	Login(ctx context.Context, cred Credential) error
	Navigate(ctx context.Context, url string) error
	OpenReactions(ctx context.Context) error
	LoadMoreVisible(ctx context.Context) (bool, error)
	LoadMore(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Close() error
}
