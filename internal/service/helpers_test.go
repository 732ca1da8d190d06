package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"imagepacks/internal/config"
	"imagepacks/internal/database"
	"imagepacks/internal/events"
	"imagepacks/internal/repository"
	"imagepacks/internal/storage"
)

func testInbox(t *testing.T) *repository.SQLiteInboxRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, config.SQLiteConfig{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewSQLiteInboxRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func uploads(n int) []ImageUpload {
	images := make([]ImageUpload, 0, n)
	for i := 0; i < n; i++ {
		content := []byte(fmt.Sprintf("im%d_content", i))
		images = append(images, ImageUpload{
			Name:    fmt.Sprintf("im%d.jpg", i),
			Content: bytes.NewReader(content),
			Size:    int64(len(content)),
		})
	}
	return images
}

// sequenceClock returns the given instants in order and then repeats the last.
type sequenceClock struct {
	mu    sync.Mutex
	times []time.Time
	next  int
}

func (c *sequenceClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.times[c.next]
	if c.next < len(c.times)-1 {
		c.next++
	}
	return t
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// flakyStore fails selected calls of an otherwise working MemoryStore.
type flakyStore struct {
	*storage.MemoryStore
	failPutAfter  int
	puts          int
	removeFailure bool
	existsCalls   int
	createCalls   int
	alwaysMissing bool
	mu            sync.Mutex
}

var errInjected = errors.New("injected failure")

func (f *flakyStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	f.mu.Lock()
	f.existsCalls++
	missing := f.alwaysMissing
	f.mu.Unlock()
	if missing {
		return false, nil
	}
	return f.MemoryStore.BucketExists(ctx, bucket)
}

func (f *flakyStore) CreateBucket(ctx context.Context, bucket string) error {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	return f.MemoryStore.CreateBucket(ctx, bucket)
}

func (f *flakyStore) PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	f.puts++
	fail := f.failPutAfter > 0 && f.puts > f.failPutAfter
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.MemoryStore.PutObject(ctx, bucket, name, r, size, contentType)
}

func (f *flakyStore) RemoveObjects(ctx context.Context, bucket string, names []string) []storage.RemoveFailure {
	if f.removeFailure {
		failures := make([]storage.RemoveFailure, 0, len(names))
		for _, name := range names {
			failures = append(failures, storage.RemoveFailure{Name: name, Err: errInjected})
		}
		return failures
	}
	return f.MemoryStore.RemoveObjects(ctx, bucket, names)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PackEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.PackEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
