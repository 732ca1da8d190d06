package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"imagepacks/internal/models"
	"imagepacks/internal/repository"
	"imagepacks/internal/storage"
)

type SweepStore interface {
	ListBuckets(ctx context.Context) ([]string, error)
	ListObjects(ctx context.Context, bucket string) ([]storage.ObjectInfo, error)
	RemoveObjects(ctx context.Context, bucket string, names []string) []storage.RemoveFailure
}

type SweepReport struct {
	Buckets int
	Scanned int
	Removed int
	Failed  int
}

// Sweeper deletes blobs in date buckets that no inbox row refers to. Such
// blobs are left behind by a delete interrupted between its two phases or a
// save that failed after the upload. Objects younger than grace are skipped
// because a concurrent save uploads before it inserts the row.
type Sweeper struct {
	inbox repository.InboxRepository
	blobs SweepStore
	grace time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

func NewSweeper(inbox repository.InboxRepository, blobs SweepStore, grace time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		inbox: inbox,
		blobs: blobs,
		grace: grace,
		now:   time.Now,
		log:   log,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	buckets, err := s.blobs.ListBuckets(ctx)
	if err != nil {
		return report, err
	}

	cutoff := s.now().Add(-s.grace)
	for _, bucket := range buckets {
		if !isDateBucket(bucket) {
			continue
		}
		report.Buckets++

		objects, err := s.blobs.ListObjects(ctx, bucket)
		if err != nil {
			return report, err
		}

		var orphans []string
		for _, obj := range objects {
			report.Scanned++
			if obj.LastModified.After(cutoff) {
				continue
			}
			referenced, err := s.inbox.ImageExists(ctx, obj.Name)
			if err != nil {
				return report, fmt.Errorf("check %s/%s: %w", bucket, obj.Name, err)
			}
			if !referenced {
				orphans = append(orphans, obj.Name)
			}
		}
		if len(orphans) == 0 {
			continue
		}

		failures := s.blobs.RemoveObjects(ctx, bucket, orphans)
		for _, f := range failures {
			s.log.Warn().Err(f.Err).Str("bucket", bucket).Str("object", f.Name).Msg("sweep remove failed")
		}
		report.Removed += len(orphans) - len(failures)
		report.Failed += len(failures)
	}

	s.log.Info().
		Int("buckets", report.Buckets).
		Int("scanned", report.Scanned).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Msg("orphan sweep finished")

	return report, nil
}

func isDateBucket(name string) bool {
	if len(name) != len(models.BucketLayout) {
		return false
	}
	_, err := time.Parse(models.BucketLayout, name)
	return err == nil
}
