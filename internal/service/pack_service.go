package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"imagepacks/internal/events"
	"imagepacks/internal/ids"
	"imagepacks/internal/models"
	"imagepacks/internal/repository"
	"imagepacks/internal/storage"
)

var (
	// ErrUnknownPack is returned when no inbox row carries the pack id.
	ErrUnknownPack = errors.New("unknown pack")
	ErrEmptyPack   = errors.New("pack has no images")
)

type BlobStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, bucket, name string) (io.ReadCloser, error)
	RemoveObjects(ctx context.Context, bucket string, names []string) []storage.RemoveFailure
}

type Publisher interface {
	Publish(ctx context.Context, event events.PackEvent) error
}

// ImageUpload is one file of a pack as handed over by the HTTP layer.
type ImageUpload struct {
	Name    string
	Content io.Reader
	Size    int64
}

type SaveResult struct {
	PackID      string
	Bucket      string
	SavedImages []string
}

type PackImage struct {
	Name    string
	SavedOn time.Time
	Content []byte
}

// PackService keeps the inbox table and the blob store in step for whole
// packs. Writes are not transactional across the two stores: a failed save
// leaves the images stored so far in place, and a delete removes rows before
// blobs.
type PackService struct {
	inbox        repository.InboxRepository
	blobs        BlobStore
	events       Publisher
	loc          *time.Location
	now          func() time.Time
	newPackID    func() string
	newImageName func() string
	log          zerolog.Logger
}

type Option func(*PackService)

// WithLocation sets the time zone new packs take their bucket date and
// saved_on offset from. Existing packs keep the offset they were saved with.
func WithLocation(loc *time.Location) Option {
	return func(s *PackService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *PackService) {
		s.now = now
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *PackService) {
		s.events = p
	}
}

func WithIDs(packID, imageName func() string) Option {
	return func(s *PackService) {
		s.newPackID = packID
		s.newImageName = imageName
	}
}

func NewPackService(inbox repository.InboxRepository, blobs BlobStore, log zerolog.Logger, opts ...Option) *PackService {
	s := &PackService{
		inbox:        inbox,
		blobs:        blobs,
		loc:          time.Local,
		now:          time.Now,
		newPackID:    ids.NewPackID,
		newImageName: ids.NewImageName,
		log:          log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SavePack stores every image into today's bucket and records it under a
// fresh pack id. The returned names are the original file names in input
// order.
func (s *PackService) SavePack(ctx context.Context, images []ImageUpload) (SaveResult, error) {
	if len(images) == 0 {
		return SaveResult{}, ErrEmptyPack
	}

	// The first record gets the timestamp the bucket was named from, so the
	// earliest saved_on always resolves back to this bucket. Timestamps are
	// kept in the bucket zone and stored with its offset.
	start := s.now().In(s.loc)
	bucket := models.BucketName(start)
	packID := s.newPackID()

	saved := make([]string, 0, len(images))
	stored := make([]string, 0, len(images))
	for i, image := range images {
		imageName := s.newImageName()

		if err := s.ensureBucket(ctx, bucket); err != nil {
			s.logPartialSave(packID, bucket, len(saved), len(images), err)
			return SaveResult{}, err
		}

		if err := s.blobs.PutObject(ctx, bucket, imageName, image.Content, image.Size, storage.ImageContentType); err != nil {
			s.logPartialSave(packID, bucket, len(saved), len(images), err)
			return SaveResult{}, fmt.Errorf("store image %q: %w", image.Name, err)
		}

		savedOn := start
		if i > 0 {
			if t := s.now(); t.After(start) {
				savedOn = t.In(s.loc)
			}
		}
		if err := s.inbox.Insert(ctx, packID, imageName, savedOn); err != nil {
			s.logPartialSave(packID, bucket, len(saved), len(images), err)
			return SaveResult{}, fmt.Errorf("record image %q: %w", image.Name, err)
		}

		saved = append(saved, image.Name)
		stored = append(stored, imageName)
	}

	s.log.Info().
		Str("pack_id", packID).
		Str("bucket", bucket).
		Int("images", len(saved)).
		Msg("pack saved")

	s.publish(ctx, events.PackEvent{
		Type:       events.PackSaved,
		PackID:     packID,
		Bucket:     bucket,
		ImageNames: stored,
		At:         start,
	})

	return SaveResult{
		PackID:      packID,
		Bucket:      bucket,
		SavedImages: saved,
	}, nil
}

// GetPack returns every image of the pack with its content.
func (s *PackService) GetPack(ctx context.Context, packID string) ([]PackImage, error) {
	bucket, err := s.resolveBucket(ctx, packID)
	if err != nil {
		return nil, err
	}

	records, err := s.inbox.ListForPack(ctx, packID)
	if err != nil {
		return nil, fmt.Errorf("list pack images: %w", err)
	}

	images := make([]PackImage, 0, len(records))
	for _, record := range records {
		content, err := s.readObject(ctx, bucket, record.ImageName)
		if err != nil {
			return nil, err
		}
		images = append(images, PackImage{
			Name:    record.ImageName,
			SavedOn: record.SavedOn,
			Content: content,
		})
	}
	return images, nil
}

// DeletePack removes the pack's rows and then its blobs. Blobs that fail to
// delete are logged and left for the sweeper.
func (s *PackService) DeletePack(ctx context.Context, packID string) (string, error) {
	bucket, err := s.resolveBucket(ctx, packID)
	if err != nil {
		return "", err
	}

	records, err := s.inbox.ListForPack(ctx, packID)
	if err != nil {
		return "", fmt.Errorf("list pack images: %w", err)
	}
	names := make([]string, 0, len(records))
	for _, record := range records {
		names = append(names, record.ImageName)
	}

	if err := s.inbox.DeleteForPack(ctx, packID); err != nil {
		return "", fmt.Errorf("delete pack records: %w", err)
	}

	failures := s.blobs.RemoveObjects(ctx, bucket, names)
	for _, f := range failures {
		s.log.Warn().
			Err(f.Err).
			Str("pack_id", packID).
			Str("bucket", bucket).
			Str("object", f.Name).
			Msg("remove object failed")
	}

	s.log.Info().
		Str("pack_id", packID).
		Str("bucket", bucket).
		Int("images", len(names)).
		Int("remove_failures", len(failures)).
		Msg("pack deleted")

	s.publish(ctx, events.PackEvent{
		Type:       events.PackDeleted,
		PackID:     packID,
		Bucket:     bucket,
		ImageNames: names,
		At:         s.now(),
	})

	return fmt.Sprintf("Images from %s request were successfully deleted.", packID), nil
}

func (s *PackService) resolveBucket(ctx context.Context, packID string) (string, error) {
	first, err := s.inbox.EarliestTimestamp(ctx, packID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownPack, packID)
		}
		return "", fmt.Errorf("resolve bucket: %w", err)
	}
	// The stored offset decides the date, not the current zone setting.
	return models.BucketName(first), nil
}

// ensureBucket checks then creates without locking; CreateBucket tolerates
// losing the race to another saver.
func (s *PackService) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := s.blobs.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.blobs.CreateBucket(ctx, bucket); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	s.log.Info().Str("bucket", bucket).Msg("bucket created")
	return nil
}

func (s *PackService) readObject(ctx context.Context, bucket, name string) ([]byte, error) {
	rc, err := s.blobs.GetObject(ctx, bucket, name)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", name, err)
	}
	return data, nil
}

func (s *PackService) publish(ctx context.Context, event events.PackEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("pack_id", event.PackID).Str("event", string(event.Type)).Msg("publish pack event failed")
	}
}

func (s *PackService) logPartialSave(packID, bucket string, saved, total int, err error) {
	s.log.Error().
		Err(err).
		Str("pack_id", packID).
		Str("bucket", bucket).
		Int("saved", saved).
		Int("total", total).
		Msg("pack save aborted")
}
