package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type memoryObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// MemoryStore keeps buckets in process memory. It backs local runs without an
// object store and the service tests.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]memoryObject
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]map[string]memoryObject),
		now:     time.Now,
	}
}

// SetClock overrides the modification time stamped on new objects.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *MemoryStore) CreateBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]memoryObject)
	}
	return nil
}

func (m *MemoryStore) PutObject(_ context.Context, bucket, name string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, name, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("put object %s/%s: short read %d of %d bytes", bucket, name, len(data), size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("put object %s/%s: no such bucket", bucket, name)
	}
	objects[name] = memoryObject{data: data, contentType: contentType, lastModified: m.now()}
	return nil
}

func (m *MemoryStore) GetObject(_ context.Context, bucket, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][name]
	if !ok {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, name, ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStore) RemoveObjects(_ context.Context, bucket string, names []string) []RemoveFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		failures := make([]RemoveFailure, 0, len(names))
		for _, name := range names {
			failures = append(failures, RemoveFailure{Name: name, Err: fmt.Errorf("no such bucket %s", bucket)})
		}
		return failures
	}
	// Deleting a missing key succeeds, as it does on S3.
	for _, name := range names {
		delete(objects, name)
	}
	return nil
}

func (m *MemoryStore) ListBuckets(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) ListObjects(_ context.Context, bucket string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("list objects %s: no such bucket", bucket)
	}
	infos := make([]ObjectInfo, 0, len(objects))
	for name, obj := range objects {
		infos = append(infos, ObjectInfo{Name: name, Size: int64(len(obj.data)), LastModified: obj.lastModified})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
