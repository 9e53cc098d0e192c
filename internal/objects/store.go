// Package objects implements the bucket/object key-value store (component
// B): lifecycle operations, byte-accurate payloads, ETag computation and
// paginated listing. Grounded on the same mutex-guarded in-memory
// repository shape used by internal/logs and internal/registry.
package objects

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/metrics"
)

var bucketNameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// Object is a single stored value under a bucket.
type Object struct {
	Key          string
	Body         []byte
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Bucket holds a named collection of objects.
type Bucket struct {
	Name         string
	CreationTime time.Time

	objects map[string]*Object
}

// Store is the single owner of every bucket/object in the process.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket

	metrics *metrics.Metrics
}

// Config configures a Store.
type Config struct {
	Metrics *metrics.Metrics
}

// New returns an empty object store.
func New(cfg Config) *Store {
	return &Store{buckets: make(map[string]*Bucket), metrics: cfg.Metrics}
}

func (s *Store) observe(op string) {
	if s.metrics != nil {
		s.metrics.ObserveObjectOp(op)
	}
}

// ValidateBucketName reports whether name matches the DNS-like bucket name
// pattern required by §6.
func ValidateBucketName(name string) bool {
	return bucketNameRE.MatchString(name)
}

// CreateBucket registers a new, empty bucket.
func (s *Store) CreateBucket(name string) (*Bucket, error) {
	if !ValidateBucketName(name) {
		return nil, apierr.InvalidArgumentf("InvalidBucketName", "bucket name %q is invalid", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[name]; ok {
		return nil, apierr.AlreadyExistsf("BucketAlreadyOwnedByYou", "bucket %q already exists", name)
	}
	b := &Bucket{Name: name, CreationTime: time.Now().UTC(), objects: make(map[string]*Object)}
	s.buckets[name] = b
	return &Bucket{Name: b.Name, CreationTime: b.CreationTime}, nil
}

// ListBuckets returns every bucket, sorted lexicographically by name.
func (s *Store) ListBuckets() []Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, Bucket{Name: b.Name, CreationTime: b.CreationTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HeadBucket reports whether a bucket exists.
func (s *Store) HeadBucket(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.buckets[name]; !ok {
		return apierr.NotFoundf("NoSuchBucket", "bucket %q not found", name)
	}
	return nil
}

// DeleteBucket removes an empty bucket. Fails with Conflict if it holds any
// objects.
func (s *Store) DeleteBucket(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[name]
	if !ok {
		return apierr.NotFoundf("NoSuchBucket", "bucket %q not found", name)
	}
	if len(b.objects) > 0 {
		return apierr.Conflictf("BucketNotEmpty", "bucket %q is not empty", name)
	}
	delete(s.buckets, name)
	return nil
}

// PutObject stores body under key, computing its ETag and defaulting
// contentType when empty.
func (s *Store) PutObject(bucket, key string, body []byte, contentType string) (*Object, error) {
	if key == "" {
		return nil, apierr.InvalidArgumentf("InvalidArgument", "object key must not be empty")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return nil, apierr.NotFoundf("NoSuchBucket", "bucket %q not found", bucket)
	}
	sum := md5.Sum(body)
	obj := &Object{
		Key:          key,
		Body:         append([]byte(nil), body...),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
	}
	b.objects[key] = obj
	s.observe("PutObject")
	return cloneObject(obj), nil
}

// GetObject returns a copy of the stored object.
func (s *Store) GetObject(bucket, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return nil, apierr.NotFoundf("NoSuchBucket", "bucket %q not found", bucket)
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, apierr.NotFoundf("NoSuchKey", "object %q not found", key)
	}
	s.observe("GetObject")
	return cloneObject(obj), nil
}

// HeadObject returns object metadata without the body.
func (s *Store) HeadObject(bucket, key string) (*Object, error) {
	obj, err := s.GetObject(bucket, key)
	if err != nil {
		return nil, err
	}
	obj.Body = nil
	return obj, nil
}

// DeleteObject removes a key. Deleting an absent key is not an error (S3
// semantics).
func (s *Store) DeleteObject(bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return apierr.NotFoundf("NoSuchBucket", "bucket %q not found", bucket)
	}
	delete(b.objects, key)
	s.observe("DeleteObject")
	return nil
}

func cloneObject(o *Object) *Object {
	c := *o
	c.Body = append([]byte(nil), o.Body...)
	return &c
}

// ListV2Result is the page returned by ListV2.
type ListV2Result struct {
	Keys                  []Object
	IsTruncated           bool
	NextContinuationToken string
}

// ListV2 implements the paginated listing contract of §4.B: candidates are
// keys starting with prefix sorted ascending; if a continuation token is
// supplied the first returned key must be strictly greater than it; the
// page is maxKeys long (default 1000).
func (s *Store) ListV2(bucket, prefix string, maxKeys int, continuationToken string) (*ListV2Result, error) {
	if maxKeys == 0 {
		maxKeys = 1000
	}
	if maxKeys < 0 {
		return nil, apierr.InvalidArgumentf("InvalidArgument", "max-keys must be non-negative")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return nil, apierr.NotFoundf("NoSuchBucket", "bucket %q not found", bucket)
	}

	var candidates []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			candidates = append(candidates, k)
		}
	}
	sort.Strings(candidates)

	start := 0
	if continuationToken != "" {
		start = len(candidates)
		for i, k := range candidates {
			if k > continuationToken {
				start = i
				break
			}
		}
	}
	candidates = candidates[start:]

	truncated := len(candidates) > maxKeys
	if truncated {
		candidates = candidates[:maxKeys]
	}

	res := &ListV2Result{IsTruncated: truncated}
	for _, k := range candidates {
		res.Keys = append(res.Keys, *cloneObjectMeta(b.objects[k]))
	}
	if truncated && len(candidates) > 0 {
		res.NextContinuationToken = candidates[len(candidates)-1]
	}
	s.observe("ListObjectsV2")
	return res, nil
}

func cloneObjectMeta(o *Object) *Object {
	return &Object{
		Key:          o.Key,
		ETag:         o.ETag,
		ContentType:  o.ContentType,
		LastModified: o.LastModified,
	}
}
