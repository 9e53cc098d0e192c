package objects

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/metrics"
)

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"my-bucket", true},
		{"my.bucket.1", true},
		{"a", false},
		{"My-Bucket", false},
		{"-leading-dash", false},
		{"trailing-dash-", false},
	}
	for _, tt := range tests {
		if got := ValidateBucketName(tt.name); got != tt.want {
			t.Errorf("ValidateBucketName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCreateBucketDuplicate(t *testing.T) {
	s := New(Config{})
	if _, err := s.CreateBucket("my-bucket"); err != nil {
		t.Fatalf("CreateBucket() error = %v", err)
	}
	_, err := s.CreateBucket("my-bucket")
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.AlreadyExists {
		t.Fatalf("CreateBucket() duplicate error = %v, want AlreadyExists", err)
	}
}

func TestDeleteBucketNotEmpty(t *testing.T) {
	s := New(Config{})
	_, _ = s.CreateBucket("my-bucket")
	_, _ = s.PutObject("my-bucket", "key", []byte("data"), "")

	err := s.DeleteBucket("my-bucket")
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.Conflict {
		t.Fatalf("DeleteBucket() on non-empty bucket error = %v, want Conflict", err)
	}
}

func TestPutGetObjectRoundTrip(t *testing.T) {
	s := New(Config{})
	_, _ = s.CreateBucket("my-bucket")

	obj, err := s.PutObject("my-bucket", "key", []byte("hello"), "")
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if obj.ContentType != "application/octet-stream" {
		t.Errorf("PutObject() default content type = %q", obj.ContentType)
	}

	got, err := s.GetObject("my-bucket", "key")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if string(got.Body) != "hello" {
		t.Errorf("GetObject() body = %q", got.Body)
	}
	if got.ETag != obj.ETag {
		t.Errorf("GetObject() ETag = %q, want %q", got.ETag, obj.ETag)
	}
}

func TestDeleteAbsentKeyIsNotAnError(t *testing.T) {
	s := New(Config{})
	_, _ = s.CreateBucket("my-bucket")
	if err := s.DeleteObject("my-bucket", "missing"); err != nil {
		t.Fatalf("DeleteObject(missing key) error = %v, want nil", err)
	}
}

func TestListV2PaginationAndPrefix(t *testing.T) {
	s := New(Config{})
	_, _ = s.CreateBucket("my-bucket")
	for _, k := range []string{"a", "b", "c", "other"} {
		_, _ = s.PutObject("my-bucket", k, []byte(k), "")
	}

	page1, err := s.ListV2("my-bucket", "", 2, "")
	if err != nil {
		t.Fatalf("ListV2() error = %v", err)
	}
	if len(page1.Keys) != 2 || !page1.IsTruncated {
		t.Fatalf("ListV2() page1 = %+v", page1)
	}

	page2, err := s.ListV2("my-bucket", "", 2, page1.NextContinuationToken)
	if err != nil {
		t.Fatalf("ListV2() error = %v", err)
	}
	if page2.IsTruncated {
		t.Fatalf("ListV2() page2 should not be truncated: %+v", page2)
	}
	if len(page1.Keys)+len(page2.Keys) != 4 {
		t.Fatalf("ListV2() paginated total = %d, want 4", len(page1.Keys)+len(page2.Keys))
	}

	filtered, err := s.ListV2("my-bucket", "o", 0, "")
	if err != nil {
		t.Fatalf("ListV2() error = %v", err)
	}
	if len(filtered.Keys) != 1 || filtered.Keys[0].Key != "other" {
		t.Fatalf("ListV2() prefix filter = %+v", filtered.Keys)
	}
}

func TestHeadObjectStripsBody(t *testing.T) {
	s := New(Config{})
	_, _ = s.CreateBucket("my-bucket")
	_, _ = s.PutObject("my-bucket", "key", []byte("hello"), "text/plain")

	head, err := s.HeadObject("my-bucket", "key")
	if err != nil {
		t.Fatalf("HeadObject() error = %v", err)
	}
	if head.Body != nil {
		t.Errorf("HeadObject() body = %v, want nil", head.Body)
	}
	if head.ContentType != "text/plain" {
		t.Errorf("HeadObject() content type = %q", head.ContentType)
	}
}

func TestObjectOpsObserveMetric(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := New(Config{Metrics: m})

	_, _ = s.CreateBucket("my-bucket")
	_, _ = s.PutObject("my-bucket", "key", []byte("hello"), "")
	_, _ = s.GetObject("my-bucket", "key")
	_, _ = s.ListV2("my-bucket", "", 0, "")
	_ = s.DeleteObject("my-bucket", "key")

	if got := m.Snapshot().ObjectOps; got != 4 {
		t.Fatalf("ObjectOps = %d, want 4", got)
	}
}
