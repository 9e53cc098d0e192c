package logs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/metrics"
)

func TestCreateGroupDuplicate(t *testing.T) {
	l := New(Config{})
	if err := l.CreateGroup("/aws/lambda/fn", nil); err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	err := l.CreateGroup("/aws/lambda/fn", nil)
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.AlreadyExists {
		t.Fatalf("CreateGroup() duplicate error = %v, want AlreadyExists", err)
	}
}

func TestDeleteGroupNotFound(t *testing.T) {
	l := New(Config{})
	err := l.DeleteGroup("/aws/lambda/missing")
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.NotFound {
		t.Fatalf("DeleteGroup() error = %v, want NotFound", err)
	}
}

func TestAppendEventAutoCreatesGroupAndStream(t *testing.T) {
	l := New(Config{})
	if err := l.AppendEvent("/aws/lambda/fn", "stream-1", "hello", time.Time{}); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
	events, err := l.GetEvents("/aws/lambda/fn", "stream-1")
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].Message != "hello" {
		t.Fatalf("GetEvents() = %+v", events)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("AppendEvent() should default a zero timestamp to now")
	}
}

func TestAppendEventOrdersByTimestamp(t *testing.T) {
	l := New(Config{})
	now := time.Now().UTC()
	_ = l.AppendEvent("g", "s", "second", now.Add(time.Second))
	_ = l.AppendEvent("g", "s", "first", now)

	events, _ := l.GetEvents("g", "s")
	if len(events) != 2 || events[0].Message != "first" || events[1].Message != "second" {
		t.Fatalf("events not ordered by timestamp: %+v", events)
	}
}

func TestDescribeGroupsPrefix(t *testing.T) {
	l := New(Config{})
	_ = l.CreateGroup("/aws/lambda/a", nil)
	_ = l.CreateGroup("/aws/lambda/b", nil)
	_ = l.CreateGroup("/other/c", nil)

	groups := l.DescribeGroups("/aws/lambda/")
	if len(groups) != 2 {
		t.Fatalf("DescribeGroups() = %d groups, want 2", len(groups))
	}
	if groups[0].Name != "/aws/lambda/a" || groups[1].Name != "/aws/lambda/b" {
		t.Fatalf("DescribeGroups() not sorted: %+v", groups)
	}
}

func TestDescribeStreamsGroupNotFound(t *testing.T) {
	l := New(Config{})
	_, err := l.DescribeStreams("missing", "")
	if e, ok := apierr.As(err); !ok || e.Kind != apierr.NotFound {
		t.Fatalf("DescribeStreams() error = %v, want NotFound", err)
	}
}

func TestStoredBytesAccumulates(t *testing.T) {
	l := New(Config{})
	_ = l.AppendEvent("g", "s", "abc", time.Time{})
	_ = l.AppendEvent("g", "s", "de", time.Time{})

	groups := l.DescribeGroups("")
	if len(groups) != 1 || groups[0].StoredBytes != 5 {
		t.Fatalf("stored bytes = %+v, want 5", groups)
	}
}

func TestGroupExists(t *testing.T) {
	l := New(Config{})
	if l.GroupExists("/aws/lambda/fn") {
		t.Fatal("GroupExists() = true before creation")
	}
	_ = l.CreateGroup("/aws/lambda/fn", nil)
	if !l.GroupExists("/aws/lambda/fn") {
		t.Fatal("GroupExists() = false after creation")
	}
}

func TestAppendEventObservesMetric(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	l := New(Config{Metrics: m})

	_ = l.AppendEvent("g", "s", "hello", time.Time{})
	_ = l.AppendEvent("g", "s", "again", time.Time{})

	if got := m.Snapshot().LedgerAppends; got != 2 {
		t.Fatalf("LedgerAppends = %d, want 2", got)
	}
}
