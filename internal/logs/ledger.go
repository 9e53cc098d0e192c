// Package logs implements the append-only log ledger (component A):
// groups, streams and events, with prefix queries and byte accounting.
// Grounded on the teacher's mutex-guarded in-memory repository pattern
// (internal/domain.FunctionRepository over a map), generalized to a
// three-level group/stream/event hierarchy.
package logs

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oriys/microstack/internal/apierr"
	"github.com/oriys/microstack/internal/metrics"
)

// Event is a single ledger entry within a stream.
type Event struct {
	Timestamp     time.Time
	IngestionTime time.Time
	Message       string
}

// Stream holds the events ingested under one log-group/stream pair.
type Stream struct {
	Name              string
	CreationTime      time.Time
	StoredBytes       int64
	LastIngestionTime *time.Time

	events []Event
}

// Group holds a named collection of streams.
type Group struct {
	Name          string
	CreationTime  time.Time
	RetentionDays *int
	StoredBytes   int64

	streams map[string]*Stream
}

// Ledger is the single owner of every group/stream/event in the process.
// Reads may run concurrently; mutations are serialized by mu.
type Ledger struct {
	mu     sync.RWMutex
	groups map[string]*Group

	metrics *metrics.Metrics
}

// Config configures a Ledger.
type Config struct {
	Metrics *metrics.Metrics
}

// New returns an empty ledger.
func New(cfg Config) *Ledger {
	return &Ledger{groups: make(map[string]*Group), metrics: cfg.Metrics}
}

// CreateGroup registers a new, empty log group. Fails with AlreadyExists if
// a group with this name is already registered.
func (l *Ledger) CreateGroup(name string, retentionDays *int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.groups[name]; ok {
		return apierr.AlreadyExistsf("ResourceAlreadyExistsException", "log group %q already exists", name)
	}
	l.groups[name] = &Group{
		Name:          name,
		CreationTime:  time.Now().UTC(),
		RetentionDays: retentionDays,
		streams:       make(map[string]*Stream),
	}
	return nil
}

// DeleteGroup removes a log group and all its streams.
func (l *Ledger) DeleteGroup(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.groups[name]; !ok {
		return apierr.NotFoundf("ResourceNotFoundException", "log group %q not found", name)
	}
	delete(l.groups, name)
	return nil
}

// AppendEvent appends a message to (group, stream), auto-creating both if
// missing. timestamp defaults to now when zero. The stream is re-sorted by
// timestamp (stable) after the insert and its stored-bytes total is
// recomputed.
func (l *Ledger) AppendEvent(group, stream, message string, timestamp time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	if timestamp.IsZero() {
		timestamp = now
	}

	g, ok := l.groups[group]
	if !ok {
		g = &Group{Name: group, CreationTime: now, streams: make(map[string]*Stream)}
		l.groups[group] = g
	}
	s, ok := g.streams[stream]
	if !ok {
		s = &Stream{Name: stream, CreationTime: now}
		g.streams[stream] = s
	}

	s.events = append(s.events, Event{
		Timestamp:     timestamp,
		IngestionTime: now,
		Message:       message,
	})
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].Timestamp.Before(s.events[j].Timestamp)
	})
	s.LastIngestionTime = &now
	s.StoredBytes = storedBytes(s.events)
	g.StoredBytes = 0
	for _, st := range g.streams {
		g.StoredBytes += st.StoredBytes
	}
	if l.metrics != nil {
		l.metrics.ObserveLedgerAppend()
	}
	return nil
}

func storedBytes(events []Event) int64 {
	var total int64
	for _, e := range events {
		total += int64(len(e.Message))
	}
	return total
}

// DescribeGroups returns groups whose name starts with prefix, sorted
// lexicographically. An empty prefix matches every group.
func (l *Ledger) DescribeGroups(prefix string) []Group {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Group
	for _, g := range l.groups {
		if strings.HasPrefix(g.Name, prefix) {
			out = append(out, Group{
				Name:          g.Name,
				CreationTime:  g.CreationTime,
				RetentionDays: g.RetentionDays,
				StoredBytes:   g.StoredBytes,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DescribeStreams returns streams of group whose name starts with prefix,
// sorted lexicographically. Fails with NotFound if group is absent.
func (l *Ledger) DescribeStreams(group, prefix string) ([]Stream, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g, ok := l.groups[group]
	if !ok {
		return nil, apierr.NotFoundf("ResourceNotFoundException", "log group %q not found", group)
	}
	var out []Stream
	for _, s := range g.streams {
		if strings.HasPrefix(s.Name, prefix) {
			out = append(out, Stream{
				Name:              s.Name,
				CreationTime:      s.CreationTime,
				StoredBytes:       s.StoredBytes,
				LastIngestionTime: s.LastIngestionTime,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetEvents returns a fresh, ascending-by-timestamp copy of a stream's
// events. Fails with NotFound if the group or stream is absent.
func (l *Ledger) GetEvents(group, stream string) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	g, ok := l.groups[group]
	if !ok {
		return nil, apierr.NotFoundf("ResourceNotFoundException", "log group %q not found", group)
	}
	s, ok := g.streams[stream]
	if !ok {
		return nil, apierr.NotFoundf("ResourceNotFoundException", "log stream %q not found", stream)
	}
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

// GroupExists reports whether a group is registered, used by the stack
// orchestrator's tolerant deletion for AWS::Logs::LogGroup.
func (l *Ledger) GroupExists(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.groups[name]
	return ok
}
