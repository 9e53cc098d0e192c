package stacks

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a stack- or resource-level state machine value. Resource
// statuses are always CREATE_* or DELETE_* — under the hood every
// resource lifecycle operation the orchestrator performs is literally a
// create or a delete adapter call, even when driven by UpdateStack (see
// DESIGN.md for why update is delete-then-recreate). Stack-level statuses
// additionally take the UPDATE_* and UPDATE_ROLLBACK_* forms.
type Status string

const (
	StatusCreateInProgress Status = "CREATE_IN_PROGRESS"
	StatusCreateComplete   Status = "CREATE_COMPLETE"
	StatusCreateFailed     Status = "CREATE_FAILED"

	StatusUpdateInProgress Status = "UPDATE_IN_PROGRESS"
	StatusUpdateComplete   Status = "UPDATE_COMPLETE"
	StatusUpdateFailed     Status = "UPDATE_FAILED"

	StatusUpdateRollbackInProgress Status = "UPDATE_ROLLBACK_IN_PROGRESS"
	StatusUpdateRollbackComplete   Status = "UPDATE_ROLLBACK_COMPLETE"
	StatusUpdateRollbackFailed     Status = "UPDATE_ROLLBACK_FAILED"

	StatusDeleteInProgress Status = "DELETE_IN_PROGRESS"
	StatusDeleteComplete   Status = "DELETE_COMPLETE"
	StatusDeleteFailed     Status = "DELETE_FAILED"
)

const stackResourceType = "AWS::CloudFormation::Stack"

// Resource is one entry of a stack's resource list. A logical id appears
// at most once; repeated creation passes (update, rollback) overwrite the
// entry in place rather than appending a duplicate.
type Resource struct {
	LogicalID    string
	PhysicalID   string
	Type         string
	Status       Status
	StatusReason string
	Timestamp    time.Time
}

// Event is one entry of a stack's never-compacted event journal.
type Event struct {
	EventID      string
	Timestamp    time.Time
	LogicalID    string
	ResourceType string
	Status       Status
	StatusReason string
}

// Stack is the orchestrator's aggregate root. Every mutating method is
// called with mu held; GetStack/ListStacks/DescribeStackResources take
// the lock only to copy state out.
type Stack struct {
	StackID      string
	StackName    string
	TemplateBody string
	CreationTime time.Time
	Status       Status
	StatusReason string

	Resources     []*Resource // historical entries kept even after DELETE_COMPLETE
	CreationOrder []string    // logical ids from the most recent successful creation pass
	Events        []Event     // most recent first, never truncated

	mu sync.Mutex
}

func newStack(name, templateBody string) *Stack {
	return &Stack{
		StackID:      newStackID(name),
		StackName:    name,
		TemplateBody: templateBody,
		CreationTime: time.Now().UTC(),
	}
}

func newStackID(name string) string {
	return "arn:aws:cloudformation:us-east-1:000000000000:stack/" + name + "/" + uuid.New().String()
}

// upsertResource replaces the entry for r.LogicalID if one exists,
// otherwise appends it.
func (s *Stack) upsertResource(r *Resource) {
	for i, existing := range s.Resources {
		if existing.LogicalID == r.LogicalID {
			s.Resources[i] = r
			return
		}
	}
	s.Resources = append(s.Resources, r)
}

// transition sets the stack's own status/reason and records a stack-level
// event for it.
func (s *Stack) transition(status Status, reason string) {
	s.Status = status
	s.StatusReason = reason
	s.appendEvent("", stackResourceType, status, reason)
}

// appendResourceEvent records a resource-level event without touching the
// stack's own status.
func (s *Stack) appendResourceEvent(logicalID, resourceType string, status Status, reason string) {
	s.appendEvent(logicalID, resourceType, status, reason)
}

func (s *Stack) appendEvent(logicalID, resourceType string, status Status, reason string) {
	ev := Event{
		EventID:      uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		LogicalID:    logicalID,
		ResourceType: resourceType,
		Status:       status,
		StatusReason: reason,
	}
	s.Events = append([]Event{ev}, s.Events...)
}

// snapshot returns a deep copy of the stack for safe use outside the
// orchestrator's lock.
func (s *Stack) snapshot() *Stack {
	out := &Stack{
		StackID:       s.StackID,
		StackName:     s.StackName,
		TemplateBody:  s.TemplateBody,
		CreationTime:  s.CreationTime,
		Status:        s.Status,
		StatusReason:  s.StatusReason,
		CreationOrder: append([]string(nil), s.CreationOrder...),
		Events:        append([]Event(nil), s.Events...),
	}
	for _, r := range s.Resources {
		c := *r
		out.Resources = append(out.Resources, &c)
	}
	return out
}
