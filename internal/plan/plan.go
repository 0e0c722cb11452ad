// Package plan implements the planner tool (C8, spec.md §4.8): a Worker's
// shared task plan, mutated by the planner tool and broadcast to the
// scope via PlanUpdated. A created plan takes effect at once; the planner
// tool then asks the Manager to approve it, the way the teacher's
// Supervisor routes delegation through a central coordinator.
package plan

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentgrid/agentgrid/internal/domainmsg"
)

// Store holds the current plan for one scope and serializes mutations.
// Like the teacher's shared caches, it is guarded by an RWMutex so that
// readers do not block each other.
type Store struct {
	mu   sync.RWMutex
	plan domainmsg.Plan
}

// NewStore returns an empty plan store.
func NewStore() *Store { return &Store{} }

// Current returns a copy of the plan as it stands now.
func (s *Store) Current() domainmsg.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.plan
	p.Tasks = append([]domainmsg.PlanTask(nil), s.plan.Tasks...)
	return p
}

// Replace installs a brand new plan (planner tool's "create" action).
func (s *Store) Replace(p domainmsg.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = p
}

// SetTaskStatus mutates one task's status in place (planner tool's
// "update_task" action). Returns false if index is out of range.
func (s *Store) SetTaskStatus(index int, status domainmsg.TaskStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.plan.Tasks) {
		return false
	}
	s.plan.Tasks[index].Status = status
	return true
}

// Action is one planner tool call: Create replaces the whole plan at once
// (for a Worker agent the planner tool asks for Manager approval after
// the replacement); UpdateTask mutates a single task's status in place.
type Action struct {
	Kind      string           `json:"kind"` // create | update_task
	Title     string           `json:"title,omitempty"`
	Tasks     []string         `json:"tasks,omitempty"`
	TaskIndex int              `json:"task_index,omitempty"`
	Status    domainmsg.TaskStatus `json:"status,omitempty"`
}

// Apply performs the mutation described by action and returns the
// resulting plan for broadcast.
func Apply(s *Store, action Action) (domainmsg.Plan, error) {
	switch action.Kind {
	case "create":
		tasks := make([]domainmsg.PlanTask, 0, len(action.Tasks))
		for _, desc := range action.Tasks {
			tasks = append(tasks, domainmsg.PlanTask{Description: desc, Status: domainmsg.TaskPending})
		}
		s.Replace(domainmsg.Plan{Title: action.Title, Tasks: tasks})
	case "update_task":
		if !s.SetTaskStatus(action.TaskIndex, action.Status) {
			return domainmsg.Plan{}, fmt.Errorf("plan: task index %d out of range", action.TaskIndex)
		}
	default:
		return domainmsg.Plan{}, fmt.Errorf("plan: unknown action kind %q", action.Kind)
	}
	return s.Current(), nil
}

// MarshalAction decodes a planner tool call's raw JSON arguments.
func MarshalAction(raw json.RawMessage) (Action, error) {
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, err
	}
	return a, nil
}
