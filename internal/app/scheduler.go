package app

import "sync"

// TaskKind names delayed work for a match.
type TaskKind string

const (
	TaskBotRoll  TaskKind = "bot_roll"
	TaskBotMove  TaskKind = "bot_move"
	TaskPassTurn TaskKind = "pass_turn"
)

// Task is delayed work stamped with the turn it was planned for.
type Task struct {
	MatchID string
	Kind    TaskKind
	Seat    int
	TurnSeq int64
	DueTick int64
}

// Scheduler keeps at most one pending task per match. It is shared by all
// match loops on the node.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]Task
}

// NewScheduler constructs an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]Task)}
}

// Schedule stores task unless one is already in flight for the match.
func (s *Scheduler) Schedule(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.tasks[task.MatchID]; busy {
		return false
	}
	s.tasks[task.MatchID] = task
	return true
}

// PopDue removes and returns the match's task once tick reached its due tick.
func (s *Scheduler) PopDue(matchID string, tick int64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[matchID]
	if !ok || tick < task.DueTick {
		return Task{}, false
	}
	delete(s.tasks, matchID)
	return task, true
}

// Pending returns the match's task without removing it.
func (s *Scheduler) Pending(matchID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[matchID]
	return task, ok
}

// Cancel drops the match's task, if any.
func (s *Scheduler) Cancel(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, matchID)
}

// Len is the number of matches with pending work.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
