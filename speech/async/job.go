package async

import (
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/speechflow/speech"
)

// Status 异步任务在客户端视角的状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusTimedOut
}

// validTransitions 允许的状态迁移
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusSucceeded, StatusFailed, StatusTimedOut},
	StatusRunning: {StatusSucceeded, StatusFailed, StatusTimedOut},
}

// CanTransition 检查状态迁移是否合法；同状态视为合法
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.IsTerminal()
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job 一次合成调用内的异步任务，不跨调用持久化
type Job struct {
	ID          string
	SubmittedAt time.Time

	mu      sync.Mutex
	status  Status
	result  speech.AudioRef
	message string
	polls   int
}

func newJob(id string, now time.Time) *Job {
	return &Job{ID: id, SubmittedAt: now, status: StatusPending}
}

// Status returns the current state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Result returns the result reference; zero until the job succeeds.
func (j *Job) Result() speech.AudioRef {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Message returns the provider failure detail, if any.
func (j *Job) Message() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.message
}

// Polls returns how many status queries have completed.
func (j *Job) Polls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.polls
}

// transition 迁移状态，非法迁移返回错误
func (j *Job) transition(to Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !CanTransition(j.status, to) {
		return fmt.Errorf("job %s: invalid transition %s -> %s", j.ID, j.status, to)
	}
	j.status = to
	return nil
}

func (j *Job) succeed(ref speech.AudioRef) error {
	if err := j.transition(StatusSucceeded); err != nil {
		return err
	}
	j.mu.Lock()
	j.result = ref
	j.mu.Unlock()
	return nil
}

func (j *Job) fail(msg string) error {
	if err := j.transition(StatusFailed); err != nil {
		return err
	}
	j.mu.Lock()
	j.message = msg
	j.mu.Unlock()
	return nil
}

func (j *Job) countPoll() {
	j.mu.Lock()
	j.polls++
	j.mu.Unlock()
}

// stateFromProvider 将上游任务状态映射为客户端状态
func stateFromProvider(s speech.TaskState) Status {
	switch s {
	case speech.TaskRunning:
		return StatusRunning
	case speech.TaskSucceeded:
		return StatusSucceeded
	case speech.TaskFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}
