// Package queue dispatches sweep and prune tasks to a retrying worker pool,
// optionally fed from RabbitMQ, and schedules them on fixed cadences.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindSweep Kind = "sweep"
	KindPrune Kind = "prune"
)

// Task is the unit of background work. It is also the AMQP message body.
type Task struct {
	Kind       Kind      `json:"kind"`
	Chain      string    `json:"chain,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func SweepTask(chain string) Task {
	return Task{Kind: KindSweep, Chain: chain, EnqueuedAt: time.Now().UTC()}
}

func PruneTask() Task {
	return Task{Kind: KindPrune, EnqueuedAt: time.Now().UTC()}
}

func (t Task) Validate() error {
	switch t.Kind {
	case KindSweep:
		if t.Chain == "" {
			return errors.New("sweep task requires a chain")
		}
	case KindPrune:
	default:
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}
	return nil
}

// key identifies tasks that must not be queued twice.
func (t Task) key() string {
	return string(t.Kind) + ":" + t.Chain
}

func (t Task) String() string {
	if t.Chain == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + "(" + t.Chain + ")"
}

func Encode(t Task) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(t)
}

func Decode(body []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the pool does not retry the task.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
