package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	audit "dirsync/pkg/platform/audit"
)

type recordingStore struct {
	mu     sync.Mutex
	events []audit.Event
	fail   bool
}

func (s *recordingStore) Append(_ context.Context, event audit.Event) error {
	if s.fail {
		return errors.New("unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func TestWorkerDrainsUntilClosed(t *testing.T) {
	store := &recordingStore{}
	inbox := make(chan audit.Event, 3)
	inbox <- audit.Event{Action: "a"}
	inbox <- audit.Event{Action: "b"}
	close(inbox)

	NewWorker(store, inbox, nil).Run(context.Background())

	assert.Len(t, store.events, 2)
}

func TestWorkerSurvivesStoreErrors(t *testing.T) {
	store := &recordingStore{fail: true}
	inbox := make(chan audit.Event, 1)
	inbox <- audit.Event{Action: "a"}
	close(inbox)

	assert.NotPanics(t, func() { NewWorker(store, inbox, nil).Run(context.Background()) })
}
