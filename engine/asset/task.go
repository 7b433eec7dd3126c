package asset

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// Task is the future of one asynchronous load. It is completed exactly once.
type Task struct {
	id      uint64
	key     string
	locator string
	lod     int

	once    sync.Once
	done    chan struct{}
	content Content
	err     error
}

func newTask(id uint64, key, locator string, lod int) *Task {
	return &Task{
		id:      id,
		key:     key,
		locator: locator,
		lod:     lod,
		done:    make(chan struct{}),
	}
}

// ID returns the request id, as reported by the Loading state.
func (t *Task) ID() uint64 { return t.id }

// Key returns the cache key the task loads.
func (t *Task) Key() string { return t.key }

// Locator returns the locator handed to the loader.
func (t *Task) Locator() string { return t.locator }

// LOD returns the requested level of detail.
func (t *Task) LOD() int { return t.lod }

// Done is closed once the task has a result.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result blocks until the task completes and returns the loader's content or error.
func (t *Task) Result() (Content, error) {
	<-t.done
	return t.content, t.err
}

// run invokes the loader, converting a panic into an error. A nil content with no error is treated as Empty.
func (t *Task) run(ctx context.Context, load Loader) (c Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, errors.Newf("loader panic: %v", r)
		}
	}()
	c, err = load(ctx, t.locator, t.lod)
	if err == nil && c == nil {
		c = Empty{}
	}
	return c, err
}

func (t *Task) complete(c Content, err error) {
	t.once.Do(func() {
		t.content, t.err = c, err
		close(t.done)
	})
}
