package asset

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/allocator"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Materialized locates inline geometry after it has been streamed into device memory.
type Materialized struct {
	Vertex      allocator.Slot
	Index       allocator.Slot
	IndexFormat allocator.IndexFormat
}

// Materializer streams inline mesh data into device memory under a staging key (content id and LOD). Streaming
// the same key twice must not upload again.
type Materializer interface {
	Materialize(key string, vertices []byte, indices []uint32) (Materialized, error)
}

// Stats counts pipeline activity since creation.
type Stats struct {
	Requests  int
	Fallbacks int
	Started   int
	Completed int
	Failed    int
	NotFound  int
	Resident  int
	Loading   int
	Errors    int
	// Backlog is the number of loads waiting for room in the worker queue.
	Backlog int
}

type pipelineImpl struct {
	geometry Materializer
	registry Registry
	logger   logrus.FieldLogger
	ctx      context.Context

	workers   int
	queueSize int
	pool      worker.DynamicWorkerPool

	cache    map[string]State
	inFlight map[string]*Task
	aliases  map[string][]string
	nextID   uint64
	stats    Stats

	// backlog holds dispatched loads the worker queue has no room for yet; submitted counts loads handed to the
	// pool that have not finished. Keeping submitted below queueSize means SubmitTask never blocks.
	backlog   []queuedLoad
	submitted int
	freed     chan struct{}

	mu        *sync.Mutex
	completed []*Task
}

type queuedLoad struct {
	task *Task
	load Loader
}

// Pipeline stages content descriptors into device-resident assets. Every method must be called from the frame
// thread; loader completions are applied by Poll on that thread. Loads beyond the worker queue's capacity wait in
// a backlog that Poll and Wait hand to the pool as room frees up, so Request never blocks.
type Pipeline interface {
	// Request returns the current state of c at lod, starting a load if nothing is cached. While the requested
	// LOD is loading, the nearest coarser resident LOD is returned instead. The call never blocks on a load.
	//
	// Parameters:
	//   - c: the content descriptor
	//   - lod: the level of detail
	//
	// Returns:
	//   - State: the state to draw with this frame
	//   - error: allocator or capacity failure while streaming inline geometry; never a load failure
	Request(c Content, lod int) (State, error)

	// LoadAsset begins staging c at lod and caches the resulting state. Inline content is staged synchronously;
	// references are dispatched to a loader unless one is already in flight for the same key.
	//
	// Parameters:
	//   - c: the content descriptor
	//   - lod: the level of detail
	//
	// Returns:
	//   - State: the new state
	//   - error: allocator or capacity failure; such errors are not cached
	LoadAsset(c Content, lod int) (State, error)

	// Poll applies finished loads and submits backlogged ones. A failed load becomes a cached ErrorState; a
	// successful one is re-requested with the concrete content it produced.
	//
	// Returns:
	//   - int: number of completions applied
	//   - error: allocator failure while staging a completed load
	Poll() (int, error)

	// Wait blocks until every load in flight at call time has finished, submitting backlogged loads as the queue
	// drains. It does not apply them; call Poll after.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: ctx's error if it ends first
	Wait(ctx context.Context) error

	// Unload always fails with ErrUnsupported.
	Unload(c Content, lod int) error

	// State returns the cached state for a key.
	State(key string) (State, bool)

	// InFlight returns the number of outstanding loads.
	InFlight() int

	// Stats returns activity counters and a census of the cache.
	Stats() Stats

	// Registry returns the loader registry.
	Registry() Registry
}

var _ Pipeline = &pipelineImpl{}

// NewPipeline creates a staging pipeline.
//
// Parameters:
//   - geometry: streams inline meshes into device memory; may be nil when only cameras are staged
//   - options: variadic list of PipelineBuilderOption
//
// Returns:
//   - Pipeline: the pipeline
func NewPipeline(geometry Materializer, options ...PipelineBuilderOption) Pipeline {
	p := &pipelineImpl{
		geometry:  geometry,
		ctx:       context.Background(),
		workers:   max(runtime.NumCPU()-1, 1),
		queueSize: 256,
		cache:     make(map[string]State),
		inFlight:  make(map[string]*Task),
		aliases:   make(map[string][]string),
		freed:     make(chan struct{}, 1),
		mu:        &sync.Mutex{},
	}
	for _, opt := range options {
		opt(p)
	}
	p.logger = common.ComponentLogger(p.logger, "asset.pipeline")
	if p.registry == nil {
		p.registry = NewRegistry(p.logger)
	}
	p.pool = worker.NewDynamicWorkerPool(p.workers, p.queueSize, 1*time.Second)
	return p
}

func (p *pipelineImpl) Request(c Content, lod int) (State, error) {
	p.stats.Requests++
	st, err := p.stage(c, lod)
	if err != nil {
		return nil, err
	}
	if _, loading := st.(Loading); loading {
		if fb, ok := p.fallback(ContentID(c), lod); ok {
			p.stats.Fallbacks++
			return fb, nil
		}
	}
	return st, nil
}

// stage returns the cached state of c at lod, loading it when absent.
func (p *pipelineImpl) stage(c Content, lod int) (State, error) {
	if st, ok := p.cache[Key(c, lod)]; ok {
		return st, nil
	}
	return p.LoadAsset(c, lod)
}

// fallback finds the resident state with the smallest LOD above lod for the same content id.
func (p *pipelineImpl) fallback(id string, lod int) (State, bool) {
	best := -1
	var found State
	for key, st := range p.cache {
		kid, klod, ok := SplitKey(key)
		if !ok || kid != id || klod <= lod {
			continue
		}
		if _, resident := st.(Resident); !resident {
			continue
		}
		if best < 0 || klod < best {
			best, found = klod, st
		}
	}
	return found, best >= 0
}

func (p *pipelineImpl) LoadAsset(c Content, lod int) (State, error) {
	key := Key(c, lod)
	id := ContentID(c)

	switch v := c.(type) {
	case nil, Empty:
		p.cache[key] = EmptyState{}
		return EmptyState{}, nil

	case Mesh:
		if p.geometry == nil {
			return nil, common.InvalidArgument("stage %q: pipeline has no geometry materializer", key)
		}
		if v.VertexStride == 0 {
			return nil, common.InvalidArgument("stage %q: zero vertex stride", key)
		}
		m, err := p.geometry.Materialize(key, v.Vertices, v.Indices)
		if err != nil {
			return nil, errors.Wrapf(err, "stage %q", key)
		}
		st := Resident{
			ContentID:    id,
			LOD:          lod,
			HasGeometry:  true,
			Vertex:       m.Vertex,
			Index:        m.Index,
			IndexFormat:  m.IndexFormat,
			IndexCount:   uint32(len(v.Indices)),
			VertexCount:  uint32(len(v.Vertices)) / v.VertexStride,
			VertexStride: v.VertexStride,
		}
		p.cache[key] = st
		p.logger.WithFields(logrus.Fields{"key": key, "content_id": id}).Debug("mesh resident")
		return st, nil

	case CameraContent:
		st := Resident{ContentID: id, LOD: lod, Camera: v.Projection}
		p.cache[key] = st
		return st, nil

	case Reference:
		return p.dispatch(key, v.Locator, lod), nil
	}
	return nil, common.InvalidArgument("stage %q: unknown content %T", key, c)
}

func (p *pipelineImpl) dispatch(key, locator string, lod int) State {
	if t, ok := p.inFlight[key]; ok {
		return Loading{RequestID: t.ID()}
	}

	load, kind, err := p.registry.Resolve(locator)
	if err != nil {
		p.stats.NotFound++
		p.logger.WithFields(logrus.Fields{"key": key, "lod": lod}).WithError(err).Warn("no loader for locator")
		st := ErrorState{ContentID: locator, LOD: lod, Reason: err.Error(), Err: err}
		p.cache[key] = st
		return st
	}

	p.nextID++
	t := newTask(p.nextID, key, locator, lod)
	p.inFlight[key] = t
	st := Loading{RequestID: t.ID()}
	p.cache[key] = st
	p.stats.Started++
	p.logger.WithFields(logrus.Fields{"key": key, "request_id": t.ID(), "matcher": kind.String()}).Debug("load started")

	p.backlog = append(p.backlog, queuedLoad{task: t, load: load})
	p.flush()
	return st
}

// flush submits backlogged loads while the worker queue has room.
func (p *pipelineImpl) flush() {
	for len(p.backlog) > 0 {
		p.mu.Lock()
		room := p.submitted < p.queueSize
		if room {
			p.submitted++
		}
		p.mu.Unlock()
		if !room {
			p.logger.WithField("backlog", len(p.backlog)).Debug("loader queue full")
			return
		}

		q := p.backlog[0]
		p.backlog[0] = queuedLoad{}
		p.backlog = p.backlog[1:]
		ctx := p.ctx
		p.pool.SubmitTask(worker.Task{
			ID: int(q.task.ID()),
			Do: func() (any, error) {
				c, err := q.task.run(ctx, q.load)
				p.finish(q.task, c, err)
				return nil, nil
			},
		})
	}
}

// finish queues t for Poll and then completes it, so a task seen as done is always already queued.
func (p *pipelineImpl) finish(t *Task, c Content, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, t)
	p.submitted--
	t.complete(c, err)
	select {
	case p.freed <- struct{}{}:
	default:
	}
}

func (p *pipelineImpl) Poll() (int, error) {
	p.mu.Lock()
	done := p.completed
	p.completed = nil
	p.mu.Unlock()
	defer p.flush()

	for i, t := range done {
		if err := p.apply(t); err != nil {
			p.mu.Lock()
			p.completed = append(slices.Clone(done[i+1:]), p.completed...)
			p.mu.Unlock()
			return i, err
		}
	}
	return len(done), nil
}

func (p *pipelineImpl) apply(t *Task) error {
	key := t.Key()
	delete(p.inFlight, key)
	delete(p.cache, key)
	p.stats.Completed++

	content, err := t.Result()
	if err != nil {
		p.stats.Failed++
		err = common.LoadFailed(err, t.Locator(), t.LOD())
		p.logger.WithFields(logrus.Fields{"key": key, "request_id": t.ID()}).WithError(err).Warn("load failed")
		p.settle(key, ErrorState{ContentID: t.Locator(), LOD: t.LOD(), Reason: err.Error(), Err: err})
		return nil
	}

	st, err := p.stage(content, t.LOD())
	if err != nil {
		return errors.Wrapf(err, "complete %q", key)
	}
	if _, loading := st.(Loading); loading {
		// the loader returned another reference; key follows it until that load settles
		inner := Key(content, t.LOD())
		if inner != key {
			p.cache[key] = st
			p.aliases[inner] = append(p.aliases[inner], key)
		}
		return nil
	}
	p.settle(key, st)
	p.logger.WithFields(logrus.Fields{"key": key, "content_id": ContentID(content)}).Debug("load applied")
	return nil
}

// settle records a terminal state for key and every key aliased to it.
func (p *pipelineImpl) settle(key string, st State) {
	p.cache[key] = st
	waiting := p.aliases[key]
	delete(p.aliases, key)
	for _, alias := range waiting {
		p.settle(alias, st)
	}
}

func (p *pipelineImpl) Wait(ctx context.Context) error {
	for p.flush(); len(p.backlog) > 0; p.flush() {
		select {
		case <-p.freed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range p.inFlight {
		g.Go(func() error {
			select {
			case <-t.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

func (p *pipelineImpl) Unload(c Content, lod int) error {
	return common.Unsupported("asset unload " + Key(c, lod))
}

func (p *pipelineImpl) State(key string) (State, bool) {
	st, ok := p.cache[key]
	return st, ok
}

func (p *pipelineImpl) InFlight() int {
	return len(p.inFlight)
}

func (p *pipelineImpl) Stats() Stats {
	s := p.stats
	s.Backlog = len(p.backlog)
	for _, st := range p.cache {
		switch st.(type) {
		case Resident:
			s.Resident++
		case Loading:
			s.Loading++
		case ErrorState:
			s.Errors++
		}
	}
	return s
}

func (p *pipelineImpl) Registry() Registry {
	return p.registry
}
