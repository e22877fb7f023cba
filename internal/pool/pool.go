// Package pool implements the encoder-side concurrent job pool (spec
// section 4.8): N worker engines, a bounded FIFO of submitted frames
// dispatched round-robin on GOP boundaries, and in-order retrieval of
// finished samples regardless of which worker finishes first.
//
// The synchronization shape - a counting semaphore gating admission plus
// a condition variable signaling queue-head completion - is grounded on
// the concurrency-adjacent internal/pool package of
// github.com/deepteams/webp (internal/pool/pool.go) for the buffer-pool
// half, and on original_source/EncoderSDK/EncoderPool.cpp (the real
// CineForm SDK's CEncoderPool) for the round-robin-by-GOP dispatch and
// Stop/drain teardown semantics.
package pool

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/cineform/codec/internal/metadata"
)

// Status is a job's lifecycle state.
type Status int

const (
	StatusUnassigned Status = iota
	StatusEncoding
	StatusFinished
)

// ErrNotFinished is returned by TrySample when the queue head has not
// completed yet.
var ErrNotFinished = errors.New("pool: sample not finished")

// ErrStopped is returned by Submit once the pool has been stopped.
var ErrStopped = errors.New("pool: pool is stopped")

// EncodeFunc is the per-frame encode callback supplied by the caller; it
// is free to use the cineform package's Encoder internally. Pool knows
// nothing about pixel formats or bitstreams, only about ordering jobs
// across workers.
type EncodeFunc func(job *Job) ([]byte, error)

// Job is one submitted frame, single-owner per spec 3: ownership moves
// from submitter to queue to worker and back to the consumer.
type Job struct {
	FrameNumber      int64
	FrameBuffer      []byte
	Pitch            int
	KeyFrame         bool
	QualityOverride  int
	HasQualityOverride bool
	MetadataSnapshot *metadata.Blob
	Status           Status
	Err              error
	OutputSample     []byte

	worker int
}

// Pool manages N encoder engines and an ordered queue of jobs.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond // signaled whenever a job's Status changes, or on Stop

	queue    []*Job
	capacity int
	admit    chan struct{} // counting semaphore: one slot per free queue entry

	workers   []chan *Job
	dispatch  int // round-robin cursor, advanced on key-frame submissions
	encode    EncodeFunc
	wg        sync.WaitGroup
	stopped   bool

	store *metadata.Store
}

// New creates a Pool with the given worker count and bounded queue
// length, driving frames through encode.
func New(workerCount, queueLength int, encode EncodeFunc, frameRate float64) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueLength < 1 {
		queueLength = 1
	}
	p := &Pool{
		capacity: queueLength,
		admit:    make(chan struct{}, queueLength),
		workers:  make([]chan *Job, workerCount),
		encode:   encode,
		store:    metadata.NewStore(frameRate),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < queueLength; i++ {
		p.admit <- struct{}{}
	}
	for i := range p.workers {
		p.workers[i] = make(chan *Job, queueLength)
		p.wg.Add(1)
		go p.runWorker(p.workers[i])
	}
	return p
}

// Metadata returns the pool's shared metadata store, for callers to
// populate global/per-eye tracks before submitting frames.
func (p *Pool) Metadata() *metadata.Store {
	return p.store
}

// Submit enqueues a frame for encoding, blocking while the queue is
// full. All frames in the same GOP are dispatched to the same worker;
// a key-frame submission advances the round-robin cursor.
func (p *Pool) Submit(frameNumber int64, frame []byte, pitch int, keyFrame bool, local *metadata.Blob) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.mu.Unlock()

	<-p.admit // blocks when the queue is full

	if local == nil {
		local = metadata.NewBlob()
	}
	p.store.NextFrame(local)
	snapshot := p.store.Merge()
	for _, tag := range local.Tags() {
		t, _ := local.Get(tag)
		snapshot.Set(t)
	}

	job := &Job{
		FrameNumber:      frameNumber,
		FrameBuffer:      frame,
		Pitch:            pitch,
		KeyFrame:         keyFrame,
		MetadataSnapshot: snapshot,
		Status:           StatusUnassigned,
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.admit <- struct{}{}
		return ErrStopped
	}
	if keyFrame {
		p.dispatch = (p.dispatch + 1) % len(p.workers)
	}
	job.worker = p.dispatch
	p.queue = append(p.queue, job)
	p.mu.Unlock()

	p.workers[job.worker] <- job
	return nil
}

func (p *Pool) runWorker(jobs chan *Job) {
	defer p.wg.Done()
	for job := range jobs {
		p.mu.Lock()
		job.Status = StatusEncoding
		p.mu.Unlock()

		out, err := p.encode(job)

		p.mu.Lock()
		job.OutputSample = out
		job.Err = err
		job.Status = StatusFinished
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}

// WaitSample blocks until the queue head is finished, then returns it in
// submission order. A later-completing GOP never overtakes an earlier
// one: the head is only released once its own status is finished.
func (p *Pool) WaitSample() (frameNumber int64, sample []byte, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if len(p.queue) == 0 {
			if p.stopped {
				return 0, nil, errors.New("pool: queue empty and pool stopped")
			}
			p.cond.Wait()
			continue
		}
		head := p.queue[0]
		if head.Status != StatusFinished {
			p.cond.Wait()
			continue
		}
		p.queue = p.queue[1:]
		p.admit <- struct{}{}
		return head.FrameNumber, head.OutputSample, head.Err
	}
}

// TrySample is the non-blocking variant of WaitSample: it returns
// ErrNotFinished immediately if the queue head has not completed.
func (p *Pool) TrySample() (frameNumber int64, sample []byte, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return 0, nil, ErrNotFinished
	}
	head := p.queue[0]
	if head.Status != StatusFinished {
		return 0, nil, ErrNotFinished
	}
	p.queue = p.queue[1:]
	p.admit <- struct{}{}
	return head.FrameNumber, head.OutputSample, head.Err
}

// Stop posts a close to every worker channel, waits for every queued job
// to finish, and joins every worker goroutine. It does not discard
// in-flight jobs; they are allowed to complete.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	for _, w := range p.workers {
		close(w)
	}
	p.wg.Wait()

	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}
