package simulator

import (
	"sync"

	"k8s.io/klog/v2"
)

type cycleFunc func() (map[string]interface{}, error)

// task holds the result of one entity cycle. It is written once by the worker.
type task struct {
	eid    string
	fn     cycleFunc
	done   chan struct{}
	result map[string]interface{}
	err    error
}

func newTask(eid string, fn cycleFunc) *task {
	return &task{eid: eid, fn: fn, done: make(chan struct{})}
}

// completedTask is a task whose result is ready without running anything.
func completedTask(eid string, result map[string]interface{}, err error) *task {
	t := newTask(eid, nil)
	t.finish(result, err)
	return t
}

func (t *task) finish(result map[string]interface{}, err error) {
	t.result = result
	t.err = err
	close(t.done)
}

func (t *task) run() {
	defer func() {
		if r := recover(); r != nil {
			klog.ErrorS(nil, "Recovered panic in entity cycle", "eid", t.eid, "panic", r)
			t.finish(nil, ErrCyclePanic)
		}
	}()
	t.finish(t.fn())
}

// Wait blocks until the task has a result.
func (t *task) Wait() (map[string]interface{}, error) {
	<-t.done
	return t.result, t.err
}

// worker runs submitted tasks one at a time in submission order.
type worker struct {
	mux     sync.Mutex
	queue   []*task
	stopped bool

	signal chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newWorker() *worker {
	return &worker{
		signal: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

func (w *worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.stopCh:
				return
			case <-w.signal:
			}
			for {
				t := w.next()
				if t == nil {
					break
				}
				t.run()
			}
		}
	}()
}

func (w *worker) next() *task {
	w.mux.Lock()
	defer w.mux.Unlock()
	if w.stopped || len(w.queue) == 0 {
		return nil
	}
	t := w.queue[0]
	w.queue[0] = nil
	w.queue = w.queue[1:]
	return t
}

// Submit queues fn and returns without waiting. After Stop the task fails
// with ErrFinalized.
func (w *worker) Submit(eid string, fn cycleFunc) *task {
	w.mux.Lock()
	if w.stopped {
		w.mux.Unlock()
		return completedTask(eid, nil, ErrFinalized)
	}
	t := newTask(eid, fn)
	w.queue = append(w.queue, t)
	w.mux.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
	return t
}

// Stop waits for the running task and fails the queued ones.
func (w *worker) Stop() {
	w.mux.Lock()
	if w.stopped {
		w.mux.Unlock()
		return
	}
	w.stopped = true
	abandoned := w.queue
	w.queue = nil
	w.mux.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	for _, t := range abandoned {
		t.finish(nil, ErrFinalized)
	}
	if len(abandoned) > 0 {
		klog.V(3).InfoS("Abandoned queued entity cycles", "count", len(abandoned))
	}
}
