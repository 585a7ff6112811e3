package chat

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/andy6609/line-relay/internal/protocol"
)

type job struct {
	sender *Session
	cmd    protocol.Command
}

// Dispatcher is the shared worker pool in front of the Router. Each session
// is pinned to one worker queue so its commands are routed in order.
type Dispatcher struct {
	queues   []chan job
	router   *Router
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      zerolog.Logger
}

func NewDispatcher(workers, queueSize int, router *Router, logger *zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 8
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		queues: make([]chan job, workers),
		router: router,
		stopCh: make(chan struct{}),
		log:    zerolog.Nop(),
	}
	for i := range d.queues {
		d.queues[i] = make(chan job, queueSize)
	}
	if logger != nil {
		d.log = logger.With().Str("component", "dispatcher").Logger()
	}
	return d
}

func (d *Dispatcher) Start() {
	for i := range d.queues {
		d.wg.Add(1)
		go d.run(d.queues[i])
	}
}

// Submit queues cmd on the sender's worker. It blocks while that queue is full
// and returns false once the dispatcher is stopped or the sender is closed.
func (d *Dispatcher) Submit(sender *Session, cmd protocol.Command) bool {
	q := d.queues[d.shard(sender.ID)]
	select {
	case q <- job{sender: sender, cmd: cmd}:
		return true
	case <-d.stopCh:
		return false
	case <-sender.Done():
		return false
	}
}

// Stop signals the workers to exit. Queued jobs are discarded.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) shard(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *Dispatcher) run(q <-chan job) {
	defer d.wg.Done()
	for {
		select {
		case j := <-q:
			d.process(j)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) process(j job) {
	start := time.Now()
	eventType := j.cmd.Kind.String()

	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error().Interface("panic", rec).Str("type", eventType).Msg("recovered while routing")
		}
		MessagesTotal.WithLabelValues(eventType).Inc()
		EventProcessingDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	d.router.Route(j.sender, j.cmd)
}
