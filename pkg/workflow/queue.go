package workflow

import (
	"context"
	"strconv"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/h2200080115/telegram-bot/internal/metrics"
)

// Task is one unit of session work executed on a chat's lane.
type Task func(ctx context.Context)

type taskRecord struct {
	id         string
	task       Task
	enqueuedAt time.Time
}

// laneState manages execution state for a single chat lane.
type laneState struct {
	queue   []*taskRecord
	running int
	mu      sync.Mutex
}

// Queue serializes session work per chat: each chat gets a lane with
// concurrency 1, so two events for the same conversation can never
// interleave, while different chats proceed fully in parallel.
type Queue struct {
	lanes  map[int64]*laneState
	mu     sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// NewQueue creates an empty queue.
func NewQueue(logger zerolog.Logger) *Queue {
	metrics.EnsureRegistered()

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		lanes:  make(map[int64]*laneState),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "queue").Logger(),
	}
}

// Enqueue adds a task to the chat's lane and returns immediately. The task
// runs once every earlier task for the same chat has finished.
func (q *Queue) Enqueue(chatID int64, task Task) {
	ls := q.ensureLane(chatID)

	id, _ := gonanoid.New()
	taskID := strconv.FormatInt(chatID, 10) + "-" + id

	record := &taskRecord{
		id:         taskID,
		task:       task,
		enqueuedAt: time.Now(),
	}

	ls.mu.Lock()
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	q.logger.Debug().
		Int64("chat_id", chatID).
		Str("task_id", taskID).
		Int("queue_size", queueSize).
		Msg("Task enqueued")

	metrics.RecordQueueEnqueue(strconv.FormatInt(chatID, 10), queueSize)

	q.wg.Add(1)
	go q.processLane(chatID, ls)
}

func (q *Queue) ensureLane(chatID int64) *laneState {
	q.mu.RLock()
	ls, exists := q.lanes[chatID]
	q.mu.RUnlock()
	if exists {
		return ls
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if ls, exists = q.lanes[chatID]; !exists {
		ls = &laneState{}
		q.lanes[chatID] = ls
	}
	return ls
}

// processLane starts the next queued task if the lane is free.
func (q *Queue) processLane(chatID int64, ls *laneState) {
	ls.mu.Lock()
	if ls.running > 0 || len(ls.queue) == 0 {
		ls.mu.Unlock()
		return
	}
	record := ls.queue[0]
	ls.queue = ls.queue[1:]
	ls.running++
	ls.mu.Unlock()

	go q.executeTask(chatID, ls, record)
}

func (q *Queue) executeTask(chatID int64, ls *laneState, record *taskRecord) {
	defer q.wg.Done()

	runCtx, cancel := context.WithCancel(q.ctx)
	defer cancel()

	start := time.Now()
	record.task(runCtx)
	duration := time.Since(start)

	ls.mu.Lock()
	ls.running--
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	q.logger.Debug().
		Int64("chat_id", chatID).
		Str("task_id", record.id).
		Dur("duration", duration).
		Msg("Task completed")

	metrics.RecordQueueCompletion(strconv.FormatInt(chatID, 10), duration, true, queueSize)

	q.processLane(chatID, ls)
}

// Drain waits for every queued and running task to finish, up to timeout.
func (q *Queue) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		q.logger.Warn().Dur("timeout", timeout).Msg("Timeout waiting for queued tasks")
		return false
	}
}

// Close cancels task contexts and waits for running tasks to return.
func (q *Queue) Close() error {
	q.cancel()
	q.wg.Wait()
	return nil
}
