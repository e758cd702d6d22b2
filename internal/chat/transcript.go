package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const welcomeText = "Welcome! How can I assist you today?"

// defaultRespondTimeout bounds a single responder call. The collaborator
// contract has no retry; a timed-out call surfaces as an error message in
// the transcript.
const defaultRespondTimeout = 30 * time.Second

// Message is one transcript entry. IDs are monotonic within a project's
// transcript; the seeded welcome message is always id 1.
type Message struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"` // "user" or "system"
	CreatedAt time.Time `json:"created_at"`
}

// Task is the future for one in-flight responder call. Done is closed
// when the response (or its error) has been appended to the transcript.
type Task struct {
	ID   string
	Done chan struct{}

	mu    sync.Mutex
	reply Message
	err   error
}

// Wait blocks until the response is delivered or ctx expires.
func (t *Task) Wait(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-t.Done:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reply, t.err
}

func (t *Task) resolve(reply Message, err error) {
	t.mu.Lock()
	t.reply = reply
	t.err = err
	t.mu.Unlock()
	close(t.Done)
}

type pendingCall struct {
	task   *Task
	req    Request
	cancel context.CancelFunc
	ctx    context.Context
}

type transcript struct {
	messages []Message
	nextID   int
	queue    chan *pendingCall
}

// Manager owns per-project chat transcripts. User messages are appended
// synchronously; responder replies are produced by one worker goroutine
// per project that drains a queue, so replies always land in call order
// even when responder latencies vary.
type Manager struct {
	responder Responder
	logger    *slog.Logger
	timeout   time.Duration

	mu          sync.Mutex
	transcripts map[string]*transcript

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager delivering responses from responder.
func NewManager(responder Responder) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		responder:   responder,
		logger:      slog.Default(),
		timeout:     defaultRespondTimeout,
		transcripts: make(map[string]*transcript),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetTimeout overrides the per-response bounded wait (for testing).
func (m *Manager) SetTimeout(d time.Duration) { m.timeout = d }

// Close stops all transcript workers and waits for them to drain.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// Transcript returns a copy of the project's message list, seeding the
// welcome message on first access.
func (m *Manager) Transcript(projectID string) []Message {
	m.mu.Lock()
	tr := m.transcriptLocked(projectID)
	out := append([]Message(nil), tr.messages...)
	m.mu.Unlock()
	return out
}

// DropProject discards a project's transcript and stops its worker queue.
// Called when the owning project is deleted.
func (m *Manager) DropProject(projectID string) {
	m.mu.Lock()
	tr, ok := m.transcripts[projectID]
	if ok {
		delete(m.transcripts, projectID)
	}
	m.mu.Unlock()
	if ok {
		close(tr.queue)
	}
}

// Send appends the user message to the project transcript and queues an
// asynchronous responder call. The returned Task resolves when the reply
// has been appended; replies are delivered strictly in Send order.
func (m *Manager) Send(req Request) (Message, *Task, error) {
	if req.Message == "" {
		return Message{}, nil, fmt.Errorf("message must not be empty")
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}

	m.mu.Lock()
	tr := m.transcriptLocked(req.ProjectID)
	userMsg := tr.append(req.Message, "user")

	callCtx, cancel := context.WithTimeout(m.ctx, m.timeout)
	call := &pendingCall{
		task:   &Task{ID: uuid.New().String(), Done: make(chan struct{})},
		req:    req,
		ctx:    callCtx,
		cancel: cancel,
	}
	// Enqueue under the lock so DropProject cannot close the queue
	// between lookup and send.
	select {
	case tr.queue <- call:
	default:
		m.mu.Unlock()
		cancel()
		return Message{}, nil, fmt.Errorf("chat queue full for project %s", req.ProjectID)
	}
	m.mu.Unlock()
	return userMsg, call.task, nil
}

// transcriptLocked returns (creating if needed) the project transcript and
// starts its worker. Caller must hold m.mu.
func (m *Manager) transcriptLocked(projectID string) *transcript {
	tr, ok := m.transcripts[projectID]
	if !ok {
		tr = &transcript{queue: make(chan *pendingCall, 64)}
		tr.append(welcomeText, "system")
		m.transcripts[projectID] = tr
		m.wg.Add(1)
		go m.runWorker(projectID, tr)
	}
	return tr
}

// runWorker drains one project's queue sequentially. Processing one call
// to completion before starting the next is what pins replies to call
// order.
func (m *Manager) runWorker(projectID string, tr *transcript) {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case call, ok := <-tr.queue:
			if !ok {
				return
			}
			m.process(projectID, tr, call)
		}
	}
}

func (m *Manager) process(projectID string, tr *transcript, call *pendingCall) {
	defer call.cancel()

	text, err := m.responder.Respond(call.ctx, call.req)
	if err != nil {
		m.logger.Warn("responder call failed", "project_id", projectID, "error", err)
		text = fmt.Sprintf("Sorry, I could not produce a response: %v", err)
	}

	m.mu.Lock()
	// The transcript may have been dropped while the call was in flight.
	if cur, ok := m.transcripts[projectID]; !ok || cur != tr {
		m.mu.Unlock()
		call.task.resolve(Message{}, fmt.Errorf("project transcript dropped"))
		return
	}
	reply := tr.append(text, "system")
	m.mu.Unlock()

	call.task.resolve(reply, err)
}

func (tr *transcript) append(text, sender string) Message {
	tr.nextID++
	msg := Message{
		ID:        tr.nextID,
		Text:      text,
		Sender:    sender,
		CreatedAt: time.Now().UTC(),
	}
	tr.messages = append(tr.messages, msg)
	return msg
}
