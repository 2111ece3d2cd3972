package webhook

import (
	"context"
	"sync"
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
)

// Engine relays inbound messages to the webhook on a fixed worker pool so
// the protocol event loop never waits on HTTP.
type Engine struct {
	forwarder *Forwarder
	sender    Sender
	queue     chan *deliveryTask
	workers   int
	seen      *gocache.Cache
	logger    *logrus.Entry

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

type deliveryTask struct {
	messageID string
	chatID    string
	text      string
}

type Stats struct {
	Queued    int   `json:"queued"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

func NewEngine(cfg Config, sender Sender) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = defaultDedupeTTL
	}

	ctx, cancel := context.WithCancel(context.Background())

	engine := &Engine{
		forwarder: NewForwarder(cfg),
		sender:    sender,
		queue:     make(chan *deliveryTask, cfg.QueueSize),
		workers:   cfg.Workers,
		seen:      gocache.New(cfg.DedupeTTL, 2*cfg.DedupeTTL),
		logger:    log.Component("webhook"),
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < engine.workers; i++ {
		engine.wg.Add(1)
		go engine.worker()
	}

	return engine
}

// HandleMessage is the session message handler. Messages without content,
// sent by this account, or already seen are skipped.
func (e *Engine) HandleMessage(msg session.InboundMessage) {
	if msg.Content == nil || msg.FromMe {
		return
	}
	if msg.ID != "" {
		if err := e.seen.Add(msg.ID, struct{}{}, gocache.DefaultExpiration); err != nil {
			e.logger.WithField("message_id", msg.ID).Debug("Skipping duplicate message")
			return
		}
	}

	e.enqueue(&deliveryTask{messageID: msg.ID, chatID: msg.ChatID, text: msg.Text()})
}

func (e *Engine) enqueue(task *deliveryTask) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.queue <- task:
	default:
		// A redelivery of a dropped message must not be treated as a duplicate.
		if task.messageID != "" {
			e.seen.Delete(task.messageID)
		}
		e.dropped.Add(1)
		e.logger.WithFields(logrus.Fields{
			"message_id": task.messageID,
			"from":       log.MaskJID(task.chatID),
		}).Warn("Webhook queue full, dropping message")
	}
}

// Shutdown stops accepting messages and waits for queued deliveries. When
// ctx ends first, in-flight requests are aborted.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.cancel()
		<-done
	}
	e.cancel()
}

func (e *Engine) Stats() Stats {
	return Stats{
		Queued:    len(e.queue),
		Delivered: e.delivered.Load(),
		Failed:    e.failed.Load(),
		Dropped:   e.dropped.Load(),
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for task := range e.queue {
		e.deliver(task)
	}
}

func (e *Engine) deliver(task *deliveryTask) {
	entry := e.logger.WithFields(logrus.Fields{
		"message_id": task.messageID,
		"from":       log.MaskJID(task.chatID),
	})
	entry.WithField("text", preview(task.text, previewLength)).Info("Forwarding message to webhook")

	resp, err := e.forwarder.Forward(e.ctx, Payload{From: task.chatID, Text: task.text})
	if err != nil {
		e.failed.Add(1)
		entry.WithError(err).Error("Webhook delivery failed")
		return
	}
	e.delivered.Add(1)

	if resp.Reply == "" {
		return
	}
	if err := e.sender.SendText(e.ctx, task.chatID, resp.Reply); err != nil {
		entry.WithError(err).Error("Failed to send webhook reply")
		return
	}
	entry.WithField("reply", preview(resp.Reply, previewLength)).Info("Webhook reply sent")
}
