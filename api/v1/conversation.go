package v1

import (
	"context"
	"iter"
	"strings"
	"sync"

	"qwenlink/internal/chat"
	"qwenlink/internal/storage"
	"qwenlink/internal/tools"
	"qwenlink/pkg/logger"
)

// ChatService is the orchestrator used by the gateway.
type ChatService interface {
	ModelID() string
	GetChatMessageContents(ctx context.Context, history *chat.History, settings any, catalog *tools.Catalog) ([]*chat.Message, error)
	GetStreamingChatMessageContents(ctx context.Context, history *chat.History, settings any) iter.Seq2[*chat.StreamingMessage, error]
}

// Conversations runs chat turns against stored sessions. Turns on the same
// session are serialized; a turn is persisted only when it completes.
type Conversations struct {
	chat    ChatService
	db      *storage.DB
	catalog *tools.Catalog

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is dropped from Conversations.locks when its last holder or
// waiter releases it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewConversations creates a Conversations. catalog may be nil.
func NewConversations(svc ChatService, db *storage.DB, catalog *tools.Catalog) *Conversations {
	return &Conversations{chat: svc, db: db, catalog: catalog, locks: make(map[string]*sessionLock)}
}

func (c *Conversations) lock(sessionID string) func() {
	c.mu.Lock()
	l, ok := c.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		c.locks[sessionID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(c.locks, sessionID)
		}
		c.mu.Unlock()
	}
}

func (c *Conversations) lockCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

func (c *Conversations) load(sessionID, model string) (*chat.History, error) {
	if model == "" {
		model = c.chat.ModelID()
	}
	if _, err := c.db.EnsureSession(sessionID, model); err != nil {
		return nil, err
	}
	return c.db.LoadHistory(sessionID)
}

// Send appends message to the session, runs the orchestrator and stores the
// user message, any tool rounds and the reply.
func (c *Conversations) Send(ctx context.Context, sessionID, model, message string, settings any) (*chat.Message, error) {
	defer c.lock(sessionID)()

	history, err := c.load(sessionID, model)
	if err != nil {
		return nil, err
	}
	start := history.Len()
	history.AddUserMessage(message)

	replies, err := c.chat.GetChatMessageContents(ctx, history, settings, c.catalog)
	if err != nil {
		return nil, err
	}
	reply := replies[0]

	turn := append(history.Messages()[start:], *reply)
	if err := c.db.SaveMessages(sessionID, turn...); err != nil {
		return nil, err
	}
	return reply, nil
}

// Stream is the streaming form of Send. The assembled reply is stored once
// the stream is drained; a stream abandoned by the caller stores nothing.
// Tool calls are never stored from a stream since no tool round follows
// them, and a reply made only of tool calls leaves the session unchanged.
func (c *Conversations) Stream(ctx context.Context, sessionID, model, message string, settings any) iter.Seq2[*chat.StreamingMessage, error] {
	return func(yield func(*chat.StreamingMessage, error) bool) {
		defer c.lock(sessionID)()

		history, err := c.load(sessionID, model)
		if err != nil {
			yield(nil, err)
			return
		}
		history.AddUserMessage(message)
		user := history.At(history.Len() - 1)

		reply := chat.Message{Role: chat.RoleAssistant, Metadata: &chat.Metadata{}}
		var content strings.Builder
		sawToolCalls := false
		for delta, err := range c.chat.GetStreamingChatMessageContents(ctx, history, settings) {
			if err != nil {
				yield(nil, err)
				return
			}
			content.WriteString(delta.Content)
			sawToolCalls = sawToolCalls || len(delta.ToolCalls) > 0
			reply.ModelID = delta.ModelID
			mergeMetadata(reply.Metadata, delta.Metadata)
			if !yield(delta, nil) {
				return
			}
		}
		reply.Content = content.String()
		if sawToolCalls && reply.Content == "" {
			logger.Debug().Str("session_id", sessionID).Msg("Streamed reply carried only tool calls, turn not stored")
			return
		}

		if err := c.db.SaveMessages(sessionID, user, reply); err != nil {
			yield(nil, err)
		}
	}
}

func mergeMetadata(dst, src *chat.Metadata) {
	if src == nil {
		return
	}
	if src.RequestID != "" {
		dst.RequestID = src.RequestID
	}
	if src.FinishReason != "" {
		dst.FinishReason = src.FinishReason
	}
	if src.Usage != nil {
		dst.Usage = src.Usage
	}
}
