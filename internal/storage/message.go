package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message 消息实体。ToolCalls 保存为原始 JSON
type Message struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	Role         string          `json:"role"`
	Content      string          `json:"content"`
	Name         string          `json:"name,omitempty"`
	ToolCalls    json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	ModelID      string          `json:"model_id,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	InputTokens  int             `json:"input_tokens,omitempty"`
	OutputTokens int             `json:"output_tokens,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

const messageColumns = "id, session_id, role, content, name, tool_calls, tool_call_id, model_id, request_id, input_tokens, output_tokens, created_at"

// AppendMessage 添加消息，ID 与 CreatedAt 为空时自动填充
func (db *DB) AppendMessage(msg *Message) error {
	return appendMessage(db, msg)
}

// AppendMessage 在事务中添加消息
func (tx *Tx) AppendMessage(msg *Message) error {
	return appendMessage(tx, msg)
}

func appendMessage(e execer, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var toolCalls *string
	if len(msg.ToolCalls) > 0 {
		s := string(msg.ToolCalls)
		toolCalls = &s
	}

	_, err := e.Exec(
		"INSERT INTO messages ("+messageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.SessionID, msg.Role, msg.Content,
		nullString(msg.Name), toolCalls, nullString(msg.ToolCallID),
		nullString(msg.ModelID), nullString(msg.RequestID),
		msg.InputTokens, msg.OutputTokens, msg.CreatedAt,
	)
	return err
}

// GetMessages 按时间顺序返回会话消息；limit > 0 时只返回最近的 limit 条
func (db *DB) GetMessages(sessionID string, limit int) ([]*Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE session_id = ? ORDER BY created_at, rowid"
	args := []any{sessionID}
	if limit > 0 {
		query = "SELECT * FROM (SELECT " + messageColumns + ", rowid AS seq FROM messages WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?) ORDER BY created_at, seq"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var (
			m                                       Message
			name, toolCalls, toolCallID, model, req sql.NullString
			seq                                     int64
		)
		dest := []any{
			&m.ID, &m.SessionID, &m.Role, &m.Content,
			&name, &toolCalls, &toolCallID, &model, &req,
			&m.InputTokens, &m.OutputTokens, &m.CreatedAt,
		}
		if limit > 0 {
			dest = append(dest, &seq)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		m.Name = name.String
		m.ToolCallID = toolCallID.String
		m.ModelID = model.String
		m.RequestID = req.String
		if toolCalls.Valid && toolCalls.String != "" {
			m.ToolCalls = json.RawMessage(toolCalls.String)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// CountMessages 统计会话消息数量
func (db *DB) CountMessages(sessionID string) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID).Scan(&count)
	return count, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
