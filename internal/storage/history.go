package storage

import (
	"encoding/json"
	"fmt"

	"qwenlink/internal/chat"
)

// LoadHistory 读取会话的全部消息并转换为 chat.History
func (db *DB) LoadHistory(sessionID string) (*chat.History, error) {
	if _, err := db.GetSession(sessionID); err != nil {
		return nil, err
	}

	rows, err := db.GetMessages(sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	history := chat.NewHistory()
	for _, row := range rows {
		msg, err := toChatMessage(row)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", row.ID, err)
		}
		history.Add(msg)
	}
	return history, nil
}

// SaveMessages 在同一事务中追加消息并刷新会话的 updated_at
func (db *DB) SaveMessages(sessionID string, msgs ...chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return db.WithTx(func(tx *Tx) error {
		for _, msg := range msgs {
			row, err := fromChatMessage(sessionID, msg)
			if err != nil {
				return err
			}
			if err := tx.AppendMessage(row); err != nil {
				return fmt.Errorf("append message: %w", err)
			}
		}
		return tx.touchSession(sessionID)
	})
}

func fromChatMessage(sessionID string, msg chat.Message) (*Message, error) {
	row := &Message{
		SessionID:  sessionID,
		Role:       msg.Role,
		Content:    msg.Content,
		Name:       msg.Name,
		ToolCallID: msg.ToolCallID,
		ModelID:    msg.ModelID,
	}
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return nil, fmt.Errorf("marshal tool calls: %w", err)
		}
		row.ToolCalls = data
	}
	if meta := msg.Metadata; meta != nil {
		row.RequestID = meta.RequestID
		if meta.Usage != nil {
			row.InputTokens = meta.Usage.InputTokens
			row.OutputTokens = meta.Usage.OutputTokens
		}
	}
	return row, nil
}

func toChatMessage(row *Message) (chat.Message, error) {
	msg := chat.Message{
		Role:       row.Role,
		Content:    row.Content,
		Name:       row.Name,
		ToolCallID: row.ToolCallID,
		ModelID:    row.ModelID,
	}
	if len(row.ToolCalls) > 0 {
		if err := json.Unmarshal(row.ToolCalls, &msg.ToolCalls); err != nil {
			return chat.Message{}, fmt.Errorf("unmarshal tool calls: %w", err)
		}
	}
	if row.RequestID != "" || row.InputTokens > 0 || row.OutputTokens > 0 {
		msg.Metadata = &chat.Metadata{RequestID: row.RequestID}
		if row.InputTokens > 0 || row.OutputTokens > 0 {
			msg.Metadata.Usage = &chat.Usage{
				InputTokens:  row.InputTokens,
				OutputTokens: row.OutputTokens,
				TotalTokens:  row.InputTokens + row.OutputTokens,
			}
		}
	}
	return msg, nil
}
