package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound 表示记录不存在
var ErrNotFound = errors.New("not found")

// Session 会话实体
type Session struct {
	ID        string          `json:"id"`
	Model     string          `json:"model"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const sessionColumns = "id, model, metadata, created_at, updated_at"

// CreateSession 创建新会话
func (db *DB) CreateSession(model string, metadata json.RawMessage) (*Session, error) {
	return db.CreateSessionWithID(uuid.New().String(), model, metadata)
}

// CreateSessionWithID 使用指定 ID 创建新会话
func (db *DB) CreateSessionWithID(id, model string, metadata json.RawMessage) (*Session, error) {
	return createSession(db, id, model, metadata)
}

// CreateSessionWithID 在事务中使用指定 ID 创建会话
func (tx *Tx) CreateSessionWithID(id, model string, metadata json.RawMessage) (*Session, error) {
	return createSession(tx, id, model, metadata)
}

func createSession(e execer, id, model string, metadata json.RawMessage) (*Session, error) {
	now := time.Now().UTC()
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	_, err := e.Exec(
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?)",
		id, model, string(metadata), now, now,
	)
	if err != nil {
		return nil, err
	}

	return &Session{ID: id, Model: model, Metadata: metadata, CreatedAt: now, UpdatedAt: now}, nil
}

// EnsureSession 返回已有会话；不存在时用给定 ID 创建
func (db *DB) EnsureSession(id, model string) (*Session, error) {
	s, err := db.GetSession(id)
	if errors.Is(err, ErrNotFound) {
		return db.CreateSessionWithID(id, model, nil)
	}
	return s, err
}

// GetSession 获取会话
func (db *DB) GetSession(id string) (*Session, error) {
	s, err := scanSession(db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListSessions 按最近更新时间列出会话
func (db *DB) ListSessions(limit, offset int) ([]*Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions ORDER BY updated_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateSessionModel 更新会话的模型
func (db *DB) UpdateSessionModel(id, model string) error {
	return mustAffect(db.Exec(
		"UPDATE sessions SET model = ?, updated_at = ? WHERE id = ?",
		model, time.Now().UTC(), id,
	))
}

// touchSession 刷新 updated_at
func (tx *Tx) touchSession(id string) error {
	return mustAffect(tx.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", time.Now().UTC(), id))
}

// DeleteSession 删除会话及其消息
func (db *DB) DeleteSession(id string) error {
	return mustAffect(db.Exec("DELETE FROM sessions WHERE id = ?", id))
}

// PruneSessions 删除超过 olderThan 未更新的会话，返回删除数量
func (db *DB) PruneSessions(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := db.Exec("DELETE FROM sessions WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var metadata string
	if err := row.Scan(&s.ID, &s.Model, &metadata, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Metadata = json.RawMessage(metadata)
	return &s, nil
}
