package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fachebot/oneline/internal/timeline"
	"github.com/google/uuid"
)

// History 一次时间轴生成的记录
type History struct {
	ID         string           `json:"id"`
	Query      string           `json:"query"`
	Summary    string           `json:"summary"`
	Events     []timeline.Event `json:"events"`
	EventCount int              `json:"eventCount"`
	Searched   bool             `json:"searched"` // 生成时是否使用了搜索结果
	CreatedAt  time.Time        `json:"createdAt"`
}

type HistoryModel struct {
	db  *sql.DB
	now func() time.Time
}

func NewHistoryModel(db *sql.DB) *HistoryModel {
	return &HistoryModel{db: db, now: time.Now}
}

// Create 保存一次生成结果
func (m *HistoryModel) Create(ctx context.Context, query string, data *timeline.Data, searched bool) (*History, error) {
	events := data.Events
	if events == nil {
		events = []timeline.Event{}
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("序列化事件失败: %w", err)
	}

	h := &History{
		ID:         uuid.NewString(),
		Query:      query,
		Summary:    data.Summary,
		Events:     events,
		EventCount: len(events),
		Searched:   searched,
		CreatedAt:  m.now().UTC().Truncate(time.Millisecond),
	}

	_, err = m.db.ExecContext(ctx,
		`INSERT INTO histories (id, query, summary, events, event_count, searched, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Query, h.Summary, string(payload), h.EventCount, h.Searched, h.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("保存历史记录失败: %w", err)
	}
	return h, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(row rowScanner) (*History, error) {
	var (
		h         History
		events    string
		createdAt int64
	)
	if err := row.Scan(&h.ID, &h.Query, &h.Summary, &events, &h.EventCount, &h.Searched, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(events), &h.Events); err != nil {
		return nil, fmt.Errorf("解析历史事件失败: %w", err)
	}
	h.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &h, nil
}

const historyColumns = `id, query, summary, events, event_count, searched, created_at`

// Get 按 ID 查询
func (m *HistoryModel) Get(ctx context.Context, id string) (*History, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM histories WHERE id = ?`, id)
	h, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

// List 按创建时间倒序返回最近的记录
func (m *HistoryModel) List(ctx context.Context, limit int) ([]*History, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := m.db.QueryContext(ctx, `SELECT `+historyColumns+` FROM histories ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询历史记录失败: %w", err)
	}
	defer rows.Close()

	list := make([]*History, 0)
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

// Delete 删除一条记录
func (m *HistoryModel) Delete(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM histories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("删除历史记录失败: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBefore 删除指定时间之前的记录，返回删除数量
func (m *HistoryModel) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM histories WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("清理历史记录失败: %w", err)
	}
	return result.RowsAffected()
}
