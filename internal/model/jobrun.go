package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobRun 定时任务的一次执行记录
type JobRun struct {
	ID           int64
	Job          string
	Status       JobStatus
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

type JobRunModel struct {
	db  *sql.DB
	now func() time.Time
}

func NewJobRunModel(db *sql.DB) *JobRunModel {
	return &JobRunModel{db: db, now: time.Now}
}

// Start 创建执行中的记录
func (m *JobRunModel) Start(ctx context.Context, job string) (int64, error) {
	result, err := m.db.ExecContext(ctx,
		`INSERT INTO job_runs (job, status, started_at) VALUES (?, ?, ?)`,
		job, JobStatusInProgress, m.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("创建任务记录失败: %w", err)
	}
	return result.LastInsertId()
}

// MarkCompleted 标记执行完成
func (m *JobRunModel) MarkCompleted(ctx context.Context, id int64) error {
	return m.finish(ctx, id, JobStatusCompleted, "")
}

// MarkFailed 标记执行失败
func (m *JobRunModel) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	return m.finish(ctx, id, JobStatusFailed, errorMsg)
}

func (m *JobRunModel) finish(ctx context.Context, id int64, status JobStatus, errorMsg string) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE job_runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, errorMsg, m.now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("更新任务记录失败: %w", err)
	}
	return nil
}

// FailIncomplete 将上次进程退出时仍在执行中的记录标记为失败，返回数量
func (m *JobRunModel) FailIncomplete(ctx context.Context) (int64, error) {
	result, err := m.db.ExecContext(ctx,
		`UPDATE job_runs SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		JobStatusFailed, "进程退出时任务未完成", m.now().UnixMilli(), JobStatusInProgress,
	)
	if err != nil {
		return 0, fmt.Errorf("更新未完成任务失败: %w", err)
	}
	return result.RowsAffected()
}

// Last 查询某个任务最近一次执行记录
func (m *JobRunModel) Last(ctx context.Context, job string) (*JobRun, error) {
	var (
		run                 JobRun
		startedAt, finished int64
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT id, job, status, error_message, started_at, finished_at FROM job_runs WHERE job = ? ORDER BY id DESC LIMIT 1`,
		job,
	).Scan(&run.ID, &run.Job, &run.Status, &run.ErrorMessage, &startedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	run.StartedAt = time.UnixMilli(startedAt)
	if finished > 0 {
		run.FinishedAt = time.UnixMilli(finished)
	}
	return &run, nil
}
