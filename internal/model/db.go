package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS histories (
		id          TEXT PRIMARY KEY,
		query       TEXT NOT NULL,
		summary     TEXT NOT NULL DEFAULT '',
		events      TEXT NOT NULL DEFAULT '[]',
		event_count INTEGER NOT NULL DEFAULT 0,
		searched    INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_histories_created_at ON histories (created_at)`,
	`CREATE TABLE IF NOT EXISTS job_runs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		job           TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'in_progress',
		error_message TEXT NOT NULL DEFAULT '',
		started_at    INTEGER NOT NULL,
		finished_at   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_runs_job_status ON job_runs (job, status)`,
}

// Open 打开 sqlite 数据库并创建表结构
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// sqlite 同一时间只允许一个写入者
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate 创建缺失的表和索引
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("创建数据库Schema失败: %w", err)
		}
	}
	return nil
}
