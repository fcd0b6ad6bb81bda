package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"ski-run-open-bot/internal/model"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
// 每个雪场仅保留一行，document 列与 JSON 文件使用同一编码。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	// 说明：modernc sqlite 的 DSN 可直接使用文件路径，或以 'file:...' 前缀表示
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
            resort TEXT PRIMARY KEY,
            timestamp REAL,
            document TEXT NOT NULL,
            updated_at TIMESTAMP
        );`)
	if err != nil {
		return fmt.Errorf("exec migrate: %w", err)
	}
	return nil
}

// Save 插入或覆盖该雪场的快照（resort 唯一约束）。
func (s *SQLite) Save(ctx context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	b, err := Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots(resort, timestamp, document, updated_at)
        VALUES(?,?,?,?)
        ON CONFLICT(resort) DO UPDATE SET timestamp=excluded.timestamp, document=excluded.document, updated_at=excluded.updated_at`,
		snap.Resort, snap.Timestamp, string(b), time.Now())
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", snap.Resort, err)
	}
	return nil
}

// Load 读取该雪场的快照；无记录时返回 ErrNotFound。
func (s *SQLite) Load(ctx context.Context, resort string) (model.Snapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM snapshots WHERE resort = ?`, resort).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, fmt.Errorf("load %s: %w", resort, ErrNotFound)
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("query snapshot %s: %w", resort, err)
	}
	return Decode([]byte(doc), "sqlite:"+resort, resort)
}

// Reset 删除该雪场的快照行（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context, resort string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE resort = ?`, resort); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", resort, err)
	}
	return nil
}
