// 包 store 提供雪道快照的持久化：
// - File：每个雪场一个 JSON 文档（默认）
// - SQLite：每个雪场一行，文档以同一编码存储
// 两者只保留最近一次快照，不做历史归档。
package store

import (
	"context"
	"errors"
	"fmt"

	"ski-run-open-bot/internal/model"
)

// Store 为快照存取接口，监控循环只依赖该接口。
type Store interface {
	Save(ctx context.Context, snap model.Snapshot) error
	Load(ctx context.Context, resort string) (model.Snapshot, error)
	Reset(ctx context.Context, resort string) error
}

var (
	// ErrNotFound 表示该雪场尚无持久化快照（首次运行的正常情况）。
	ErrNotFound = errors.New("snapshot not found")
	// ErrParse 表示文档损坏或包含无法识别的枚举值。
	ErrParse = errors.New("snapshot parse error")
)

// ParseError 携带出错位置与原因，errors.Is(err, ErrParse) 为真。
type ParseError struct {
	Location string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse snapshot %s: %v", e.Location, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }
