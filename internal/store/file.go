package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ski-run-open-bot/internal/model"
)

// File 为 JSON 文件存储：默认位置 {Dir}/{resort}_run_status.json；
// Path 非空时覆盖默认位置（测试夹具/多配置）。
type File struct {
	Dir  string
	Path string
}

// NewFile 创建文件存储，dir 为空时使用 ./data。
func NewFile(dir, override string) *File {
	if dir == "" {
		dir = "./data"
	}
	return &File{Dir: dir, Path: override}
}

// Location 返回某雪场快照的确定性存储位置。
func (f *File) Location(resort string) string {
	if f.Path != "" {
		return f.Path
	}
	return filepath.Join(f.Dir, resort+"_run_status.json")
}

func (f *File) Save(_ context.Context, snap model.Snapshot) error {
	return SaveFile(f.Location(snap.Resort), snap)
}

func (f *File) Load(_ context.Context, resort string) (model.Snapshot, error) {
	return LoadFile(f.Location(resort), resort)
}

// Reset 删除快照文件，文件不存在不视为错误。
func (f *File) Reset(_ context.Context, resort string) error {
	if err := os.Remove(f.Location(resort)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot %s: %w", f.Location(resort), err)
	}
	return nil
}

// SaveFile 将快照写入 path（覆盖已有文档）。先写临时文件再 rename，避免半截文件。
func SaveFile(path string, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	b, err := Encode(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// LoadFile 读取 path 处的文档；不存在返回 ErrNotFound，格式错误返回 *ParseError。
func LoadFile(path, resort string) (model.Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Snapshot{}, fmt.Errorf("load %s: %w", path, ErrNotFound)
		}
		return model.Snapshot{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return Decode(b, path, resort)
}
