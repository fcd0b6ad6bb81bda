// 包 export 负责状态汇总导出：将最新快照与本轮新开放雪道写为 status.json。
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ski-run-open-bot/internal/detect"
	"ski-run-open-bot/internal/model"
)

// Build 由快照生成导出结构：雪道按山区、名称排序。
func Build(snap model.Snapshot, opened map[string]model.RunRecord) model.Export {
	st := model.Stats{RunsTotal: len(snap.Runs), UpdatedAt: snap.Time()}
	runs := make([]model.RunView, 0, len(snap.Runs))
	for name, r := range snap.Runs {
		switch r.Status {
		case model.StatusOpen:
			st.RunsOpen++
		case model.StatusClosed:
			st.RunsClosed++
		default:
			st.RunsUnknown++
		}
		v := model.RunView{Name: name, Section: r.Section, Status: string(r.Status)}
		if r.Difficulty.Valid() {
			v.Difficulty = r.Difficulty.String()
		}
		runs = append(runs, v)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Section != runs[j].Section {
			return runs[i].Section < runs[j].Section
		}
		return runs[i].Name < runs[j].Name
	})
	if snap.Timestamp == 0 {
		st.UpdatedAt = time.Now()
	}
	return model.Export{
		Resort: snap.Resort,
		Stats:  st,
		Runs:   runs,
		Opened: detect.Names(opened),
	}
}

// ToJSON 写入 JSON 文件（带缩进格式）。先写临时文件再 rename，读者不会看到半截文件。
func ToJSON(snap model.Snapshot, opened map[string]model.RunRecord, path string) error {
	b, err := json.MarshalIndent(Build(snap, opened), "", "  ")
	if err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
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
	if _, err := tmp.Write(append(b, '\n')); err != nil {
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
