package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"ski-run-open-bot/internal/model"
)

// document 为持久化格式：
//
//	{"timestamp": 1.5, "resort": "solitude",
//	 "runs": {"Dean's Dash": {"difficulty": 1, "status": "Open", "mountain_section": "Moonbeam Area"}}}
type document struct {
	Timestamp float64            `json:"timestamp"`
	Resort    string             `json:"resort"`
	Runs      map[string]runJSON `json:"runs"`
}

// runJSON 中的指针字段对应文档里可为 null 的值。
type runJSON struct {
	Difficulty *int    `json:"difficulty"`
	Status     *string `json:"status"`
	Section    *string `json:"mountain_section"`
}

// Encode 将快照编码为带缩进的 JSON 文档。
func Encode(snap model.Snapshot) ([]byte, error) {
	doc := document{
		Timestamp: snap.Timestamp,
		Resort:    snap.Resort,
		Runs:      make(map[string]runJSON, len(snap.Runs)),
	}
	for name, r := range snap.Runs {
		var rj runJSON
		if r.Difficulty != model.DifficultyNone {
			d := int(r.Difficulty)
			rj.Difficulty = &d
		}
		if r.Status != model.StatusNone {
			s := string(r.Status)
			rj.Status = &s
		}
		if r.Section != "" {
			sec := r.Section
			rj.Section = &sec
		}
		doc.Runs[name] = rj
	}
	b, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot %s: %w", snap.Resort, err)
	}
	return b, nil
}

// wireDocument 用于解码：runs 缺失或为 null 时指针保持 nil。
type wireDocument struct {
	Timestamp float64             `json:"timestamp"`
	Resort    string              `json:"resort"`
	Runs      *map[string]runJSON `json:"runs"`
}

// Decode 解析 JSON 文档；任何格式或枚举错误均返回 *ParseError。
// 文档必须是单个 JSON 对象且包含 runs；缺少 resort 时使用调用方给出的 resort。
func Decode(b []byte, location, resort string) (model.Snapshot, error) {
	fail := func(err error) (model.Snapshot, error) {
		return model.Snapshot{}, &ParseError{Location: location, Err: err}
	}
	var raw json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&raw); err != nil {
		return fail(err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fail(errors.New("unexpected data after document"))
	}
	if v := bytes.TrimSpace(raw); len(v) == 0 || v[0] != '{' {
		return fail(errors.New("document is not a JSON object"))
	}
	var doc wireDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fail(err)
	}
	if doc.Runs == nil {
		return fail(errors.New("runs is missing or null"))
	}
	if doc.Resort == "" {
		doc.Resort = resort
	}
	runsIn := *doc.Runs
	snap := model.Snapshot{
		Timestamp: doc.Timestamp,
		Resort:    doc.Resort,
		Runs:      make(map[string]model.RunRecord, len(runsIn)),
	}
	for name, rj := range runsIn {
		if name == "" {
			return fail(errors.New("empty run name"))
		}
		var r model.RunRecord
		if rj.Difficulty != nil {
			d := model.Difficulty(*rj.Difficulty)
			if !d.Valid() {
				return fail(fmt.Errorf("run %q: unknown difficulty %d", name, *rj.Difficulty))
			}
			r.Difficulty = d
		}
		if rj.Status != nil {
			st, err := model.ParseRunStatus(*rj.Status)
			if err != nil {
				return fail(fmt.Errorf("run %q: %w", name, err))
			}
			r.Status = st
		}
		if rj.Section != nil {
			r.Section = *rj.Section
		}
		snap.Runs[name] = r
	}
	return snap, nil
}
