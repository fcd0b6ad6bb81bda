// 包 model 定义雪道快照的数据模型（难度/状态/雪道记录/快照/导出结构）。
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Difficulty 为有序的难度枚举，取值 1–5；0 表示无法解析（持久化为 null）。
type Difficulty int

const (
	DifficultyNone Difficulty = iota
	Green
	Blue
	Black
	DoubleBlack
	TripleBlack
)

var difficultyNames = map[Difficulty]string{
	Green:       "GREEN",
	Blue:        "BLUE",
	Black:       "BLACK",
	DoubleBlack: "DOUBLE_BLACK",
	TripleBlack: "TRIPLE_BLACK",
}

// Difficulties 按从易到难的顺序返回全部有效难度。
func Difficulties() []Difficulty {
	return []Difficulty{Green, Blue, Black, DoubleBlack, TripleBlack}
}

func (d Difficulty) String() string {
	if n, ok := difficultyNames[d]; ok {
		return n
	}
	if d == DifficultyNone {
		return "NONE"
	}
	return fmt.Sprintf("Difficulty(%d)", int(d))
}

// Valid 仅 1–5 为合法难度。
func (d Difficulty) Valid() bool { return d >= Green && d <= TripleBlack }

// Keyword 返回页面 class 中使用的关键字形式，如 double-black。
func (d Difficulty) Keyword() string {
	return strings.ReplaceAll(strings.ToLower(d.String()), "_", "-")
}

// ParseDifficulty 不区分大小写解析难度名，支持 _ / - / 空格 三种分隔写法。
func ParseDifficulty(s string) (Difficulty, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for d, n := range difficultyNames {
		if n == norm {
			return d, nil
		}
	}
	return DifficultyNone, fmt.Errorf("unknown difficulty %q", s)
}

// RunStatus 为雪道开放状态；空串表示未知来源（持久化为 null）。
type RunStatus string

const (
	StatusNone    RunStatus = ""
	StatusOpen    RunStatus = "Open"
	StatusClosed  RunStatus = "Closed"
	StatusUnknown RunStatus = "Unknown"
)

// Statuses 返回全部有效状态。
func Statuses() []RunStatus {
	return []RunStatus{StatusOpen, StatusClosed, StatusUnknown}
}

// Valid 判断是否为三种字面量之一。
func (s RunStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusUnknown:
		return true
	}
	return false
}

// ParseRunStatus 严格匹配持久化字面量 "Open"/"Closed"/"Unknown"。
func ParseRunStatus(s string) (RunStatus, error) {
	st := RunStatus(s)
	if !st.Valid() {
		return StatusNone, fmt.Errorf("unknown run status %q", s)
	}
	return st, nil
}

// RunRecord 表示某一时刻的一条雪道；名称不在记录内，而是快照中的键。
type RunRecord struct {
	Difficulty Difficulty
	Status     RunStatus
	Section    string // 所属山区，空串视为 null
}

// Snapshot 为一次抓取得到的雪场完整状态，创建后不再修改。
type Snapshot struct {
	Timestamp float64
	Resort    string
	Runs      map[string]RunRecord
}

// Validate 检查雪场标识与雪道名称非空。
func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.Resort) == "" {
		return errors.New("snapshot resort is empty")
	}
	for name := range s.Runs {
		if name == "" {
			return errors.New("snapshot contains a run with an empty name")
		}
	}
	return nil
}

// Time 将浮点时间戳换算为 time.Time（秒级 Unix 时间）。
func (s Snapshot) Time() time.Time {
	sec := int64(s.Timestamp)
	nsec := int64((s.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// NowTimestamp 返回当前 Unix 时间（秒，含小数部分）。
func NowTimestamp() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Stats 为状态汇总统计。
type Stats struct {
	RunsTotal   int       `json:"runs_total"`
	RunsOpen    int       `json:"runs_open"`
	RunsClosed  int       `json:"runs_closed"`
	RunsUnknown int       `json:"runs_unknown"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunView 为导出用的扁平雪道视图。
type RunView struct {
	Name       string `json:"name"`
	Section    string `json:"section,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Export 为 status.json 的顶层结构。
type Export struct {
	Resort string    `json:"resort"`
	Stats  Stats     `json:"stats"`
	Runs   []RunView `json:"runs"`
	Opened []string  `json:"opened"`
}
