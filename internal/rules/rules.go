// 包 rules 负责加载并提供雪道页解析规则（rules.yaml），
// 以预设名（如 default/solitude）组织 CSS 选择器。
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单个雪场预设的解析规则集合。
type Preset struct {
	TrailPage *TrailPage `yaml:"trail_page"`
}

// TrailPage 描述雪道状态页的选择器：
// - area：每个山区容器；area_name：山区名称（取文本）
// - trail：山区内每条雪道；name：雪道名称（取文本）
// - skip_areas：忽略的山区名（如 Nordic）
// 难度与状态通过 class 关键字匹配得到，无需选择器。
type TrailPage struct {
	Area      string   `yaml:"area"`
	AreaName  string   `yaml:"area_name"`
	Trail     string   `yaml:"trail"`
	Name      string   `yaml:"name"`
	SkipAreas []string `yaml:"skip_areas"`
}

// Skip 判断山区是否需要忽略（不区分大小写）。
func (tp *TrailPage) Skip(area string) bool {
	area = strings.TrimSpace(area)
	for _, s := range tp.SkipAreas {
		if strings.EqualFold(strings.TrimSpace(s), area) {
			return true
		}
	}
	return false
}

// Builtin 返回内置预设：solitude 取自 Solitude 官网的 conditions 页面结构。
func Builtin() *Rules {
	solitude := Preset{TrailPage: &TrailPage{
		Area:      "div.mountain-area",
		AreaName:  "h1.area-name",
		Trail:     "div.trail",
		Name:      "div.trail-name",
		SkipAreas: []string{"Nordic"},
	}}
	return &Rules{Presets: map[string]Preset{
		"default":  solitude,
		"solitude": solitude,
	}}
}

func Load(path string) (*Rules, error) {
	// 从文件加载 YAML 到 Rules.Presets
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	for name, p := range r.Presets {
		if p.TrailPage == nil {
			continue
		}
		if p.TrailPage.Trail == "" || p.TrailPage.Name == "" {
			return nil, fmt.Errorf("rules %s: preset %q needs trail and name selectors", path, name)
		}
	}
	return &r, nil
}

// Merge 以 other 中的同名预设覆盖 r，返回新集合。
func (r *Rules) Merge(other *Rules) *Rules {
	out := &Rules{Presets: map[string]Preset{}}
	if r != nil {
		for k, v := range r.Presets {
			out.Presets[k] = v
		}
	}
	if other != nil {
		for k, v := range other.Presets {
			out.Presets[k] = v
		}
	}
	return out
}

// GetPreset 按名称获取预设（不区分大小写），若为空或不存在则回退到 "default"。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}, false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	lower := strings.ToLower(name)
	for k, v := range r.Presets {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	if p, ok := r.Presets["default"]; ok {
		return p, true
	}
	return Preset{}, false
}
