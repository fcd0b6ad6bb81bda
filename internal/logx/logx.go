// 包 logx 是对标准库 slog 的薄封装：
// - 支持级别/格式/语言/颜色配置
// - 提供 pretty 输出（中文 [信息] 或英文 [INFO] 标签）
// - 通过 Debugf/Infof/Warnf/Errorf 暴露；With 返回带固定属性的 logger（如轮询 ID）
package logx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Init 根据 level/format/locale/colorMode 初始化全局日志器，输出到 stdout。
func Init(level, format, locale, colorMode string) {
	InitWriter(os.Stdout, level, format, locale, colorMode)
}

// InitWriter 同 Init，但输出到 w。
// 采用 slog 默认 Handler（json/text）或内置 PrettyHandler。
func InitWriter(w io.Writer, level, format, locale, colorMode string) {
	lv := parseSlogLevel(level)
	opts := &slog.HandlerOptions{Level: lv, AddSource: false}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "pretty", "":
		handler = NewPrettyHandler(w, lv, locale, colorMode)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// With 返回附带固定属性的 logger，例如 logx.With("cycle", id)。
func With(args ...any) *slog.Logger { return slog.Default().With(args...) }

// parseSlogLevel 将字符串级别解析为 slog.Leveler。
func parseSlogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "silent", "off":
		return slog.Level(100)
	case "info", "":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// 便捷函数：格式化并按级别输出
func Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(fmt.Sprintf(format, v...)) }

// PrettyHandler：最小可用的美化输出（可选彩色），仅用于人读；支持中英文标签。
type PrettyHandler struct {
	w     io.Writer
	level slog.Leveler
	zh    bool
	color bool
	mu    *sync.Mutex
	attrs []slog.Attr
	group string
}

// NewPrettyHandler 创建美化 Handler；locale 以 zh 开头时使用中文标签，否则英文。
func NewPrettyHandler(w io.Writer, lv slog.Leveler, locale string, colorMode string) slog.Handler {
	return &PrettyHandler{
		w:     w,
		level: lv,
		zh:    strings.HasPrefix(strings.ToLower(locale), "zh"),
		color: shouldColor(w, colorMode),
		mu:    &sync.Mutex{},
	}
}

// Enabled 根据配置的最低级别判定是否输出。
func (h *PrettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle 格式化输出：时间 + 等级 + 消息 + 扁平化属性
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	buf.WriteString(" ")
	buf.WriteString(h.label(r.Level))
	buf.WriteString(" ")
	buf.WriteString(r.Message)
	// 附加属性（展平成 k=v）
	for _, a := range h.attrs {
		buf.WriteString(" " + a.Key + "=" + quoteIfNeeded(a.Value.String()))
	}
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" " + h.key(a.Key) + "=" + quoteIfNeeded(a.Value.String()))
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs 附加属性（如轮询 ID、雪场）；键在此时带上当前分组前缀。
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &cp
}

func (h *PrettyHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

// WithGroup 属性分组，之后添加的键以 group. 为前缀输出。
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	cp := *h
	if cp.group == "" {
		cp.group = name
	} else {
		cp.group += "." + name
	}
	return &cp
}

type levelStyle struct {
	en, zh string
	ansi   string
}

var levelStyles = map[slog.Level]levelStyle{
	slog.LevelDebug: {"[DEBUG]", "[调试]", "90"},
	slog.LevelInfo:  {"[INFO]", "[信息]", "36"},
	slog.LevelWarn:  {"[WARN]", "[警告]", "33"},
	slog.LevelError: {"[ERROR]", "[错误]", "31"},
}

// label 返回等级标签，必要时包裹 ANSI 颜色码。
func (h *PrettyHandler) label(l slog.Level) string {
	st, ok := levelStyles[l]
	if !ok {
		return fmt.Sprintf("[L%d]", l)
	}
	s := st.en
	if h.zh {
		s = st.zh
	}
	if h.color {
		s = "\x1b[" + st.ansi + "m" + s + "\x1b[0m"
	}
	return s
}

// shouldColor 判断是否启用颜色：遵循 LOG_COLOR 与 NO_COLOR；auto 仅对终端着色。
func shouldColor(w io.Writer, mode string) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "auto", "":
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				return fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	return false
}

// quoteIfNeeded 对含空白的值加引号，便于按 k=v 解析。
func quoteIfNeeded(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		return fmt.Sprintf("%q", v)
	}
	return v
}
