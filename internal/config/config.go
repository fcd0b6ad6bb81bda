// 包 config 负责加载与校验应用配置（settings.yaml + 可选 .env），
// 对外提供结构体 Config 及默认值/合法性校验。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ski-run-open-bot/internal/model"
)

// Config 为监控进程的全部配置。
type Config struct {
	Resort        string `yaml:"RESORT"`
	PollInterval  int    `yaml:"POLL_INTERVAL"`  // 分钟
	MinDifficulty string `yaml:"MIN_DIFFICULTY"` // GREEN|BLUE|BLACK|DOUBLE_BLACK|TRIPLE_BLACK
	Source        Source `yaml:"SOURCE"`
	Store         Store  `yaml:"STORE"`
	Notify        Notify `yaml:"NOTIFY"`
	Export        string `yaml:"EXPORT"` // status.json 路径，空则不导出
	ResetOnStart  bool   `yaml:"RESET_ON_START"`
	Proxy         Proxy  `yaml:"PROXY"`
	Retry         int    `yaml:"RETRY"`
	TimeoutSec    int    `yaml:"TIMEOUT_SECONDS"`
	LogLevel      string `yaml:"LOG_LEVEL"`
	LogFormat     string `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale     string `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor      string `yaml:"LOG_COLOR"`  // auto|always|never

	minDifficulty model.Difficulty
}

type Source struct {
	// Type：来源类型，page（按选择器解析状态页）或 feed（RSS/Atom/JSON Feed）
	Type   string `yaml:"type"`
	URL    string `yaml:"url"`
	Preset string `yaml:"preset"` // rules.yaml 中的预设名，默认与 RESORT 同名
}

type Store struct {
	Type string `yaml:"type"` // json (default) | sqlite
	Dir  string `yaml:"dir"`  // ./data
	Path string `yaml:"path"` // 覆盖 json 文件位置
	DSN  string `yaml:"dsn"`  // ./data/skibot.db
}

type Notify struct {
	Type  string `yaml:"type"` // log (default) | webhook | none
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// Interval 返回轮询间隔。
func (c *Config) Interval() time.Duration {
	return time.Duration(c.PollInterval) * time.Minute
}

// Threshold 返回解析后的难度阈值（Validate 之后可用）。
func (c *Config) Threshold() model.Difficulty {
	if c.minDifficulty == model.DifficultyNone {
		return model.Black
	}
	return c.minDifficulty
}

// Timeout 返回单次 HTTP 请求超时。
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Load 读取 .env（若存在）与 YAML，应用环境变量覆盖后校验。
// envFile 为空时尝试当前目录的 .env。
func Load(path, envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	// .env 可选：不存在时忽略，已有的环境变量优先
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env %s: %w", envFile, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// applyEnv 用 SKIBOT_* 环境变量覆盖文件配置（便于在 .env 中存放密钥）。
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Resort, "SKIBOT_RESORT")
	set(&c.Source.URL, "SKIBOT_SOURCE_URL")
	set(&c.Notify.URL, "SKIBOT_WEBHOOK_URL")
	set(&c.Notify.Token, "SKIBOT_WEBHOOK_TOKEN")
}

// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
func (c *Config) Validate() error {
	c.Resort = strings.TrimSpace(c.Resort)
	if c.Resort == "" {
		return errors.New("RESORT is required")
	}
	if strings.ContainsAny(c.Resort, `/\`) {
		return fmt.Errorf("RESORT %q must not contain path separators", c.Resort)
	}
	if c.PollInterval == 0 {
		c.PollInterval = 20
	}
	if c.PollInterval < 0 {
		return errors.New("POLL_INTERVAL must be a positive number of minutes")
	}
	if c.MinDifficulty == "" {
		c.MinDifficulty = model.Black.String()
	}
	d, err := model.ParseDifficulty(c.MinDifficulty)
	if err != nil {
		return fmt.Errorf("MIN_DIFFICULTY: %w", err)
	}
	c.minDifficulty = d

	if c.Source.Type == "" {
		c.Source.Type = "page"
	}
	if c.Source.Type != "page" && c.Source.Type != "feed" {
		return fmt.Errorf("unsupported source type: %s", c.Source.Type)
	}
	if c.Source.URL == "" {
		return errors.New("SOURCE.url is required")
	}
	if c.Source.Preset == "" {
		c.Source.Preset = c.Resort
	}

	if c.Store.Type == "" {
		c.Store.Type = "json"
	}
	switch c.Store.Type {
	case "json":
		if c.Store.Dir == "" {
			c.Store.Dir = "./data"
		}
	case "sqlite":
		if c.Store.DSN == "" {
			c.Store.DSN = "./data/skibot.db"
		}
	default:
		return fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}

	if c.Notify.Type == "" {
		c.Notify.Type = "log"
	}
	switch c.Notify.Type {
	case "log", "none":
	case "webhook":
		if c.Notify.URL == "" {
			return errors.New("NOTIFY.url is required for webhook")
		}
	default:
		return fmt.Errorf("unsupported notify type: %s", c.Notify.Type)
	}

	if c.Retry < 0 {
		c.Retry = 2
	}
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = 25
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "en"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	// ResetOnStart 默认为 false，显式开启时才清除基线
	return nil
}
