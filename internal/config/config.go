package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultModel 未配置模型时使用的默认模型
const DefaultModel = "gemini-2.0-flash-exp-search"

type Server struct {
	Addr           string `yaml:"Addr"`           // 监听地址，如 ":8080"
	AccessPassword string `yaml:"AccessPassword"` // 访问密码，为空表示不校验
	RequestTimeout int    `yaml:"RequestTimeout"` // 非流式请求总超时（秒），默认 45
	Mode           string `yaml:"Mode"`           // gin 运行模式 "debug" / "release" / "test"
}

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type LLM struct {
	BaseURL       string  `yaml:"BaseURL"` // 兼容 OpenAI API 的端点，Azure 端点需包含 openai.azure.com
	APIKey        string  `yaml:"APIKey"`
	Model         string  `yaml:"Model"`         // 如 gpt-4o, deepseek-chat；Azure 使用 "deployment@model"
	Temperature   float32 `yaml:"Temperature"`   // 默认 0.7
	AzureVersion  string  `yaml:"AzureVersion"`  // Azure api-version，默认 2023-05-15
	Timeout       int     `yaml:"Timeout"`       // 非流式调用超时（秒），默认 45
	StreamTimeout int     `yaml:"StreamTimeout"` // 流式调用超时（秒），默认 60
}

type Scoring struct {
	OriginBoost    float64   `yaml:"OriginBoost"`    // 来自原始查询的加成，默认 1.5
	TrustedBoost   float64   `yaml:"TrustedBoost"`   // 可信来源加成，默认 1.3
	EngineBoost    float64   `yaml:"EngineBoost"`    // 每个引擎的加成，默认 0.1
	DomainCap      int       `yaml:"DomainCap"`      // 单个域名最多保留的结果数，默认 3
	TrustedDomains []string  `yaml:"TrustedDomains"` // 可信域名列表，为空使用内置列表
	RecencyDays    []float64 `yaml:"RecencyDays"`    // 时效性分段（天），与 RecencyFactors 一一对应
	RecencyFactors []float64 `yaml:"RecencyFactors"` // 时效性因子
}

type Search struct {
	Enabled     bool     `yaml:"Enabled"`     // 是否启用 SearXNG 搜索
	URL         string   `yaml:"URL"`         // SearXNG 服务地址
	Categories  string   `yaml:"Categories"`  // 默认 general
	Language    string   `yaml:"Language"`    // 默认 zh
	TimeRange   string   `yaml:"TimeRange"`   // 默认 year
	Engines     []string `yaml:"Engines"`     // 固定引擎列表，为空时按查询类型自动选择
	NumResults  int      `yaml:"NumResults"`  // 简单搜索返回条数，默认 10
	Concurrency int      `yaml:"Concurrency"` // 批次内并发数，1-5，默认 1（顺序执行）
	RateLimit   float64  `yaml:"RateLimit"`   // 每秒最多请求数，0 表示不限制
	Deadline    int      `yaml:"Deadline"`    // 搜索阶段总超时（秒），默认 45，不包含大模型生成
	Scoring     Scoring  `yaml:"Scoring"`
}

type Cache struct {
	Enable     bool   `yaml:"Enable"`
	RedisURL   string `yaml:"RedisURL"`   // 为空时仅使用内存缓存
	TTL        int    `yaml:"TTL"`        // 缓存时间（分钟），默认 15
	MaxEntries int    `yaml:"MaxEntries"` // 内存缓存最大条目数，默认 500
}

type HotList struct {
	Cron    string   `yaml:"Cron"`    // 热榜刷新 cron 表达式，默认 "*/10 * * * *"
	Sources []string `yaml:"Sources"` // 预取的 uapis 热榜类型，如 weibo, zhihu
}

type History struct {
	DSN           string `yaml:"DSN"`           // sqlite 数据源，默认 file:data/oneline.db?mode=rwc&_journal_mode=WAL
	RetentionDays int    `yaml:"RetentionDays"` // 历史记录保留天数，0 表示永久保留
	CleanupCron   string `yaml:"CleanupCron"`   // 清理任务 cron 表达式，默认 "0 3 * * *"
}

type Log struct {
	Level      string `yaml:"Level"`      // 控制台日志级别 debug / info / warn / error
	FileLevel  string `yaml:"FileLevel"`  // 文件日志级别，默认 info
	Dir        string `yaml:"Dir"`        // 日志目录，默认 logs
	MaxSize    int    `yaml:"MaxSize"`    // 单个日志文件大小（MB），默认 10
	MaxBackups int    `yaml:"MaxBackups"` // 保留的旧日志文件数，默认 10
	MaxAge     int    `yaml:"MaxAge"`     // 旧日志保留天数，默认 30
}

type Config struct {
	Server     Server     `yaml:"Server"`
	Sock5Proxy Sock5Proxy `yaml:"Sock5Proxy"`
	LLM        LLM        `yaml:"LLM"`
	Search     Search     `yaml:"Search"`
	Cache      Cache      `yaml:"Cache"`
	HotList    HotList    `yaml:"HotList"`
	History    History    `yaml:"History"`
	Log        Log        `yaml:"Log"`
}

func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, err
	}

	// 环境变量覆盖
	_ = godotenv.Load()
	c.ApplyEnv()
	c.SetDefaults()

	// 验证配置
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// ApplyEnv 使用环境变量覆盖配置
func (c *Config) ApplyEnv() {
	if v := os.Getenv("API_ENDPOINT"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("API_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("SEARXNG_URL"); v != "" {
		c.Search.URL = v
	}
	if v := os.Getenv("SEARXNG_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Search.Enabled = enabled
		}
	}
	if v := os.Getenv("ACCESS_PASSWORD"); v != "" {
		c.Server.AccessPassword = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
}

// SetDefaults 为未设置的字段填充默认值
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 45
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.AzureVersion == "" {
		c.LLM.AzureVersion = "2023-05-15"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 45
	}
	if c.LLM.StreamTimeout == 0 {
		c.LLM.StreamTimeout = 60
	}
	if c.Search.Categories == "" {
		c.Search.Categories = "general"
	}
	if c.Search.Language == "" {
		c.Search.Language = "zh"
	}
	if c.Search.TimeRange == "" {
		c.Search.TimeRange = "year"
	}
	if c.Search.NumResults == 0 {
		c.Search.NumResults = 10
	}
	if c.Search.Deadline == 0 {
		c.Search.Deadline = 45
	}
	if c.Search.Concurrency == 0 {
		c.Search.Concurrency = 1
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 500
	}
	if c.HotList.Cron == "" {
		c.HotList.Cron = "*/10 * * * *"
	}
	if c.History.DSN == "" {
		c.History.DSN = "file:data/oneline.db?mode=rwc&_journal_mode=WAL"
	}
	if c.History.CleanupCron == "" {
		c.History.CleanupCron = "0 3 * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
	if c.Log.FileLevel == "" {
		c.Log.FileLevel = "info"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 10
	}
	if c.Log.MaxAge == 0 {
		c.Log.MaxAge = 30
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	// 验证 LLM
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM.APIKey 不能为空")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM.BaseURL 不能为空")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM.Model 不能为空")
	}
	if c.LLM.Timeout < 0 || c.LLM.StreamTimeout < 0 {
		return fmt.Errorf("LLM.Timeout 和 LLM.StreamTimeout 必须 >= 0")
	}

	// 验证 Search
	if c.Search.Enabled && c.Search.URL == "" {
		return fmt.Errorf("Search.URL 不能为空（当 Search.Enabled 为 true 时）")
	}
	if c.Search.Concurrency < 1 || c.Search.Concurrency > 5 {
		return fmt.Errorf("Search.Concurrency 必须在 1-5 之间")
	}
	if c.Search.RateLimit < 0 {
		return fmt.Errorf("Search.RateLimit 必须 >= 0")
	}
	if c.Search.Deadline < 0 {
		return fmt.Errorf("Search.Deadline 必须 >= 0")
	}
	if len(c.Search.Scoring.RecencyDays) != len(c.Search.Scoring.RecencyFactors) {
		return fmt.Errorf("Search.Scoring.RecencyDays 与 RecencyFactors 长度必须一致")
	}
	if c.Search.Scoring.DomainCap < 0 {
		return fmt.Errorf("Search.Scoring.DomainCap 必须 >= 0")
	}

	// 验证 History
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("History.RetentionDays 必须 >= 0")
	}

	// 验证 Log
	for name, level := range map[string]string{"Log.Level": c.Log.Level, "Log.FileLevel": c.Log.FileLevel} {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("%s 必须是 'debug', 'info', 'warn' 或 'error'", name)
		}
	}
	if c.Log.MaxSize < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAge < 0 {
		return fmt.Errorf("Log.MaxSize、Log.MaxBackups 和 Log.MaxAge 必须 >= 0")
	}

	return nil
}
