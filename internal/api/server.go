package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/fachebot/oneline/internal/analyzer"
	"github.com/fachebot/oneline/internal/config"
	"github.com/fachebot/oneline/internal/hotlist"
	"github.com/fachebot/oneline/internal/llm"
	"github.com/fachebot/oneline/internal/logger"
	"github.com/fachebot/oneline/internal/model"
	"github.com/fachebot/oneline/internal/search"
	"github.com/fachebot/oneline/internal/svc"
	"github.com/fachebot/oneline/internal/timeline"
	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
)

const accessPasswordHeader = "X-Access-Password"

// searchService 元搜索（便于测试注入 mock）
type searchService interface {
	Relay(ctx context.Context, req *search.Request) (*search.Response, error)
	EnhancedSearch(ctx context.Context, query string, progress search.ProgressFunc) (*search.Result, error)
}

// analysisService 时间轴与事件分析（便于测试注入 mock）
type analysisService interface {
	GenerateTimeline(ctx context.Context, query string, progress search.ProgressFunc, onChunk analyzer.ChunkFunc) (*timeline.Data, error)
	EventDetails(ctx context.Context, query string, progress search.ProgressFunc, onChunk analyzer.ChunkFunc) (*analyzer.Analysis, error)
	ImpactAssessment(ctx context.Context, query string, progress search.ProgressFunc, onChunk analyzer.ChunkFunc) (*analyzer.Analysis, error)
}

// chatRelay 大模型请求转发（便于测试注入 mock）
type chatRelay interface {
	Relay(ctx context.Context, messages []llm.Message, temperature *float32) (openai.ChatCompletionResponse, error)
	RelayStream(ctx context.Context, messages []llm.Message, temperature *float32, onChunk func(openai.ChatCompletionStreamResponse) error) error
}

// hotListService 热榜（便于测试注入 mock）
type hotListService interface {
	Get(ctx context.Context, source string) ([]hotlist.Item, error)
}

// historyStore 历史记录（便于测试注入 mock）
type historyStore interface {
	Get(ctx context.Context, id string) (*model.History, error)
	List(ctx context.Context, limit int) ([]*model.History, error)
	Delete(ctx context.Context, id string) error
}

// cacheStats 搜索结果缓存的统计
type cacheStats interface {
	Stats() (hits, misses int64)
	Len() int
}

// jobRunStore 定时任务执行记录
type jobRunStore interface {
	Last(ctx context.Context, job string) (*model.JobRun, error)
}

type Handler struct {
	search         searchService
	analyzer       analysisService
	chat           chatRelay
	hotList        hotListService
	history        historyStore
	cache          cacheStats
	jobRuns        jobRunStore
	accessPassword string
	requestTimeout time.Duration
}

func NewHandler(svcCtx *svc.ServiceContext) *Handler {
	h := &Handler{
		search:         svcCtx.SearchEngine,
		analyzer:       svcCtx.Analyzer,
		chat:           svcCtx.LLMClient,
		hotList:        svcCtx.HotList,
		history:        svcCtx.HistoryModel,
		jobRuns:        svcCtx.JobRunModel,
		accessPassword: svcCtx.Config.Server.AccessPassword,
		requestTimeout: time.Duration(svcCtx.Config.Server.RequestTimeout) * time.Second,
	}
	if svcCtx.Cache != nil {
		h.cache = svcCtx.Cache
	}
	return h
}

// NewRouter 创建 gin 路由
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", h.handleHealth)

	api := r.Group("/api", h.requirePassword)
	api.POST("/search", h.handleSearch)
	api.POST("/enhanced-search", h.handleEnhancedSearch)
	api.POST("/timeline", h.handleTimeline)
	api.POST("/event-details", h.handleEventDetails)
	api.POST("/impact-assessment", h.handleImpactAssessment)
	api.POST("/chat", h.handleChat)
	api.GET("/hot", h.handleHotList)
	api.GET("/history", h.handleListHistory)
	api.GET("/history/:id", h.handleGetHistory)
	api.DELETE("/history/:id", h.handleDeleteHistory)
	return r
}

// NewServer 创建 HTTP 服务
func NewServer(cfg *config.Server, h *Handler) *http.Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// requirePassword 配置了访问密码时校验请求头
func (h *Handler) requirePassword(c *gin.Context) {
	if h.accessPassword == "" {
		c.Next()
		return
	}

	got := c.GetHeader(accessPasswordHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.accessPassword)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "访问密码错误"})
		return
	}
	c.Next()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("[API] %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// withTimeout 非流式请求的总超时，时间轴与分析接口由搜索和大模型各自的超时控制
func (h *Handler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.requestTimeout)
}
