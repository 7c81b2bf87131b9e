package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fachebot/oneline/internal/analyzer"
	"github.com/fachebot/oneline/internal/hotlist"
	"github.com/fachebot/oneline/internal/llm"
	"github.com/fachebot/oneline/internal/logger"
	"github.com/fachebot/oneline/internal/model"
	"github.com/fachebot/oneline/internal/scheduler"
	"github.com/fachebot/oneline/internal/search"
	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
)

type queryRequest struct {
	Query  string `json:"query"`
	Stream bool   `json:"stream"`
}

type chatRequest struct {
	Messages    []llm.Message `json:"messages"`
	Temperature *float32      `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chunkEvent struct {
	Content string `json:"content"`
}

// renderError 按错误类型返回对应的状态码
func renderError(c *gin.Context, err error) {
	var (
		upstream  *llm.UpstreamError
		statusErr *search.StatusError
	)
	switch {
	case errors.As(err, &upstream):
		status := upstream.Status
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		c.JSON(status, upstream)
	case errors.As(err, &statusErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": search.DescribeError(err), "message": err.Error()})
	case errors.Is(err, search.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, search.ErrNoQueries), errors.Is(err, hotlist.ErrUnknownSource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "请求超时", "message": err.Error(), "timeout": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// errorPayload SSE error 事件的内容
func errorPayload(err error) any {
	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		return upstream
	}
	return gin.H{"error": err.Error()}
}

func bindQuery(c *gin.Context) (queryRequest, bool) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "查询内容不能为空"})
		return req, false
	}
	return req, true
}

// handleHealth 返回缓存命中情况和最近一次热榜刷新
func (h *Handler) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.cache != nil {
		hits, misses := h.cache.Stats()
		resp["cache"] = gin.H{"hits": hits, "misses": misses, "entries": h.cache.Len()}
	}
	if h.jobRuns != nil {
		run, err := h.jobRuns.Last(c.Request.Context(), scheduler.JobHotList)
		switch {
		case err == nil:
			job := gin.H{"status": run.Status, "startedAt": run.StartedAt.UnixMilli()}
			if !run.FinishedAt.IsZero() {
				job["finishedAt"] = run.FinishedAt.UnixMilli()
			}
			if run.ErrorMessage != "" {
				job["error"] = run.ErrorMessage
			}
			resp["hotList"] = job
		case !errors.Is(err, model.ErrNotFound):
			logger.Warnf("[API] 查询热榜任务记录失败, %v", err)
		}
	}
	c.JSON(http.StatusOK, resp)
}

// handleSearch 转发原始元搜索请求，搜索失败时仍返回 200 和空结果
func (h *Handler) handleSearch(c *gin.Context) {
	var req search.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "SearXNG URL or query not provided"})
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	resp, err := h.search.Relay(ctx, &req)
	if errors.Is(err, search.ErrDisabled) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "SearXNG URL or query not provided"})
		return
	}
	if err != nil {
		logger.Warnf("[API] 元搜索请求失败, query: %s, %v", req.Query, err)
		c.JSON(http.StatusOK, gin.H{
			"error":             "SearXNG search request failed",
			"error_description": search.DescribeError(err),
			"message":           err.Error(),
			"query":             req.Query,
			"results":           []search.Item{},
			"number_of_results": 0,
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) handleEnhancedSearch(c *gin.Context) {
	req, ok := bindQuery(c)
	if !ok {
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	result, err := h.search.EnhancedSearch(ctx, req.Query, nil)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleTimeline(c *gin.Context) {
	req, ok := bindQuery(c)
	if !ok {
		return
	}

	if !req.Stream {
		data, err := h.analyzer.GenerateTimeline(c.Request.Context(), req.Query, nil, nil)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, data)
		return
	}

	stream := newEventStream(c)
	data, err := h.analyzer.GenerateTimeline(c.Request.Context(), req.Query, progressSender(stream), chunkSender(stream))
	if err != nil {
		_ = stream.send("error", errorPayload(err))
		return
	}
	_ = stream.send("result", data)
}

func (h *Handler) handleEventDetails(c *gin.Context) {
	h.handleAnalysis(c, h.analyzer.EventDetails)
}

func (h *Handler) handleImpactAssessment(c *gin.Context) {
	h.handleAnalysis(c, h.analyzer.ImpactAssessment)
}

type analysisFunc func(ctx context.Context, query string, progress search.ProgressFunc, onChunk analyzer.ChunkFunc) (*analyzer.Analysis, error)

func (h *Handler) handleAnalysis(c *gin.Context, analyze analysisFunc) {
	req, ok := bindQuery(c)
	if !ok {
		return
	}

	if !req.Stream {
		result, err := analyze(c.Request.Context(), req.Query, nil, nil)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	stream := newEventStream(c)
	result, err := analyze(c.Request.Context(), req.Query, progressSender(stream), chunkSender(stream))
	if err != nil {
		_ = stream.send("error", errorPayload(err))
		return
	}
	_ = stream.send("result", result)
}

func progressSender(stream *eventStream) search.ProgressFunc {
	return func(event search.ProgressEvent) {
		_ = stream.send("progress", event)
	}
}

func chunkSender(stream *eventStream) analyzer.ChunkFunc {
	return func(chunk string) error {
		return stream.send("chunk", chunkEvent{Content: chunk})
	}
}

// handleChat 转发聊天请求，stream 为 true 时按 OpenAI 的 SSE 格式逐块返回
func (h *Handler) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages 不能为空"})
		return
	}

	if !req.Stream {
		ctx, cancel := h.withTimeout(c)
		defer cancel()

		resp, err := h.chat.Relay(ctx, req.Messages, req.Temperature)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	stream := newEventStream(c)
	err := h.chat.RelayStream(c.Request.Context(), req.Messages, req.Temperature, func(chunk openai.ChatCompletionStreamResponse) error {
		return stream.sendData(chunk)
	})
	if err != nil {
		logger.Warnf("[API] 流式聊天请求失败, %v", err)
		if !stream.isStarted() {
			renderError(c, err)
			return
		}
		_ = stream.send("error", errorPayload(err))
		return
	}
	_ = stream.sendData("[DONE]")
}

func (h *Handler) handleHotList(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	items, err := h.hotList.Get(ctx, c.Query("source"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hotItems": items})
}

func (h *Handler) handleListHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit 必须在 1-100 之间"})
			return
		}
		limit = n
	}

	list, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}

func (h *Handler) handleGetHistory(c *gin.Context) {
	record, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) handleDeleteHistory(c *gin.Context) {
	if err := h.history.Delete(c.Request.Context(), c.Param("id")); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
