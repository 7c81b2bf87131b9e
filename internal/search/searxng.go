package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	userAgent      = "Mozilla/5.0 (OneLine/1.0; +https://github.com/chengtx809/OneLine)"
	defaultTimeout = 45 * time.Second
	minTimeout     = time.Second
	maxTimeout     = 45 * time.Second
	maxBodySize    = 8 << 20
)

var trailingSlashes = regexp.MustCompile(`/+$`)

// errorDescriptions 搜索失败原因的中文描述
var errorDescriptions = map[string]string{
	"timeout":       "请求超时，服务器响应时间过长",
	"refused":       "无法连接到搜索服务器，服务可能不可用",
	"notfound":      "找不到搜索服务器，请检查URL是否正确",
	"network":       "网络错误，请检查您的网络连接和SearXNG服务器状态",
	"404":           "找不到搜索服务，请检查URL是否正确",
	"500":           "搜索服务器内部错误",
	"502":           "搜索服务器网关错误",
	"503":           "搜索服务暂时不可用",
	"invalid_body":  "SearXNG返回的数据格式不正确",
	"unknown_error": "未知错误",
}

// StatusError SearXNG 返回非 2xx 状态码
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("SearXNG 返回状态码 %d: %s", e.StatusCode, DescribeError(e))
}

// DescribeError 返回搜索错误的中文描述
func DescribeError(err error) string {
	if err == nil {
		return ""
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if desc, ok := errorDescriptions[strconv.Itoa(statusErr.StatusCode)]; ok {
			return desc
		}
		return errorDescriptions["unknown_error"]
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errorDescriptions["timeout"]
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errorDescriptions["timeout"]
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return errorDescriptions["notfound"]
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if strings.Contains(opErr.Error(), "refused") {
			return errorDescriptions["refused"]
		}
		return errorDescriptions["network"]
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return errorDescriptions["invalid_body"]
	}
	return errorDescriptions["unknown_error"]
}

// NormalizeBaseURL 补全协议并移除末尾斜杠
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return trailingSlashes.ReplaceAllString(raw, "")
}

// SearXNGClient 直接调用 SearXNG 的 JSON 接口
type SearXNGClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSearXNGClient 创建客户端，transport 为 nil 时使用默认传输层
func NewSearXNGClient(baseURL string, transport http.RoundTripper) *SearXNGClient {
	httpClient := &http.Client{}
	if transport != nil {
		httpClient.Transport = transport
	}
	return &SearXNGClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// searxngBody SearXNG 原始响应
type searxngBody struct {
	Query           string            `json:"query"`
	Results         []Item            `json:"results"`
	NumberOfResults float64           `json:"number_of_results"`
	Answers         []json.RawMessage `json:"answers"`
	Suggestions     []string          `json:"suggestions"`
}

// Search 执行一次搜索请求，请求中的 SearxngURL 优先于客户端默认地址
func (c *SearXNGClient) Search(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("搜索查询不能为空")
	}

	base := req.SearxngURL
	if base == "" {
		base = c.baseURL
	}
	if base == "" {
		return nil, ErrDisabled
	}
	searchURL := NormalizeBaseURL(base) + "/search"

	timeout := defaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Millisecond
	}
	timeout = min(max(timeout, minTimeout), maxTimeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("format", "json")
	params.Set("categories", valueOr(req.Categories, "general"))
	params.Set("language", valueOr(req.Language, "zh"))
	params.Set("time_range", valueOr(req.TimeRange, "year"))
	if len(req.Engines) > 0 {
		params.Set("engines", strings.Join(req.Engines, ","))
	}
	numResults := req.NumResults
	if numResults <= 0 {
		numResults = 10
	}
	params.Set("num_results", strconv.Itoa(numResults))
	if req.Safesearch != nil {
		params.Set("safesearch", strconv.Itoa(*req.Safesearch))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("创建搜索请求失败: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("SearXNG 请求失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("读取 SearXNG 响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(data)
		if len(body) > 200 {
			body = body[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	var body searxngBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("解析 SearXNG 响应失败: %w", err)
	}

	return adaptResponse(req.Query, searchURL, &body), nil
}

// adaptResponse 结果为空时尝试使用 answers 和 suggestions 适配
func adaptResponse(query, searchURL string, body *searxngBody) *Response {
	out := &Response{Query: query, Results: body.Results}
	if len(out.Results) > 0 {
		out.NumberOfResults = len(out.Results)
		return out
	}

	for _, raw := range body.Answers {
		answer := decodeAnswer(raw)
		if answer == "" {
			continue
		}
		out.Results = append(out.Results, Item{
			Title:   answer,
			Content: answer,
			URL:     searchURL,
			Engine:  "searxng_answers",
		})
	}
	if len(out.Results) == 0 {
		for _, suggestion := range body.Suggestions {
			out.Results = append(out.Results, Item{
				Title:   "建议搜索: " + suggestion,
				Content: "您可能想搜索: " + suggestion,
				URL:     searchURL + "?q=" + url.QueryEscape(suggestion),
				Engine:  "searxng_suggestions",
			})
		}
	}

	if len(out.Results) == 0 {
		out.Results = []Item{}
		out.Message = "No results found in SearXNG response"
	}
	out.NumberOfResults = len(out.Results)
	return out
}

// decodeAnswer 兼容字符串和对象两种 answer 格式
func decodeAnswer(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var obj struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Answer)
	}
	return ""
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
