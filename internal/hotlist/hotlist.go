package hotlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fachebot/oneline/internal/logger"
)

// SourceBaidu 百度实时热搜
const SourceBaidu = "baidu"

const hotboardURL = "https://uapis.cn/api/v1/misc/hotboard"

var (
	ErrUnknownSource = errors.New("不支持的热榜类型")

	sourcePattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)
)

// Item 热搜条目
type Item struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Hot   string `json:"hot"`
}

type snapshot struct {
	items     []Item
	updatedAt time.Time
}

// Service 热榜服务，定时刷新并缓存最近一次结果
type Service struct {
	httpClient  *http.Client
	baiduURL    string
	hotboardURL string
	sources     []string
	maxAge      time.Duration

	mu        sync.RWMutex
	snapshots map[string]snapshot
}

// NewService 创建热榜服务，sources 为定时预取的 uapis 热榜类型
func NewService(transport http.RoundTripper, sources []string) *Service {
	return &Service{
		httpClient:  &http.Client{Transport: transport, Timeout: 15 * time.Second},
		baiduURL:    baiduBoardURL,
		hotboardURL: hotboardURL,
		sources:     sources,
		maxAge:      30 * time.Minute,
		snapshots:   make(map[string]snapshot),
	}
}

// ValidSource 检查热榜类型是否合法
func ValidSource(source string) bool {
	return source == SourceBaidu || sourcePattern.MatchString(source)
}

// Get 返回热榜列表，优先使用未过期的快照
func (s *Service) Get(ctx context.Context, source string) ([]Item, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		source = SourceBaidu
	}
	if !ValidSource(source) {
		return nil, ErrUnknownSource
	}

	s.mu.RLock()
	snap, ok := s.snapshots[source]
	s.mu.RUnlock()
	if ok && time.Since(snap.updatedAt) < s.maxAge {
		return snap.items, nil
	}

	items, err := s.refreshSource(ctx, source)
	if err != nil && ok {
		return snap.items, nil
	}
	return items, nil
}

// Refresh 刷新百度热搜和所有预取的热榜类型
func (s *Service) Refresh(ctx context.Context) error {
	var errs []error
	for _, source := range append([]string{SourceBaidu}, s.sources...) {
		if !ValidSource(source) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownSource, source))
			continue
		}
		if _, err := s.refreshSource(ctx, source); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source, err))
		}
	}
	return errors.Join(errs...)
}

// refreshSource 获取并保存快照，失败时返回备用数据和错误
func (s *Service) refreshSource(ctx context.Context, source string) ([]Item, error) {
	var (
		items []Item
		err   error
	)
	if source == SourceBaidu {
		items, err = s.fetchBaidu(ctx)
		if err == nil && len(items) == 0 {
			err = errors.New("页面中未找到热搜条目")
		}
		if err != nil {
			logger.Warnf("[HotList] 无法获取百度热搜，使用静态数据, %v", err)
			return StaticItems(), err
		}
	} else {
		items, err = s.fetchHotboard(ctx, source)
		if err != nil {
			logger.Warnf("[HotList] 获取热榜失败, type: %s, %v", source, err)
			return []Item{}, err
		}
	}

	s.mu.Lock()
	s.snapshots[source] = snapshot{items: items, updatedAt: time.Now()}
	s.mu.Unlock()

	logger.Debugf("[HotList] 热榜已刷新, source: %s, 条目数: %d", source, len(items))
	return items, nil
}

func (s *Service) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP状态码 %d", resp.StatusCode)
	}
	return resp, nil
}

func (s *Service) fetchBaidu(ctx context.Context) ([]Item, error) {
	resp, err := s.get(ctx, s.baiduURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseBaidu(resp.Body)
}

type hotboardResponse struct {
	List []struct {
		Title    string          `json:"title"`
		URL      string          `json:"url"`
		HotValue json.RawMessage `json:"hot_value"`
	} `json:"list"`
}

func (s *Service) fetchHotboard(ctx context.Context, source string) ([]Item, error) {
	resp, err := s.get(ctx, s.hotboardURL+"?type="+url.QueryEscape(source))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body hotboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("解析热榜响应失败: %w", err)
	}

	items := make([]Item, 0, len(body.List))
	for _, entry := range body.List {
		if entry.Title == "" {
			continue
		}
		hot := strings.Trim(string(entry.HotValue), `"`)
		if hot == "null" {
			hot = ""
		}
		items = append(items, Item{Title: entry.Title, URL: entry.URL, Hot: hot})
	}
	return items, nil
}
