package svc

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/fachebot/oneline/internal/analyzer"
	"github.com/fachebot/oneline/internal/cache"
	"github.com/fachebot/oneline/internal/config"
	"github.com/fachebot/oneline/internal/hotlist"
	"github.com/fachebot/oneline/internal/llm"
	"github.com/fachebot/oneline/internal/logger"
	"github.com/fachebot/oneline/internal/model"
	"github.com/fachebot/oneline/internal/search"

	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	DB             *sql.DB
	TransportProxy *http.Transport
	HistoryModel   *model.HistoryModel
	JobRunModel    *model.JobRunModel
	LLMClient      *llm.Client
	SearchEngine   *search.Engine
	Cache          *cache.Cache
	HotList        *hotlist.Service
	Analyzer       *analyzer.Analyzer
}

func NewServiceContext(c *config.Config) *ServiceContext {
	// 创建数据库连接
	db, err := model.Open(context.Background(), c.History.DSN)
	if err != nil {
		logger.Fatalf("打开数据库失败, %v", err)
	}

	// 创建SOCKS5代理
	var (
		transportProxy *http.Transport
		transport      http.RoundTripper
	)
	if c.Sock5Proxy.Enable {
		socks5Proxy := fmt.Sprintf("%s:%d", c.Sock5Proxy.Host, c.Sock5Proxy.Port)
		dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
		if err != nil {
			logger.Fatalf("创建SOCKS5代理失败, %v", err)
		}

		transportProxy = &http.Transport{
			Dial:            dialer.Dial,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		transport = transportProxy
	}

	// 搜索引擎
	if unknown := search.UnknownEngines(c.Search.Engines); len(unknown) > 0 {
		logger.Warnf("[Search] 配置了未知的搜索引擎 %v, 请确认 SearXNG 已启用", unknown)
	}
	searcher := search.NewSearXNGClient(c.Search.URL, transport)
	executorConfig := search.DefaultExecutorConfig()
	executorConfig.Concurrency = c.Search.Concurrency
	executorConfig.RateLimit = c.Search.RateLimit
	searchEngine := search.NewEngine(
		searcher,
		search.NewExecutor(searcher, executorConfig),
		search.NewRanker(ScoringWeights(&c.Search.Scoring)),
		search.Options{
			URL:        c.Search.URL,
			Categories: c.Search.Categories,
			Language:   c.Search.Language,
			TimeRange:  c.Search.TimeRange,
			Engines:    c.Search.Engines,
			NumResults: c.Search.NumResults,
		},
		c.Search.Enabled,
	)

	var resultCache *cache.Cache
	if c.Cache.Enable {
		resultCache = cache.New(c.Cache.RedisURL, time.Duration(c.Cache.TTL)*time.Minute, c.Cache.MaxEntries)
		searchEngine.WithCache(resultCache)
	}

	historyModel := model.NewHistoryModel(db)
	llmClient := llm.NewClient(&c.LLM, transport)

	svcCtx := &ServiceContext{
		Config:         c,
		DB:             db,
		TransportProxy: transportProxy,
		HistoryModel:   historyModel,
		JobRunModel:    model.NewJobRunModel(db),
		LLMClient:      llmClient,
		SearchEngine:   searchEngine,
		Cache:          resultCache,
		HotList:        hotlist.NewService(transport, c.HotList.Sources),
		Analyzer:       analyzer.NewAnalyzer(searchEngine, llmClient, historyModel, time.Duration(c.Search.Deadline)*time.Second),
	}
	return svcCtx
}

// ScoringWeights 将配置转换为评分参数，未设置的字段使用默认值
func ScoringWeights(c *config.Scoring) search.ScoringWeights {
	weights := search.DefaultScoringWeights()
	if c.OriginBoost > 0 {
		weights.OriginBoost = c.OriginBoost
	}
	if c.TrustedBoost > 0 {
		weights.TrustedBoost = c.TrustedBoost
	}
	if c.EngineBoost > 0 {
		weights.EngineBoost = c.EngineBoost
	}
	if c.DomainCap > 0 {
		weights.DomainCap = c.DomainCap
	}
	if len(c.TrustedDomains) > 0 {
		weights.TrustedDomains = c.TrustedDomains
	}
	if len(c.RecencyDays) > 0 {
		weights.Recency = make([]search.RecencyBucket, 0, len(c.RecencyDays))
		for i, days := range c.RecencyDays {
			weights.Recency = append(weights.Recency, search.RecencyBucket{MaxDays: days, Factor: c.RecencyFactors[i]})
		}
	}
	return weights
}

func (svcCtx *ServiceContext) Close() {
	if svcCtx.Cache != nil {
		if err := svcCtx.Cache.Close(); err != nil {
			logger.Errorf("关闭缓存失败, %v", err)
		}
	}
	if err := svcCtx.DB.Close(); err != nil {
		logger.Errorf("关闭数据库失败, %v", err)
	}
}
