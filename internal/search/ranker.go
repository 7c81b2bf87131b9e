package search

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/fachebot/oneline/internal/logger"
)

// RecencyBucket 发布时间在 MaxDays 天以内时乘以 Factor
type RecencyBucket struct {
	MaxDays float64
	Factor  float64
}

// ScoringWeights 相关性评分参数
type ScoringWeights struct {
	OriginBoost    float64         // 结果来自原始查询
	TrustedBoost   float64         // 来源属于可信域名
	EngineBoost    float64         // 每个返回该结果的引擎
	DomainCap      int             // 单个域名最多保留的结果数，<=0 表示不限制
	TrustedDomains []string        // 可信域名，按包含关系匹配主机名
	Recency        []RecencyBucket // 按 MaxDays 升序
}

var defaultTrustedDomains = []string{
	"wikipedia.org", "gov", "edu", "un.org", "who.int", "bbc.com",
	"nytimes.com", "reuters.com", "theguardian.com", "cnn.com",
	"xinhuanet.com", "people.com.cn", "chinadaily.com.cn", "sina.com.cn",
}

func DefaultScoringWeights() ScoringWeights {
	domains := make([]string, len(defaultTrustedDomains))
	copy(domains, defaultTrustedDomains)
	return ScoringWeights{
		OriginBoost:    1.5,
		TrustedBoost:   1.3,
		EngineBoost:    0.1,
		DomainCap:      3,
		TrustedDomains: domains,
		Recency: []RecencyBucket{
			{MaxDays: 7, Factor: 2.0},
			{MaxDays: 30, Factor: 1.5},
			{MaxDays: 90, Factor: 1.2},
			{MaxDays: 365, Factor: 1.1},
		},
	}
}

type Ranker struct {
	weights ScoringWeights
	now     func() time.Time
}

func NewRanker(weights ScoringWeights) *Ranker {
	weights.Recency = append([]RecencyBucket(nil), weights.Recency...)
	sort.SliceStable(weights.Recency, func(i, j int) bool {
		return weights.Recency[i].MaxDays < weights.Recency[j].MaxDays
	})
	return &Ranker{weights: weights, now: time.Now}
}

// Merge 按 URL 去重合并多个结果集，计算相关性得分后降序排列，并限制单个域名的结果数
func (r *Ranker) Merge(sets []ResultSet, originalQuery string) *Result {
	now := r.now()
	keywords := Tokenize(originalQuery)

	total := 0
	index := make(map[string]int)
	merged := make([]Item, 0)
	for _, set := range sets {
		total += len(set.Items)
		for _, item := range set.Items {
			if item.URL == "" {
				continue
			}

			score := r.score(item, set.Query, originalQuery, keywords, now)
			if i, ok := index[item.URL]; ok {
				if score > merged[i].Score {
					merged[i].Score = score
				}
				continue
			}

			item.FromQuery = set.Query
			item.Score = score
			index[item.URL] = len(merged)
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	results := r.limitDomains(merged, originalQuery)
	logger.Infof("[Search] 合并搜索结果: 原始结果数量 %d, 去重后 %d, 域名多样化后 %d", total, len(merged), len(results))

	return &Result{
		Query:           originalQuery,
		Results:         results,
		NumberOfResults: len(results),
	}
}

// limitDomains 同一域名最多保留 DomainCap 条，来自原始查询的结果不受限制
func (r *Ranker) limitDomains(items []Item, originalQuery string) []Item {
	if r.weights.DomainCap <= 0 {
		return items
	}

	counts := make(map[string]int)
	results := make([]Item, 0, len(items))
	for _, item := range items {
		domain := domainOf(item.URL)
		counts[domain]++
		if counts[domain] <= r.weights.DomainCap || item.FromQuery == originalQuery {
			results = append(results, item)
		}
	}
	return results
}

// Score 计算单条结果的相关性得分
func (r *Ranker) Score(item Item, fromQuery, originalQuery string) float64 {
	return r.score(item, fromQuery, originalQuery, Tokenize(originalQuery), r.now())
}

func (r *Ranker) score(item Item, fromQuery, originalQuery string, keywords []string, now time.Time) float64 {
	score := item.Score
	if score == 0 || math.IsNaN(score) {
		score = 1
	}

	// 查询匹配度
	if fromQuery == originalQuery {
		score *= r.weights.OriginBoost
	}

	// 关键词匹配率
	score *= 1 + keywordMatchRatio(keywords, item)

	// 时效性
	if item.PublishedDate != "" {
		if published, err := dateparse.ParseAny(item.PublishedDate); err == nil {
			days := now.Sub(published).Hours() / 24
			for _, bucket := range r.weights.Recency {
				if days <= bucket.MaxDays {
					score *= bucket.Factor
					break
				}
			}
		}
	}

	// 来源可信度
	if host := hostnameOf(item.URL); host != "" {
		for _, trusted := range r.weights.TrustedDomains {
			if strings.Contains(host, trusted) {
				score *= r.weights.TrustedBoost
				break
			}
		}
	}

	// 多引擎印证
	if len(item.Engines) > 1 {
		score *= 1 + float64(len(item.Engines))*r.weights.EngineBoost
	}

	return score
}

// keywordMatchRatio 标题命中计 1，仅内容命中计 0.5，再除以关键词数
func keywordMatchRatio(keywords []string, item Item) float64 {
	if len(keywords) == 0 {
		return 0
	}

	titleWords := Tokenize(item.Title)
	contentWords := Tokenize(item.Content)
	matches := 0.0
	for _, keyword := range keywords {
		if containsEither(titleWords, keyword) {
			matches++
		} else if containsEither(contentWords, keyword) {
			matches += 0.5
		}
	}
	return matches / float64(len(keywords))
}

func containsEither(words []string, keyword string) bool {
	for _, word := range words {
		if strings.Contains(word, keyword) || strings.Contains(keyword, word) {
			return true
		}
	}
	return false
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// domainOf 无法解析主机名时使用完整 URL 作为域名
func domainOf(rawURL string) string {
	if host := hostnameOf(rawURL); host != "" {
		return host
	}
	return rawURL
}
