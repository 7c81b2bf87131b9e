package search

import (
	"slices"
	"strings"
)

// QueryKind 查询类型
type QueryKind string

const (
	KindNews     QueryKind = "news"
	KindAcademic QueryKind = "academic"
	KindFact     QueryKind = "fact"
	KindGeneral  QueryKind = "general"
)

type engineRule struct {
	kind     QueryKind
	keywords []string
	engines  []string
}

// engineRules 按顺序匹配，命中第一个即返回
var engineRules = []engineRule{
	{
		kind: KindNews,
		keywords: []string{"最新", "近期", "消息", "新闻", "报道", "通报", "公告",
			"最新进展", "最新消息", "news", "latest", "recent", "update"},
		engines: []string{"google news", "bing news", "baidu news", "duckduckgo news"},
	},
	{
		kind: KindAcademic,
		keywords: []string{"研究", "论文", "学术", "科技", "技术", "报告", "分析",
			"research", "paper", "academic", "technology", "technical", "report", "analysis"},
		engines: []string{"google scholar", "semantic scholar", "base", "microsoft academic"},
	},
	{
		kind: KindFact,
		keywords: []string{"是什么", "定义", "介绍", "简介", "百科", "历史", "起源", "背景",
			"what is", "definition", "introduction", "wiki", "history", "origin", "background"},
		engines: []string{"wikipedia", "wikidata", "baidu", "bing", "google", "brave", "duckduckgo"},
	},
}

// knownEngines SearXNG 中常用的搜索引擎
var knownEngines = []string{
	"google", "bing", "brave", "duckduckgo", "baidu", "yandex",
	"google news", "bing news", "baidu news", "duckduckgo news",
	"google scholar", "semantic scholar", "base", "microsoft academic",
	"wikipedia", "wikidata",
	"reddit", "twitter", "youtube",
}

// UnknownEngines 返回不在常用引擎列表中的名称，SearXNG 实例可能自行配置了这些引擎
func UnknownEngines(engines []string) []string {
	unknown := make([]string, 0)
	for _, engine := range engines {
		if !slices.Contains(knownEngines, strings.ToLower(strings.TrimSpace(engine))) {
			unknown = append(unknown, engine)
		}
	}
	return unknown
}

// ClassifyQuery 根据关键词判断查询类型
func ClassifyQuery(query string) QueryKind {
	for _, rule := range engineRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(query, keyword) {
				return rule.kind
			}
		}
	}
	return KindGeneral
}

// SelectEngines 为查询选择搜索引擎子集。
// 配置了固定引擎时直接返回；无法归类时返回 nil，交由 SearXNG 自行选择。
func SelectEngines(query string, configured []string) []string {
	if len(configured) > 0 {
		return configured
	}

	kind := ClassifyQuery(query)
	for _, rule := range engineRules {
		if rule.kind == kind {
			engines := make([]string, len(rule.engines))
			copy(engines, rule.engines)
			return engines
		}
	}
	return nil
}
