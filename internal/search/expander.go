package search

import (
	"regexp"
	"strings"
)

var (
	timePattern = regexp.MustCompile(`\b(20\d{2}|19\d{2})年?\b|\b\d{1,2}月\b|\b\d{1,2}日\b`)
	namePattern = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,4}(?:总统|总理|主席|部长|官员|领导人)`)
)

// eventTypes 原样出现在查询中即视为命中的事件类型词
var eventTypes = []string{
	"战争", "冲突", "和平", "协议", "会谈", "峰会", "危机", "事件",
	"爆炸", "抗议", "示威", "选举", "政变", "改革", "制裁",
	"经济", "政治", "外交", "军事", "科技", "文化", "环境", "疫情",
	"谈判", "会议", "签署", "发布", "宣布", "声明", "访问", "演讲",
	"war", "conflict", "peace", "agreement", "talks", "summit", "crisis", "incident",
	"explosion", "protest", "election", "coup", "reform", "sanctions",
	"economic", "political", "diplomatic", "military", "tech", "cultural", "environment", "pandemic",
	"negotiation", "meeting", "signing", "release", "announce", "statement", "visit", "speech",
}

var (
	latestSuffixes     = []string{"最新进展", "最新消息", "latest news", "recent updates"}
	backgroundSuffixes = []string{"背景", "影响", "background", "impact"}
)

// Expand 将原始查询拆分为多个子查询，第一个元素始终是原始查询
func Expand(originalQuery string) []string {
	if strings.TrimSpace(originalQuery) == "" {
		return nil
	}

	tokens := Tokenize(originalQuery)
	synonyms := ExtractRelatedConcepts(originalQuery)
	timeTokens := timePattern.FindAllString(originalQuery, -1)
	nameTokens := namePattern.FindAllString(originalQuery, -1)

	eventTokens := make([]string, 0)
	for _, eventType := range eventTypes {
		if strings.Contains(originalQuery, eventType) {
			eventTokens = append(eventTokens, eventType)
		}
	}

	core := originalQuery
	if len(tokens) > 2 {
		core = strings.Join(tokens[:3], " ")
	}

	queries := []string{originalQuery}
	withCore := func(parts ...string) {
		queries = append(queries, core+" "+strings.Join(parts, " "))
	}

	if len(timeTokens) > 0 {
		withCore(timeTokens...)
	}
	if len(nameTokens) > 0 {
		withCore(nameTokens...)
	}
	if len(eventTokens) > 0 {
		withCore(eventTokens...)
	}
	if len(synonyms) > 0 {
		withCore(synonyms[:min(3, len(synonyms))]...)
	}
	for _, suffix := range latestSuffixes {
		withCore(suffix)
	}
	for _, suffix := range backgroundSuffixes {
		withCore(suffix)
	}

	seen := make(map[string]struct{}, len(queries))
	result := make([]string, 0, len(queries))
	for i, q := range queries {
		// 原始查询保持原样，其余子查询去除首尾空白
		if i > 0 {
			q = strings.TrimSpace(q)
		}
		key := strings.TrimSpace(q)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, q)
	}
	return result
}
