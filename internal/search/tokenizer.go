package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	chinesePattern = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]`)

	// 中文分词规则，按顺序匹配，所有结果都保留
	segmentPatterns = []*regexp.Regexp{
		// 机构名称
		regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,6}(?:大学|学院|学校|医院|公司|集团|银行|酒店|餐厅|商场|市场|广场|中心|学会|研究院|研究所|组织|机构|部门|委员会|协会|联盟|基金会)`),
		// 地名
		regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{1,2}(?:省|市|县|区|镇|乡|村|街道|路|大道|高速|铁路|机场|港口|车站)`),
		// 职位/人名
		regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,4}(?:总统|总理|主席|部长|官员|领导人|秘书长|议员|大使|外交官|司令|将军|指挥官)`),
		// 事件名称
		regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,6}(?:战争|冲突|危机|事件|协议|合同|条约|宣言|声明|公告|计划|政策|法案|政变|革命|改革|运动|项目)`),
		// 日期
		regexp.MustCompile(`(?:19|20)\d{2}年?(?:\d{1,2}月)?(?:\d{1,2}日)?`),
	}

	basicSeparator = regexp.MustCompile(`[\s\p{Z},.;，。；：！？、"'“”‘’《》【】()（）\[\]{}]`)
)

// synonymTable 常见概念词与同义词映射
var synonymTable = map[string][]string{
	"战争": {"冲突", "战事", "军事行动", "军事冲突"},
	"和平": {"休战", "停火", "和解", "协议"},
	"协议": {"条约", "协定", "合同", "备忘录"},
	"经济": {"金融", "财政", "贸易", "商业"},
	"政治": {"政府", "政策", "执政", "施政"},
	"军事": {"国防", "武装", "军队", "军备"},
	"冲突": {"争端", "纠纷", "对立", "矛盾"},
	"危机": {"紧急情况", "险情", "重大挑战"},
	"制裁": {"惩罚", "处罚", "限制", "禁令"},
	"峰会": {"会议", "高层会谈", "首脑会议"},
	"示威": {"抗议", "游行", "集会"},
	"最新": {"最近", "近期", "最新进展", "最新动态"},
	"影响": {"后果", "效应", "结果", "冲击"},
	"背景": {"来龙去脉", "历史背景", "前因后果"},

	"war":        {"conflict", "military action", "warfare"},
	"peace":      {"ceasefire", "truce", "armistice"},
	"agreement":  {"treaty", "accord", "pact", "deal"},
	"economy":    {"financial", "fiscal", "trade", "business"},
	"politics":   {"government", "policy", "governance"},
	"military":   {"defense", "armed forces", "troops"},
	"conflict":   {"dispute", "clash", "confrontation"},
	"crisis":     {"emergency", "critical situation"},
	"sanctions":  {"penalties", "restrictions", "embargo"},
	"summit":     {"conference", "meeting", "talks"},
	"protest":    {"demonstration", "rally", "march"},
	"latest":     {"recent", "newest", "current", "update"},
	"impact":     {"effect", "consequence", "result", "aftermath"},
	"background": {"context", "history", "origin", "cause"},
}

// HasChinese 判断文本是否包含中文字符
func HasChinese(text string) bool {
	return chinesePattern.MatchString(text)
}

// Tokenize 对文本分词，返回去重后保持首次出现顺序的词列表。
// 包含中文时按规则切分，否则按空白切分。
func Tokenize(text string) []string {
	if HasChinese(text) {
		return segmentChinese(text)
	}
	return dedupe(strings.Fields(text))
}

func segmentChinese(text string) []string {
	segments := make([]string, 0)
	for _, pattern := range segmentPatterns {
		segments = append(segments, pattern.FindAllString(text, -1)...)
	}

	// 按空格和标点拆分的基础词，单字视为噪声
	for _, token := range basicSeparator.Split(text, -1) {
		if utf8.RuneCountInString(token) > 1 {
			segments = append(segments, token)
		}
	}
	return dedupe(segments)
}

// ExtractRelatedConcepts 查找文本中各个词的同义词和相关概念
func ExtractRelatedConcepts(text string) []string {
	concepts := make([]string, 0)
	for _, token := range Tokenize(text) {
		if synonyms, ok := synonymTable[token]; ok {
			concepts = append(concepts, synonyms...)
		}
	}
	return concepts
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}
