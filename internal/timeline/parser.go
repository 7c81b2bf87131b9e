package timeline

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	summaryMarker = "===总结==="
	eventsMarker  = "===事件列表==="

	defaultSource = "未指明来源"
	defaultRole   = "相关人物"
	fallbackName  = "查看来源"
)

var (
	eventSeparator = regexp.MustCompile(`\s*--事件\d+--\s*`)
	personPattern  = regexp.MustCompile(`(.*?)\((.*?),(.*?)\)`)
	nameURLPattern = regexp.MustCompile(`^(.+?)[\(（]+(https?://[^\s\)）]+)[\)）]+`)
	bareURLPattern = regexp.MustCompile(`(https?://[^\s\)）]+)`)
	urlTail        = regexp.MustCompile(`[\)\]]$`)
	nameTail       = regexp.MustCompile(`[\s:：\-—]+$`)
	nonDigits      = regexp.MustCompile(`\D`)
	sectionTitle   = regexp.MustCompile(`===(.*?)===(?:\r?\n|$)`)
)

// fieldRule 从事件块中提取一个带标签的字段，值截止到下一个标签或文本末尾
type fieldRule struct {
	label     string
	stop      string
	multiline bool
}

func (r fieldRule) extract(block string) (string, bool) {
	idx := strings.Index(block, r.label)
	if idx < 0 {
		return "", false
	}

	rest := strings.TrimLeftFunc(block[idx+len(r.label):], unicode.IsSpace)
	end := len(rest)
	if r.stop != "" {
		if i := strings.Index(rest, r.stop); i >= 0 {
			end = i
		}
	}

	value := strings.TrimSpace(rest[:end])
	if !r.multiline && strings.ContainsAny(value, "\r\n") {
		return "", false
	}
	return value, true
}

var (
	dateRule        = fieldRule{label: "日期：", stop: "标题："}
	titleRule       = fieldRule{label: "标题：", stop: "描述："}
	descriptionRule = fieldRule{label: "描述：", stop: "相关人物：", multiline: true}
	peopleRule      = fieldRule{label: "相关人物：", stop: "来源："}
	sourceRule      = fieldRule{label: "来源：", stop: "--事件", multiline: true}
)

// sourceMatcher 从来源文本中识别网站名称和链接
type sourceMatcher struct {
	name  string
	match func(raw string) (name, link string, ok bool)
}

// sourceMatchers 按优先级依次尝试
var sourceMatchers = []sourceMatcher{
	{name: "name-url", match: matchNameURL},
	{name: "bare-url", match: matchBareURL},
	{name: "plain", match: matchPlain},
}

// matchNameURL 网站名（URL） 或 网站名(URL)
func matchNameURL(raw string) (string, string, bool) {
	m := nameURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), urlTail.ReplaceAllString(strings.TrimSpace(m[2]), ""), true
}

// matchBareURL 文本中任意位置的 URL，URL 之前的内容作为名称，没有内容时使用域名
func matchBareURL(raw string) (string, string, bool) {
	m := bareURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}

	original := m[1]
	link := urlTail.ReplaceAllString(original, "")

	before, _, _ := strings.Cut(raw, original)
	name := nameTail.ReplaceAllString(strings.TrimSpace(before), "")
	if name != "" {
		return name, link, true
	}

	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return fallbackName, link, true
	}
	return strings.TrimPrefix(u.Hostname(), "www."), link, true
}

func matchPlain(raw string) (string, string, bool) {
	return raw, "", true
}

func parseSource(raw string) (string, string) {
	for _, matcher := range sourceMatchers {
		if name, link, ok := matcher.match(raw); ok {
			return name, link
		}
	}
	return raw, ""
}

// parsePeople 解析 人物名(角色,#颜色) 列表，格式不完整时只保留人名
func parsePeople(text string) []Person {
	people := make([]Person, 0)
	for _, entry := range strings.Split(text, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if m := personPattern.FindStringSubmatch(entry); m != nil {
			people = append(people, Person{
				Name:  strings.TrimSpace(m[1]),
				Role:  strings.TrimSpace(m[2]),
				Color: strings.TrimSpace(m[3]),
			})
			continue
		}

		name, _, _ := strings.Cut(entry, "(")
		if name = strings.TrimSpace(name); name != "" {
			people = append(people, Person{Name: name, Role: defaultRole, Color: randomColor()})
		}
	}
	return people
}

func randomColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0xffffff))
}

func parseEvent(index int, block string) Event {
	date, _ := dateRule.extract(block)
	title, _ := titleRule.extract(block)
	description, _ := descriptionRule.extract(block)

	people := make([]Person, 0)
	if text, _ := peopleRule.extract(block); text != "" {
		people = parsePeople(text)
	}

	raw, _ := sourceRule.extract(block)
	if raw == "" {
		raw = defaultSource
	}
	source, sourceURL := parseSource(raw)

	return Event{
		ID:          fmt.Sprintf("event-%d", index),
		Date:        date,
		Title:       title,
		Description: description,
		People:      people,
		Source:      source,
		SourceURL:   sourceURL,
	}
}

// Parse 解析大模型返回的时间轴文本。
// 无法识别的文本返回空总结和空事件列表，不会报错
func Parse(text string) Data {
	data := Data{Events: make([]Event, 0)}

	if idx := strings.Index(text, summaryMarker); idx >= 0 {
		rest := text[idx+len(summaryMarker):]
		if end := strings.Index(rest, eventsMarker); end >= 0 {
			rest = rest[:end]
		}
		data.Summary = strings.TrimSpace(rest)
	}

	idx := strings.Index(text, eventsMarker)
	if idx < 0 {
		return data
	}

	eventsText := strings.TrimSpace(text[idx+len(eventsMarker):])
	for _, block := range eventSeparator.Split(eventsText, -1) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		data.Events = append(data.Events, parseEvent(len(data.Events), block))
	}

	SortByDate(data.Events)
	return data
}

// SortByDate 按日期中的数字部分升序排列（字符串比较）
func SortByDate(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return dateKey(events[i].Date) < dateKey(events[j].Date)
	})
}

func dateKey(date string) string {
	return nonDigits.ReplaceAllString(date, "")
}

// ParseSections 按 ===标题=== 切分文本，没有标题时返回 nil
func ParseSections(text string) []Section {
	matches := sectionTitle.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	sections := make([]Section, 0, len(matches))
	for i, m := range matches {
		end := len(text)
		if i < len(matches)-1 {
			end = matches[i+1][0]
		}
		sections = append(sections, Section{
			Title:   strings.TrimSpace(text[m[2]:m[3]]),
			Content: strings.TrimSpace(text[m[1]:end]),
		})
	}
	return sections
}
