package timeline

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormed = `===总结===
测试总结内容

===事件列表===
--事件1--
日期：2024-01-15
标题：测试事件
描述：这是描述
相关人物：张三(官员,#ff0000)
来源：新华网（https://www.xinhuanet.com/test）
`

func TestParse_WellFormed(t *testing.T) {
	data := Parse(wellFormed)

	assert.Equal(t, "测试总结内容", data.Summary)
	require.Len(t, data.Events, 1)

	event := data.Events[0]
	assert.Equal(t, "event-0", event.ID)
	assert.Equal(t, "2024-01-15", event.Date)
	assert.Equal(t, "测试事件", event.Title)
	assert.Equal(t, "这是描述", event.Description)
	assert.Equal(t, []Person{{Name: "张三", Role: "官员", Color: "#ff0000"}}, event.People)
	assert.Equal(t, "新华网", event.Source)
	assert.Equal(t, "https://www.xinhuanet.com/test", event.SourceURL)
}

func TestParse_MultipleEventsSortedByDigits(t *testing.T) {
	text := `===总结===
概述
===事件列表===
--事件1--
日期：2024-03-01
标题：第三
描述：多行描述
第二行
相关人物：
来源：
--事件2--
日期：2023-12-31
标题：第一
描述：d
相关人物：李四; 王五(外交部长,#00ff00)
来源：https://www.reuters.com/world/
--事件3--
日期：2024-01
标题：第二
描述：d
相关人物：赵六(
来源：路透社 - https://example.com/a)
`
	data := Parse(text)
	require.Len(t, data.Events, 3)

	assert.Equal(t, "event-1", data.Events[0].ID)
	assert.Equal(t, "event-2", data.Events[1].ID)
	assert.Equal(t, "event-0", data.Events[2].ID)

	first := data.Events[0]
	require.Len(t, first.People, 2)
	assert.Equal(t, "李四", first.People[0].Name)
	assert.Equal(t, "相关人物", first.People[0].Role)
	assert.Regexp(t, regexp.MustCompile(`^#[0-9a-f]{6}$`), first.People[0].Color)
	assert.Equal(t, Person{Name: "王五", Role: "外交部长", Color: "#00ff00"}, first.People[1])
	assert.Equal(t, "reuters.com", first.Source)
	assert.Equal(t, "https://www.reuters.com/world/", first.SourceURL)

	second := data.Events[1]
	require.Len(t, second.People, 1)
	assert.Equal(t, "赵六", second.People[0].Name)
	assert.Equal(t, "路透社", second.Source)
	assert.Equal(t, "https://example.com/a", second.SourceURL)

	third := data.Events[2]
	assert.Equal(t, "多行描述\n第二行", third.Description)
	assert.Empty(t, third.People)
	assert.Equal(t, "未指明来源", third.Source)
	assert.Empty(t, third.SourceURL)
}

func TestParse_MissingEventsMarker(t *testing.T) {
	data := Parse("===总结===\n只有总结")
	assert.Equal(t, "只有总结", data.Summary)
	assert.NotNil(t, data.Events)
	assert.Empty(t, data.Events)
}

func TestParse_Garbage(t *testing.T) {
	inputs := []string{
		"",
		"随便一段文字",
		"===事件列表===",
		"===事件列表===\n--事件1--\n--事件2--",
		"===事件列表===\n--事件1--\n日期：\n相关人物：(;;)\n来源：(（https://",
		"\x00\xff===总结===",
	}
	for _, input := range inputs {
		assert.NotPanics(t, func() {
			data := Parse(input)
			assert.NotNil(t, data.Events)
		}, input)
	}
}

func TestFieldRule_SingleLineStopsAtNextLabel(t *testing.T) {
	value, ok := dateRule.extract("日期：2024年5月 标题：事件")
	assert.True(t, ok)
	assert.Equal(t, "2024年5月", value)

	// 单行字段跨行且没有后续标签时视为缺失
	value, ok = dateRule.extract("日期：2024\n描述：x")
	assert.False(t, ok)
	assert.Empty(t, value)

	_, ok = titleRule.extract("没有标签")
	assert.False(t, ok)
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantName string
		wantURL  string
	}{
		{"全角括号", "新华网（https://www.xinhuanet.com/test）", "新华网", "https://www.xinhuanet.com/test"},
		{"半角括号", "BBC(https://bbc.com/news)", "BBC", "https://bbc.com/news"},
		{"前缀文本", "来自人民网: https://people.com.cn/x", "来自人民网", "https://people.com.cn/x"},
		{"仅URL", "https://www.example.org/path", "example.org", "https://www.example.org/path"},
		{"去除尾部方括号", "参考 https://a.com/b]", "参考", "https://a.com/b"},
		{"无URL", "新华社报道", "新华社报道", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, link := parseSource(tt.raw)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantURL, link)
		})
	}
}

func TestSortByDate_DigitStringComparison(t *testing.T) {
	events := []Event{
		{ID: "a", Date: "2024-01-05"},
		{ID: "b", Date: "2024"},
		{ID: "c", Date: "2023年12月"},
		{ID: "d", Date: "2024"},
	}
	SortByDate(events)

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
}

func TestParseSections(t *testing.T) {
	text := "===背景===\n背景内容\n\n===影响===\n影响内容\n===相关事实==="
	sections := ParseSections(text)
	require.Len(t, sections, 3)
	assert.Equal(t, Section{Title: "背景", Content: "背景内容"}, sections[0])
	assert.Equal(t, Section{Title: "影响", Content: "影响内容"}, sections[1])
	assert.Equal(t, Section{Title: "相关事实", Content: ""}, sections[2])

	assert.Nil(t, ParseSections("没有分节的普通文本"))
}
