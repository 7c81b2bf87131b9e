package search

import (
	"fmt"
	"strings"
)

const (
	noResultsText  = "未找到相关搜索结果。"
	maxPromptItems = 10
)

var promptInstructions = []string{
	"请根据以上搜索结果和你已有的知识回答问题。特别是利用最新的事实和数据。为每个事件尽可能提供详细信息，包括：",
	"1. 精确的日期（年月日）",
	"2. 参与的人物及其角色",
	"3. 详细的事件描述，包括原因、经过和结果",
	"4. 可靠的信息来源",
	"5. 相关的背景和影响",
	"6. 尽可能分析不同来源信息的差异，整合最完整和准确的事实",
	"7. 在事件来源中，必须加入原始新闻的URL链接，以便用户查看原始报道",
}

// FormatForPrompt 将搜索结果格式化为提供给大模型的上下文文本，最多取前 10 条
func FormatForPrompt(result *Result) string {
	if result == nil || len(result.Results) == 0 {
		return noResultsText
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "以下是与\"%s\"相关的最新搜索结果：\n\n", result.Query)

	for i, item := range result.Results[:min(maxPromptItems, len(result.Results))] {
		if item.FromQuery != "" && item.FromQuery != result.Query {
			fmt.Fprintf(&sb, "[%d] %s (来自查询: \"%s\")\n", i+1, item.Title, item.FromQuery)
		} else {
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, item.Title)
		}
		fmt.Fprintf(&sb, "来源: %s\n", item.URL)
		if item.PublishedDate != "" {
			fmt.Fprintf(&sb, "日期: %s\n", item.PublishedDate)
		}
		if item.Category != "" {
			fmt.Fprintf(&sb, "类别: %s\n", item.Category)
		}
		engine := item.Engine
		if engine == "" {
			engine = strings.Join(item.Engines, ", ")
		}
		fmt.Fprintf(&sb, "引擎: %s\n", engine)
		fmt.Fprintf(&sb, "摘要: %s\n\n", item.Content)
	}

	for _, line := range promptInstructions {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
