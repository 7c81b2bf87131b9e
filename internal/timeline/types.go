package timeline

// Person 事件相关人物
type Person struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Color string `json:"color"`
}

// Event 时间轴上的单个事件
type Event struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	People      []Person `json:"people"`
	Source      string   `json:"source"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
}

// Data 时间轴解析结果
type Data struct {
	Summary string  `json:"summary"`
	Events  []Event `json:"events"`
}

// Section 按 ===标题=== 切分的一段内容
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
