package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fachebot/oneline/internal/llm"
	"github.com/fachebot/oneline/internal/model"
	"github.com/fachebot/oneline/internal/search"
	"github.com/fachebot/oneline/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSearchEngine 用于测试的 searchEngine mock
type mockSearchEngine struct {
	result *search.Result
	err    error
	calls  int
}

func (m *mockSearchEngine) Search(ctx context.Context, query string, progress search.ProgressFunc) (*search.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// slowSearchEngine 一直阻塞到 ctx 结束
type slowSearchEngine struct{}

func (slowSearchEngine) Search(ctx context.Context, query string, progress search.ProgressFunc) (*search.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// mockChatClient 用于测试的 chatClient mock
type mockChatClient struct {
	content  string
	chunks   []string
	err      error
	messages []llm.Message
	streamed bool
	ctxErr   error
}

func (m *mockChatClient) Model() string { return "test-model" }

func (m *mockChatClient) Chat(ctx context.Context, messages []llm.Message, temperature float32) (string, error) {
	m.messages = messages
	m.ctxErr = ctx.Err()
	if m.err != nil {
		return "", m.err
	}
	return m.content, nil
}

func (m *mockChatClient) ChatStream(ctx context.Context, messages []llm.Message, temperature float32, onChunk func(string) error) (string, error) {
	m.messages = messages
	m.streamed = true
	if m.err != nil {
		return "", m.err
	}
	for _, chunk := range m.chunks {
		if err := onChunk(chunk); err != nil {
			return "", err
		}
	}
	return m.content, nil
}

// mockHistoryRecorder 用于测试的 historyRecorder mock
type mockHistoryRecorder struct {
	queries  []string
	searched []bool
	err      error
}

func (m *mockHistoryRecorder) Create(ctx context.Context, query string, data *timeline.Data, searched bool) (*model.History, error) {
	m.queries = append(m.queries, query)
	m.searched = append(m.searched, searched)
	if m.err != nil {
		return nil, m.err
	}
	return &model.History{Query: query}, nil
}

const timelineReply = `===总结===
测试总结

===事件列表===
--事件1--
日期：2024-01-15
标题：首个事件
描述：事件描述
相关人物：张三(官员,#ff0000)
来源：新华网（https://www.xinhuanet.com/a）
`

func sampleResult() *search.Result {
	return &search.Result{
		Query: "俄乌冲突",
		Results: []search.Item{
			{Title: "搜索标题", URL: "https://example.com/1", Content: "搜索内容"},
		},
		NumberOfResults: 1,
	}
}

type progressRecorder struct {
	events []search.ProgressEvent
}

func (r *progressRecorder) observe(e search.ProgressEvent) {
	r.events = append(r.events, e)
}

func (r *progressRecorder) messages() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Message)
	}
	return out
}

func TestGenerateTimeline(t *testing.T) {
	t.Run("搜索结果作为上下文并保存历史", func(t *testing.T) {
		searcher := &mockSearchEngine{result: sampleResult()}
		client := &mockChatClient{content: timelineReply}
		history := &mockHistoryRecorder{}
		a := &Analyzer{searcher: searcher, llmClient: client, history: history}

		rec := &progressRecorder{}
		data, err := a.GenerateTimeline(context.Background(), "俄乌冲突", rec.observe, nil)
		require.NoError(t, err)

		assert.Equal(t, "测试总结", data.Summary)
		require.Len(t, data.Events, 1)
		assert.Equal(t, "首个事件", data.Events[0].Title)
		assert.Equal(t, "新华网", data.Events[0].Source)

		require.Len(t, client.messages, 3)
		assert.Equal(t, "system", client.messages[1].Role)
		assert.Contains(t, client.messages[1].Content, "搜索标题")
		assert.False(t, client.streamed)

		assert.Equal(t, []string{"俄乌冲突"}, history.queries)
		assert.Equal(t, []bool{true}, history.searched)

		msgs := rec.messages()
		assert.Equal(t, "开始处理关键词：俄乌冲突", msgs[0])
		assert.Contains(t, msgs, "正在使用AI助手生成时间轴，模型：test-model")
		assert.Contains(t, msgs, "AI助手已生成时间轴数据，正在处理结果")
		last := rec.events[len(rec.events)-1]
		assert.Equal(t, "生成完成，共包含 1 个事件", last.Message)
		assert.Equal(t, search.StatusCompleted, last.Status)
	})

	t.Run("搜索失败时仅使用模型知识", func(t *testing.T) {
		searcher := &mockSearchEngine{err: errors.New("连接失败")}
		client := &mockChatClient{content: timelineReply}
		history := &mockHistoryRecorder{}
		a := &Analyzer{searcher: searcher, llmClient: client, history: history}

		data, err := a.GenerateTimeline(context.Background(), "俄乌冲突", nil, nil)
		require.NoError(t, err)
		assert.Len(t, data.Events, 1)
		assert.Len(t, client.messages, 2)
		assert.Equal(t, []bool{false}, history.searched)
	})

	t.Run("请求取消时直接返回", func(t *testing.T) {
		searcher := &mockSearchEngine{err: context.Canceled}
		client := &mockChatClient{content: timelineReply}
		a := &Analyzer{searcher: searcher, llmClient: client}

		_, err := a.GenerateTimeline(context.Background(), "q", nil, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, client.messages)
	})

	t.Run("搜索超时后仍调用模型生成", func(t *testing.T) {
		client := &mockChatClient{content: timelineReply}
		a := &Analyzer{searcher: slowSearchEngine{}, llmClient: client, searchDeadline: 20 * time.Millisecond}

		rec := &progressRecorder{}
		data, err := a.GenerateTimeline(context.Background(), "q", rec.observe, nil)
		require.NoError(t, err)
		assert.Len(t, data.Events, 1)
		require.Len(t, client.messages, 2)
		assert.NoError(t, client.ctxErr)

		var failed bool
		for _, e := range rec.events {
			if e.Status == search.StatusFailed {
				failed = true
			}
		}
		assert.True(t, failed)
	})

	t.Run("请求本身超时时不再调用模型", func(t *testing.T) {
		client := &mockChatClient{content: timelineReply}
		a := &Analyzer{searcher: slowSearchEngine{}, llmClient: client, searchDeadline: time.Second}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := a.GenerateTimeline(ctx, "q", nil, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, client.messages)
	})

	t.Run("模型调用失败", func(t *testing.T) {
		upstream := &llm.UpstreamError{Kind: "Upstream error", Message: "invalid key", Status: 401}
		a := &Analyzer{
			searcher:  &mockSearchEngine{result: sampleResult()},
			llmClient: &mockChatClient{err: upstream},
		}

		rec := &progressRecorder{}
		_, err := a.GenerateTimeline(context.Background(), "q", rec.observe, nil)
		require.Error(t, err)

		var target *llm.UpstreamError
		require.True(t, errors.As(err, &target))
		assert.Equal(t, 401, target.Status)

		last := rec.events[len(rec.events)-1]
		assert.Equal(t, search.StatusFailed, last.Status)
		assert.Contains(t, last.Message, "生成时间轴失败：")
	})

	t.Run("流式输出转发增量文本", func(t *testing.T) {
		client := &mockChatClient{content: timelineReply, chunks: []string{"===总", "结==="}}
		a := &Analyzer{searcher: &mockSearchEngine{result: sampleResult()}, llmClient: client}

		var chunks []string
		data, err := a.GenerateTimeline(context.Background(), "q", nil, func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, client.streamed)
		assert.Equal(t, []string{"===总", "结==="}, chunks)
		assert.Len(t, data.Events, 1)
	})

	t.Run("保存历史失败不影响结果", func(t *testing.T) {
		history := &mockHistoryRecorder{err: errors.New("磁盘已满")}
		a := &Analyzer{
			searcher:  &mockSearchEngine{result: sampleResult()},
			llmClient: &mockChatClient{content: timelineReply},
			history:   history,
		}

		data, err := a.GenerateTimeline(context.Background(), "q", nil, nil)
		require.NoError(t, err)
		assert.Len(t, data.Events, 1)
		assert.Len(t, history.queries, 1)
	})

	t.Run("无法解析时返回空事件列表", func(t *testing.T) {
		a := &Analyzer{
			searcher:  &mockSearchEngine{result: sampleResult()},
			llmClient: &mockChatClient{content: "无关内容"},
		}

		data, err := a.GenerateTimeline(context.Background(), "q", nil, nil)
		require.NoError(t, err)
		assert.NotNil(t, data.Events)
		assert.Empty(t, data.Events)
	})
}

func TestNewAnalyzer_NilHistory(t *testing.T) {
	a := NewAnalyzer(nil, nil, nil, 0)
	assert.Nil(t, a.history)
}

const detailsReply = `===事件背景===
背景内容

===事件经过===
经过内容`

func TestEventDetails(t *testing.T) {
	client := &mockChatClient{content: detailsReply}
	a := &Analyzer{searcher: &mockSearchEngine{result: sampleResult()}, llmClient: client}

	rec := &progressRecorder{}
	analysis, err := a.EventDetails(context.Background(), "2024-01-15 首个事件", rec.observe, nil)
	require.NoError(t, err)

	assert.Equal(t, detailsReply, analysis.Content)
	require.Len(t, analysis.Sections, 2)
	assert.Equal(t, "事件背景", analysis.Sections[0].Title)
	assert.Equal(t, llm.EventDetailsSystemPrompt, client.messages[0].Content)

	msgs := rec.messages()
	assert.Equal(t, "正在获取事件【2024-01-15 首个事件】的详细信息", msgs[0])
	assert.Equal(t, "事件详情分析完成", msgs[len(msgs)-1])
}

func TestImpactAssessment(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		client := &mockChatClient{content: "===经济影响===\n影响内容"}
		a := &Analyzer{searcher: &mockSearchEngine{result: sampleResult()}, llmClient: client}

		rec := &progressRecorder{}
		analysis, err := a.ImpactAssessment(context.Background(), "首个事件", rec.observe, nil)
		require.NoError(t, err)
		require.Len(t, analysis.Sections, 1)
		assert.Equal(t, "经济影响", analysis.Sections[0].Title)
		assert.Equal(t, llm.ImpactAssessmentSystemPrompt, client.messages[0].Content)

		msgs := rec.messages()
		assert.Contains(t, msgs, "正在使用AI助手分析事件影响")
		assert.Equal(t, "影响评估分析完成", msgs[len(msgs)-1])
	})

	t.Run("模型调用失败", func(t *testing.T) {
		a := &Analyzer{
			searcher:  &mockSearchEngine{result: sampleResult()},
			llmClient: &mockChatClient{err: llm.ErrEmptyResponse},
		}
		_, err := a.ImpactAssessment(context.Background(), "q", nil, nil)
		assert.ErrorIs(t, err, llm.ErrEmptyResponse)
	})
}
