package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearXNGClient_Search(t *testing.T) {
	var got url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("User-Agent"), "OneLine")
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"query":"war","number_of_results":123,"results":[{"title":"t","url":"https://a.com","content":"c","engines":["bing","google"]}]}`)
	}))
	defer server.Close()

	client := NewSearXNGClient(server.URL+"/", nil)
	safesearch := 1
	resp, err := client.Search(context.Background(), &Request{
		Query:      "war",
		Engines:    []string{"bing", "google"},
		NumResults: 5,
		Safesearch: &safesearch,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://a.com", resp.Results[0].URL)
	assert.Equal(t, []string{"bing", "google"}, resp.Results[0].Engines)
	assert.Equal(t, 1, resp.NumberOfResults)

	assert.Equal(t, "war", got.Get("q"))
	assert.Equal(t, "json", got.Get("format"))
	assert.Equal(t, "general", got.Get("categories"))
	assert.Equal(t, "zh", got.Get("language"))
	assert.Equal(t, "year", got.Get("time_range"))
	assert.Equal(t, "bing,google", got.Get("engines"))
	assert.Equal(t, "5", got.Get("num_results"))
	assert.Equal(t, "1", got.Get("safesearch"))
}

func TestSearXNGClient_RequestURLOverridesBase(t *testing.T) {
	hit := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		assert.Empty(t, r.URL.Query().Get("engines"))
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer server.Close()

	client := NewSearXNGClient("", nil)
	resp, err := client.Search(context.Background(), &Request{Query: "q", SearxngURL: server.URL})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []Item{}, resp.Results)
	assert.Equal(t, "No results found in SearXNG response", resp.Message)
}

func TestSearXNGClient_Disabled(t *testing.T) {
	client := NewSearXNGClient("", nil)
	_, err := client.Search(context.Background(), &Request{Query: "q"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = client.Search(context.Background(), &Request{Query: "  "})
	assert.Error(t, err)
}

func TestSearXNGClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "maintenance")
	}))
	defer server.Close()

	client := NewSearXNGClient(server.URL, nil)
	_, err := client.Search(context.Background(), &Request{Query: "q"})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "maintenance", statusErr.Body)
	assert.Equal(t, "搜索服务暂时不可用", DescribeError(err))
}

func TestSearXNGClient_InvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer server.Close()

	client := NewSearXNGClient(server.URL, nil)
	_, err := client.Search(context.Background(), &Request{Query: "q"})
	require.Error(t, err)
	assert.Equal(t, "SearXNG返回的数据格式不正确", DescribeError(err))
}

func TestAdaptResponse(t *testing.T) {
	const searchURL = "https://searx.example.com/search"

	t.Run("使用answers", func(t *testing.T) {
		body := &searxngBody{Answers: []json.RawMessage{
			json.RawMessage(`"巴黎"`),
			json.RawMessage(`{"answer":"法国首都"}`),
			json.RawMessage(`123`),
		}}
		resp := adaptResponse("q", searchURL, body)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, "巴黎", resp.Results[0].Title)
		assert.Equal(t, "法国首都", resp.Results[1].Content)
		assert.Equal(t, "searxng_answers", resp.Results[0].Engine)
		assert.Equal(t, searchURL, resp.Results[0].URL)
	})

	t.Run("使用suggestions", func(t *testing.T) {
		body := &searxngBody{Suggestions: []string{"俄乌 停火"}}
		resp := adaptResponse("q", searchURL, body)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "建议搜索: 俄乌 停火", resp.Results[0].Title)
		assert.Equal(t, "您可能想搜索: 俄乌 停火", resp.Results[0].Content)
		assert.Equal(t, searchURL+"?q="+url.QueryEscape("俄乌 停火"), resp.Results[0].URL)
		assert.Equal(t, "searxng_suggestions", resp.Results[0].Engine)
	})

	t.Run("已有结果不适配", func(t *testing.T) {
		body := &searxngBody{
			Results:     []Item{{Title: "t", URL: "https://a.com"}},
			Suggestions: []string{"s"},
		}
		resp := adaptResponse("q", searchURL, body)
		require.Len(t, resp.Results, 1)
		assert.Empty(t, resp.Message)
	})
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://searx.example.com", NormalizeBaseURL("searx.example.com/"))
	assert.Equal(t, "http://localhost:8888", NormalizeBaseURL(" http://localhost:8888// "))
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "", DescribeError(nil))
	assert.Equal(t, "请求超时，服务器响应时间过长", DescribeError(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, "找不到搜索服务，请检查URL是否正确", DescribeError(&StatusError{StatusCode: 404}))
	assert.Equal(t, "未知错误", DescribeError(&StatusError{StatusCode: 418}))
	assert.Equal(t, "未知错误", DescribeError(errors.New("boom")))
}
