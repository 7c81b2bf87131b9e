package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream;charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// eventStream 串行写入 SSE 事件，进度回调可能来自多个 goroutine
type eventStream struct {
	mu      sync.Mutex
	c       *gin.Context
	started bool
}

func newEventStream(c *gin.Context) *eventStream {
	return &eventStream{c: c}
}

func (s *eventStream) start() {
	if s.started {
		return
	}
	s.started = true
	setSSEHeaders(s.c)
	s.c.Status(http.StatusOK)
}

// send 写入带事件名的 SSE 事件
func (s *eventStream) send(event string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.start()
	s.c.SSEvent(event, data)
	s.c.Writer.Flush()
	return s.c.Request.Context().Err()
}

// sendData 写入只有 data 字段的 SSE 消息
func (s *eventStream) sendData(data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = string(raw)
	}

	s.start()
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return s.c.Request.Context().Err()
}

func (s *eventStream) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
