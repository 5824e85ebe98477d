package dashscope

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"qwenlink/internal/provider"
)

// sseStream reads DashScope server-sent events. A DashScope event looks like:
//
//	id:1
//	event:result
//	:HTTP_STATUS/200
//	data:{"output":{...},"usage":{...},"request_id":"..."}
//
// Failures arrive as event:error with the error body in data.
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	log    zerolog.Logger

	closeOnce sync.Once
	closeErr  error
	done      bool
}

var _ provider.Stream = (*sseStream)(nil)

// Recv returns the next result chunk or io.EOF.
func (s *sseStream) Recv() (*provider.Response, error) {
	if s.done {
		return nil, io.EOF
	}

	var (
		event  string
		status int
		data   []string
	)
	for {
		line, readErr := s.reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(data) > 0 {
				return s.decode(event, status, strings.Join(data, "\n"))
			}
		case strings.HasPrefix(line, ":HTTP_STATUS/"):
			status, _ = strconv.Atoi(strings.TrimPrefix(line, ":HTTP_STATUS/"))
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if readErr != nil {
			if len(data) > 0 {
				return s.decode(event, status, strings.Join(data, "\n"))
			}
			s.done = true
			if errors.Is(readErr, io.EOF) {
				return nil, io.EOF
			}
			return nil, provider.NewNetworkError(providerName, readErr)
		}
	}
}

func (s *sseStream) decode(event string, status int, data string) (*provider.Response, error) {
	if data == "[DONE]" {
		s.done = true
		return nil, io.EOF
	}

	if event == "error" {
		s.done = true
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return nil, handleErrorResponse(status, []byte(data))
	}

	var resp provider.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		s.log.Error().Err(err).Str("data", data).Msg("Failed to parse DashScope stream chunk")
		s.done = true
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &resp, nil
}

// Close releases the HTTP body. It is safe to call more than once.
func (s *sseStream) Close() error {
	s.closeOnce.Do(func() {
		s.done = true
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
