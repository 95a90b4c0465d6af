package notify

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubReply is one scripted provider answer.
type stubReply struct {
	status int
	body   string
	err    error
}

// stubTransport answers calls in order; the last reply repeats.
type stubTransport struct {
	mu      sync.Mutex
	replies []stubReply
	reqs    []Request
}

func reply(status int, body string) *stubTransport {
	return &stubTransport{replies: []stubReply{{status: status, body: body}}}
}

func replies(rs ...stubReply) *stubTransport {
	return &stubTransport{replies: rs}
}

func (s *stubTransport) Do(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	i := len(s.reqs) - 1
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	r := s.replies[i]
	if r.err != nil {
		return nil, r.err
	}
	return &Response{StatusCode: r.status, Body: []byte(r.body)}, nil
}

func (s *stubTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func (s *stubTransport) last(t *testing.T) Request {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.reqs, "no provider call was made")
	return s.reqs[len(s.reqs)-1]
}

var fixedNow = time.UnixMilli(1700000000123)

func stubEnv(tr Transport) Env {
	return Env{HTTP: tr, Now: func() time.Time { return fixedNow }}
}

// jsonBody decodes a request body into a generic object.
func jsonBody(t *testing.T, req Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &m), string(req.Body))
	return m
}

func formBody(t *testing.T, req Request) url.Values {
	t.Helper()
	v, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	return v
}
