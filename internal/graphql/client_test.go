// ABOUTME: Tests for the GraphQL client against httptest servers
// ABOUTME: Covers decoding, GraphQL errors, status errors and the retry policy

package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scripted struct {
	calls    atomic.Int32
	statuses []int
	body     string
	lastReq  atomic.Pointer[Request]
}

func (s *scripted) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(s.calls.Add(1)) - 1

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		s.lastReq.Store(&req)
	}

	status := http.StatusOK
	if n < len(s.statuses) {
		status = s.statuses[n]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusOK {
		_, _ = w.Write([]byte(s.body))
	}
}

func newServer(t *testing.T, s *scripted) *Client {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithRetry(2, time.Millisecond))
}

func TestDo_DecodesData(t *testing.T) {
	s := &scripted{body: `{"data":{"me":{"id":"1","email":"a@x.com"}}}`}
	c := newServer(t, s)

	var out struct {
		Me struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"me"`
	}
	err := c.Do(t.Context(), Request{
		Query:         "query Me { me { id email } }",
		OperationName: "Me",
		Variables:     map[string]any{"x": 1},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "1", out.Me.ID)
	assert.Equal(t, "a@x.com", out.Me.Email)

	sent := s.lastReq.Load()
	require.NotNil(t, sent)
	assert.Equal(t, "Me", sent.OperationName)
	assert.EqualValues(t, 1, sent.Variables["x"])
}

func TestDo_GraphQLErrors(t *testing.T) {
	s := &scripted{body: `{"data":{"me":null},"errors":[{"message":"not signed in","extensions":{"code":"UNAUTHENTICATED"}},{"message":"second"}]}`}
	c := newServer(t, s)

	err := c.Do(t.Context(), Request{Query: "{ me { id } }"}, nil)

	var rerr *ResponseError
	require.ErrorAs(t, err, &rerr)
	assert.Len(t, rerr.Errors, 2)
	assert.True(t, rerr.HasCode("UNAUTHENTICATED"))
	assert.False(t, rerr.HasCode("FORBIDDEN"))
	assert.Equal(t, "graphql: not signed in; second", rerr.Error())
	assert.Equal(t, int32(1), s.calls.Load(), "GraphQL errors are not retried")
}

func TestDo_RetriesQueriesOnServerErrors(t *testing.T) {
	s := &scripted{
		statuses: []int{http.StatusBadGateway, http.StatusServiceUnavailable},
		body:     `{"data":{"ok":true}}`,
	}
	c := newServer(t, s)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.Do(t.Context(), Request{Query: "query { ok }"}, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), s.calls.Load())
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	s := &scripted{statuses: []int{500, 500, 500, 500}}
	c := newServer(t, s)

	err := c.Do(t.Context(), Request{Query: "{ ok }"}, nil)
	require.ErrorIs(t, err, ErrHTTPStatus)
	assert.Equal(t, int32(3), s.calls.Load())
}

func TestDo_MutationsAreNotRetried(t *testing.T) {
	s := &scripted{statuses: []int{http.StatusServiceUnavailable}}
	c := newServer(t, s)

	err := c.Do(t.Context(), Request{Query: "  mutation Logout { logout }"}, nil)
	require.ErrorIs(t, err, ErrHTTPStatus)
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	s := &scripted{statuses: []int{http.StatusUnauthorized}}
	c := newServer(t, s)

	err := c.Do(t.Context(), Request{Query: "{ me { id } }"}, nil)
	require.ErrorIs(t, err, ErrHTTPStatus)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestDo_NetworkErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithRetry(1, time.Millisecond))
	err := c.Do(t.Context(), Request{Query: "{ ok }"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending request")
}

func TestDo_ContextCancelled(t *testing.T) {
	s := &scripted{statuses: []int{500, 500, 500}}
	c := newServer(t, s)
	c.retryBase = time.Hour

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		for s.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := c.Do(ctx, Request{Query: "{ ok }"}, nil)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestDo_BadJSON(t *testing.T) {
	s := &scripted{body: `not json`}
	c := newServer(t, s)

	err := c.Do(t.Context(), Request{Query: "{ ok }"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}
