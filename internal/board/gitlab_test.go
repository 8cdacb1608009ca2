package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcdz/intake/internal/types"
)

const issuesPath = "/api/v4/projects/group%2Fproject/issues"

func newGateway(t *testing.T, handler http.HandlerFunc, notifier Notifier) *GitLab {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/"
	cfg.Project = "group/project"
	cfg.Token = "secret"
	cfg.RequestsPerSecond = 0
	g, err := NewGitLab(cfg, notifier, zerolog.Nop())
	require.NoError(t, err)
	return g
}

func pageOf(start, n int) []apiIssue {
	out := make([]apiIssue, n)
	for i := range out {
		out[i] = apiIssue{IID: start + i, Title: fmt.Sprintf("issue %d", start+i), Labels: []string{"Feature"}}
	}
	return out
}

func TestNewGitLab_Validation(t *testing.T) {
	_, err := NewGitLab(Config{Project: "p"}, nil, zerolog.Nop())
	require.Error(t, err)
	_, err = NewGitLab(Config{BaseURL: "http://x"}, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestListOpen_PaginatesUntilEmptyPage(t *testing.T) {
	var pages []string
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, issuesPath, r.URL.EscapedPath())
		assert.Equal(t, "secret", r.Header.Get("PRIVATE-TOKEN"))
		assert.Equal(t, "opened", r.URL.Query().Get("state"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		var batch []apiIssue
		switch page {
		case "1":
			batch = pageOf(1, 100)
		case "2":
			batch = pageOf(101, 7)
		default:
			batch = []apiIssue{}
		}
		_ = json.NewEncoder(w).Encode(batch)
	}, nil)

	items, err := g.ListOpen(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 107)
	assert.Equal(t, []string{"1", "2", "3"}, pages)
	assert.Equal(t, types.BoardItem{IID: 107, Title: "issue 107", Labels: []string{"Feature"}}, items[106])
}

func TestListOpen_ErrorTruncates(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			_ = json.NewEncoder(w).Encode(pageOf(1, 100))
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}, nil)

	items, err := g.ListOpen(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Len(t, items, 100)
}

func TestListOpen_FirstPageFailureReturnsEmpty(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, nil)

	items, err := g.ListOpen(context.Background())
	require.Error(t, err)
	assert.Empty(t, items)
}

func TestListOpen_TransportErrorNamesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	g, err := NewGitLab(Config{BaseURL: srv.URL, Project: "group/project"}, nil, zerolog.Nop())
	require.NoError(t, err)

	items, err := g.ListOpen(context.Background())
	require.Error(t, err)
	assert.Empty(t, items)
	assert.Contains(t, err.Error(), "page=1")
	assert.Contains(t, err.Error(), "per_page=100")
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, title string, iid int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, title+"#"+strconv.Itoa(iid))
	return n.err
}

func TestCreate_Success(t *testing.T) {
	var got createRequest
	notifier := &recordingNotifier{}
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"iid": 42, "title": "Build X"}`))
	}, notifier)

	iid, err := g.Create(context.Background(), types.ExtractedIssue{Title: "Build X", Label: "Feature", Description: "desc"})
	require.NoError(t, err)
	assert.Equal(t, 42, iid)
	assert.Equal(t, createRequest{Title: "Build X", Description: "desc", Labels: "Feature"}, got)
	assert.Equal(t, []string{"Build X#42"}, notifier.calls)
}

func TestCreate_NotifierFailureDoesNotAffectResult(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"iid": 7}`))
	}, notifier)

	iid, err := g.Create(context.Background(), types.ExtractedIssue{Title: "T", Label: "L"})
	require.NoError(t, err)
	assert.Equal(t, 7, iid)
	assert.Len(t, notifier.calls, 1)
}

func TestCreate_NonCreatedStatusFails(t *testing.T) {
	notifier := &recordingNotifier{}
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"label invalid"}`, http.StatusBadRequest)
	}, notifier)

	_, err := g.Create(context.Background(), types.ExtractedIssue{Title: "T", Label: "L"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label invalid")
	assert.Empty(t, notifier.calls)
}

func TestCreate_TransportTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	g, err := NewGitLab(Config{BaseURL: srv.URL, Project: "p", Timeout: 20 * time.Millisecond}, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = g.Create(context.Background(), types.ExtractedIssue{Title: "T", Label: "L"})
	require.Error(t, err)
}

func TestPostFailureNotice(t *testing.T) {
	var got createRequest
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"iid": 99}`))
	}, nil)

	err := g.PostFailureNotice(context.Background(), "notes.txt", "I could not find ideas")
	require.NoError(t, err)
	assert.Equal(t, "Intake parse failure: notes.txt", got.Title)
	assert.Equal(t, DefaultFailureLabel, got.Labels)
	assert.Contains(t, got.Description, "`notes.txt`")
	assert.Contains(t, got.Description, "```\nI could not find ideas\n```")
}

func TestPostFailureNotice_Failure(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, nil)

	err := g.PostFailureNotice(context.Background(), "notes.txt", "x")
	require.Error(t, err)
}

func TestWebhookNotifier(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	n := NewWebhookNotifier(srv.URL)
	require.NoError(t, n.Notify(context.Background(), "Build X", 5))
	assert.Equal(t, "New issue created: **Build X** (#5)", body["content"])
}

func TestWebhookNotifier_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), "x", 1)
	require.Error(t, err)
}

func TestWebhookNotifier_NilIsNoop(t *testing.T) {
	n := NewWebhookNotifier("")
	assert.Nil(t, n)
	assert.NoError(t, n.Notify(context.Background(), "x", 1))
}
