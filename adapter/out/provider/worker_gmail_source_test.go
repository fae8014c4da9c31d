package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type memTokens struct {
	tokens map[uuid.UUID]*oauth2.Token
	saves  int
}

func (m *memTokens) GetToken(_ context.Context, userID uuid.UUID, provider string) (*oauth2.Token, error) {
	tok, ok := m.tokens[userID]
	if !ok {
		return nil, &domain.NotFoundError{Kind: provider + " connection", ID: userID.String()}
	}
	return tok, nil
}

func (m *memTokens) SaveToken(_ context.Context, userID uuid.UUID, _ string, token *oauth2.Token) error {
	m.saves++
	m.tokens[userID] = token
	return nil
}

func newGmailTestServer(t *testing.T, listStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/threads", func(w http.ResponseWriter, r *http.Request) {
		if listStatus != http.StatusOK {
			w.WriteHeader(listStatus)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend"}}`))
			return
		}
		assert.Equal(t, "INBOX", r.URL.Query().Get("labelIds"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"threads": []map[string]string{{"id": "t1"}, {"id": "t2"}, {"id": "missing"}},
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/threads/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/threads/")
		if id == "missing" {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      id,
			"snippet": "snippet of " + id,
			"messages": []map[string]any{
				{
					"id":           id + "-m1",
					"internalDate": "1767225600000",
					"payload": map[string]any{"headers": []map[string]string{
						{"name": "From", "value": "Alice <alice@example.com>"},
						{"name": "Subject", "value": "Subject " + id},
					}},
				},
				{"id": id + "-m2", "internalDate": "1767229200000"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGmailSource(srv *httptest.Server, tokens *memTokens) *GmailSource {
	src := NewGmailSource(&GmailConfig{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/cb"}, tokens)
	src.newService = func(ctx context.Context, _ oauth2.TokenSource) (*gmail.Service, error) {
		return gmail.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	}
	return src
}

func TestGmailSource_ListThreads(t *testing.T) {
	srv := newGmailTestServer(t, http.StatusOK)
	userID := uuid.New()
	tokens := &memTokens{tokens: map[uuid.UUID]*oauth2.Token{
		userID: {AccessToken: "a", Expiry: time.Now().Add(time.Hour)},
	}}
	src := newTestGmailSource(srv, tokens)

	threads, err := src.ListThreads(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, threads, 2, "threads that fail to load are skipped")

	assert.Equal(t, "t1", threads[0].ID)
	assert.Equal(t, "Subject t1", threads[0].Subject)
	assert.Equal(t, "Alice <alice@example.com>", threads[0].Sender)
	assert.Equal(t, "snippet of t1", threads[0].Snippet)
	assert.Equal(t, time.UnixMilli(1767229200000).UTC(), threads[0].ReceivedAt)
	assert.Equal(t, "t2", threads[1].ID)
	assert.Zero(t, tokens.saves, "unchanged token is not rewritten")
}

func TestGmailSource_NotConnected(t *testing.T) {
	srv := newGmailTestServer(t, http.StatusOK)
	src := newTestGmailSource(srv, &memTokens{tokens: map[uuid.UUID]*oauth2.Token{}})

	_, err := src.ListThreads(context.Background(), uuid.New(), 10)
	assert.True(t, domain.IsNotFound(err))
}

func TestGmailSource_ServerErrorIsUpstreamUnavailable(t *testing.T) {
	srv := newGmailTestServer(t, http.StatusInternalServerError)
	userID := uuid.New()
	tokens := &memTokens{tokens: map[uuid.UUID]*oauth2.Token{
		userID: {AccessToken: "a", Expiry: time.Now().Add(time.Hour)},
	}}
	src := newTestGmailSource(srv, tokens)

	_, err := src.ListThreads(context.Background(), userID, 10)
	assert.True(t, domain.IsUpstreamUnavailable(err))
}

func TestGmailSource_AuthURL(t *testing.T) {
	src := NewGmailSource(&GmailConfig{ClientID: "cid", RedirectURL: "http://localhost/cb"}, nil)
	url := src.AuthURL("state-1")
	assert.Contains(t, url, "state=state-1")
	assert.Contains(t, url, "access_type=offline")
	assert.Contains(t, url, "gmail.readonly")
	assert.Equal(t, SourceGmail, src.Name())
}
