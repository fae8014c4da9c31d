// Package provider implements thread sources backed by mail providers.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// SourceGmail is the Gmail source name used in requests and token rows.
const SourceGmail = "gmail"

const (
	gmailMaxConcurrency = 10
	gmailPerThreadLimit = 15 * time.Second
	defaultThreadLimit  = 50
)

var gmailMetadataHeaders = []string{"From", "Subject", "Date"}

// GmailConfig holds Gmail OAuth client settings.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GmailSource lists inbox threads through the Gmail API.
type GmailSource struct {
	config *oauth2.Config
	tokens out.TokenStore
	cb     *gobreaker.CircuitBreaker
	log    *logger.Logger

	// newService is swapped in tests to point at a local server.
	newService func(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error)
}

var (
	_ out.ThreadSource  = (*GmailSource)(nil)
	_ out.OAuthProvider = (*GmailSource)(nil)
)

// NewGmailSource creates a Gmail thread source.
func NewGmailSource(cfg *GmailConfig, tokens out.TokenStore) *GmailSource {
	log := logger.WithField("source", SourceGmail)

	settings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	}

	return &GmailSource{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gmail.GmailReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		tokens: tokens,
		cb:     gobreaker.NewCircuitBreaker(settings),
		log:    log,
		newService: func(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
			return gmail.NewService(ctx, option.WithTokenSource(ts))
		},
	}
}

func (s *GmailSource) Name() string { return SourceGmail }

// AuthURL returns the consent URL for a read-only offline grant.
func (s *GmailSource) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func (s *GmailSource) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.config.Exchange(ctx, code)
}

// ListThreads returns up to limit inbox threads, newest first. Threads that
// fail to load individually are skipped.
func (s *GmailSource) ListThreads(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Thread, error) {
	if limit <= 0 {
		limit = defaultThreadLimit
	}

	token, err := s.tokens.GetToken(ctx, userID, SourceGmail)
	if err != nil {
		return nil, err
	}

	ts := oauth2.ReuseTokenSource(token, s.config.TokenSource(ctx, token))
	svc, err := s.newService(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	var refs []*gmail.Thread
	err = s.execute("threads.list", func() error {
		resp, err := svc.Users.Threads.List("me").
			LabelIds("INBOX").
			MaxResults(int64(limit)).
			Context(ctx).Do()
		if err != nil {
			return err
		}
		refs = resp.Threads
		return nil
	})
	if err != nil {
		return nil, s.wrapError(err)
	}

	threads := s.fetchThreads(ctx, svc, refs)
	s.persistRefreshed(ctx, userID, token, ts)
	return threads, nil
}

// fetchThreads loads thread metadata with bounded concurrency, keeping the
// list order.
func (s *GmailSource) fetchThreads(ctx context.Context, svc *gmail.Service, refs []*gmail.Thread) []domain.Thread {
	results := make([]*domain.Thread, len(refs))
	sem := make(chan struct{}, gmailMaxConcurrency)
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		go func(idx int, id string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			threadCtx, cancel := context.WithTimeout(ctx, gmailPerThreadLimit)
			defer cancel()

			var full *gmail.Thread
			err := s.execute("threads.get", func() error {
				var err error
				full, err = svc.Users.Threads.Get("me", id).
					Format("metadata").
					MetadataHeaders(gmailMetadataHeaders...).
					Context(threadCtx).Do()
				return err
			})
			if err != nil {
				s.log.WithError(err).WithField("thread_id", id).Warn("skipping thread")
				return
			}
			t := convertThread(full)
			results[idx] = &t
		}(i, ref.Id)
	}
	wg.Wait()

	threads := make([]domain.Thread, 0, len(refs))
	for _, t := range results {
		if t != nil {
			threads = append(threads, *t)
		}
	}
	return threads
}

// convertThread takes subject and sender from the first message and the
// received time from the latest one.
func convertThread(t *gmail.Thread) domain.Thread {
	thread := domain.Thread{ID: t.Id, Snippet: t.Snippet}
	if len(t.Messages) == 0 {
		return thread
	}

	first := t.Messages[0]
	if first.Payload != nil {
		thread.Subject = header(first.Payload.Headers, "Subject")
		thread.Sender = header(first.Payload.Headers, "From")
	}

	last := t.Messages[len(t.Messages)-1]
	if last.InternalDate > 0 {
		thread.ReceivedAt = time.UnixMilli(last.InternalDate).UTC()
	}
	if thread.Snippet == "" {
		thread.Snippet = last.Snippet
	}
	return thread
}

func header(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// persistRefreshed stores the token again when the client refreshed it.
func (s *GmailSource) persistRefreshed(ctx context.Context, userID uuid.UUID, old *oauth2.Token, ts oauth2.TokenSource) {
	current, err := ts.Token()
	if err != nil || current.AccessToken == old.AccessToken {
		return
	}
	if err := s.tokens.SaveToken(ctx, userID, SourceGmail, current); err != nil {
		s.log.WithError(err).Warn("failed to persist refreshed token")
	}
}

// execute runs fn under the circuit breaker. Client errors are returned
// without counting as failures.
func (s *GmailSource) execute(op string, fn func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	if err != nil {
		s.log.WithError(err).Debug("%s failed, breaker=%s", op, s.cb.State().String())
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string { return e.err.Error() }

// wrapError maps provider failures onto domain errors.
func (s *GmailSource) wrapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.UpstreamUnavailableError{Op: SourceGmail, Err: err}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return &domain.RateLimitError{Err: err}
		case apiErr.Code >= 500:
			return &domain.UpstreamUnavailableError{Op: SourceGmail, Err: err}
		}
	}
	return fmt.Errorf("gmail: %w", err)
}
