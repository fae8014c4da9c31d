package classification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
)

// fakeGenerator answers with a caller supplied function and records calls.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []out.GenerateRequest
	reply func(call int, req out.GenerateRequest) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, req out.GenerateRequest) (string, error) {
	g.mu.Lock()
	call := len(g.calls)
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.reply(call, req)
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

var promptItem = regexp.MustCompile(`(?m)^Email (\d+):$`)

// answerAll replies "Email n: <category>" for every item in the prompt.
func answerAll(category string) func(int, out.GenerateRequest) (string, error) {
	return func(_ int, req out.GenerateRequest) (string, error) {
		var sb strings.Builder
		for _, m := range promptItem.FindAllStringSubmatch(req.Prompt, -1) {
			sb.WriteString(fmt.Sprintf("Email %s: %s\n", m[1], category))
		}
		return sb.String(), nil
	}
}

var (
	errRateLimited = &domain.RateLimitError{Err: errors.New("429 too many requests")}
	errUpstream    = &domain.UpstreamUnavailableError{Op: "llm", Err: errors.New("connection refused")}
)

// sleepRecorder replaces real sleeping in tests.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestClassifier(gen out.TextGenerator, cfg ModelClassifierConfig) (*ModelClassifier, *sleepRecorder) {
	c := NewModelClassifier(gen, NewRuleScorer(DefaultScoringPolicy()), cfg)
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	return c, rec
}

func makeThreads(n int) []domain.Thread {
	threads := make([]domain.Thread, n)
	for i := range threads {
		threads[i] = domain.Thread{
			ID:      fmt.Sprintf("t%02d", i),
			Subject: fmt.Sprintf("Message %d", i),
			Sender:  "someone@example.com",
			Snippet: "see attached",
		}
	}
	return threads
}
