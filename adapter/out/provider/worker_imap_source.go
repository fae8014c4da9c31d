package provider

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// SourceIMAP is the IMAP source name.
const SourceIMAP = "imap"

const snippetLength = 200

// IMAPConfig holds the mailbox the source reads from.
type IMAPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	Mailbox  string
	Timeout  time.Duration
}

// IMAPSource lists the newest messages of one configured mailbox. It serves
// single-account deployments, so the user ID only scopes logging.
type IMAPSource struct {
	cfg IMAPConfig
	log *logger.Logger

	dial func(addr string) (*client.Client, error)
}

var _ out.ThreadSource = (*IMAPSource)(nil)

// NewIMAPSource creates an IMAP thread source.
func NewIMAPSource(cfg IMAPConfig) *IMAPSource {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &IMAPSource{
		cfg: cfg,
		log: logger.WithField("source", SourceIMAP),
		dial: func(addr string) (*client.Client, error) {
			return client.DialTLS(addr, nil)
		},
	}
}

func (s *IMAPSource) Name() string { return SourceIMAP }

// ListThreads fetches the newest limit messages, newest first. Each message
// is one thread keyed by its Message-Id.
func (s *IMAPSource) ListThreads(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Thread, error) {
	if limit <= 0 {
		limit = defaultThreadLimit
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	c, err := s.dial(addr)
	if err != nil {
		return nil, &domain.UpstreamUnavailableError{Op: SourceIMAP, Err: err}
	}
	c.Timeout = s.cfg.Timeout
	defer c.Logout()

	// go-imap v1 blocks without a context; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}

	mbox, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.cfg.Mailbox, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(limit) {
		from = mbox.Messages - uint32(limit) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, limit)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var threads []domain.Thread
	for msg := range messages {
		thread, ok := convertIMAPMessage(msg, section)
		if !ok {
			continue
		}
		threads = append(threads, thread)
	}
	if err := <-done; err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	// Sequence numbers ascend with arrival; callers expect newest first.
	for i, j := 0, len(threads)-1; i < j; i, j = i+1, j-1 {
		threads[i], threads[j] = threads[j], threads[i]
	}

	s.log.WithField("user_id", userID.String()).Debug("fetched %d messages from %s", len(threads), s.cfg.Mailbox)
	return threads, nil
}

func convertIMAPMessage(msg *imap.Message, section *imap.BodySectionName) (domain.Thread, bool) {
	if msg == nil || msg.Envelope == nil {
		return domain.Thread{}, false
	}

	thread := domain.Thread{
		ID:         msg.Envelope.MessageId,
		Subject:    msg.Envelope.Subject,
		ReceivedAt: msg.InternalDate,
	}
	if thread.ID == "" {
		thread.ID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	if thread.ReceivedAt.IsZero() {
		thread.ReceivedAt = msg.Envelope.Date
	}
	if len(msg.Envelope.From) > 0 {
		f := msg.Envelope.From[0]
		if f.PersonalName != "" {
			thread.Sender = fmt.Sprintf("%s <%s>", f.PersonalName, f.Address())
		} else {
			thread.Sender = f.Address()
		}
	}

	if r := msg.GetBody(section); r != nil {
		thread.Snippet = bodySnippet(r, snippetLength)
	}
	return thread, true
}

// bodySnippet extracts a short plain-text preview from an RFC 5322 message.
// text/plain wins over text/html; unreadable bodies give an empty snippet.
func bodySnippet(r io.Reader, max int) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err != nil {
			break
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(io.LimitReader(p.Body, 64<<10))
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(ct, "text/plain") && plain == "":
			plain = string(body)
		case strings.HasPrefix(ct, "text/html") && html == "":
			html = string(body)
		}
	}

	text := plain
	if strings.TrimSpace(text) == "" && html != "" {
		text = htmlToText(html)
	}
	return truncateSnippet(collapseSpace(text), max)
}

// htmlToText drops scripts and styles and returns the visible text.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()
	doc.Find("p, div, br, li, tr, td, h1, h2, h3, h4, h5, h6").AppendHtml(" ")
	return doc.Text()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateSnippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}
