package classification

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"

	"github.com/goccy/go-json"
)

// =============================================================================
// Prompt
// =============================================================================

const (
	maxSnippetChars = 300
	maxSubjectChars = 200
)

func buildSystemPrompt(format out.ResponseFormat) string {
	var sb strings.Builder
	sb.WriteString("You sort email threads into the user's categories. ")
	sb.WriteString("Custom categories were written by the user and take priority over built-in ones ")
	sb.WriteString("whenever there is a reasonable semantic match. ")
	sb.WriteString("Use a built-in category only when no custom category fits. ")
	sb.WriteString("Answer with category names exactly as listed.")
	if format == out.ResponseFormatJSON {
		sb.WriteString(" Respond with a JSON object only.")
	}
	return sb.String()
}

func buildBatchPrompt(batch []domain.Thread, categories []domain.Category, format out.ResponseFormat) string {
	var sb strings.Builder

	sb.WriteString("Categories:\n")
	for _, c := range categories {
		kind := "built-in"
		if c.IsCustom {
			kind = "custom, preferred"
		}
		sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", c.Name, kind, strings.TrimSpace(c.Description)))
	}

	if domain.HasCustom(categories) {
		sb.WriteString("\nPrefer a custom category over a built-in one whenever the thread reasonably fits it.\n")
	}

	sb.WriteString("\nThreads:\n")
	for i, t := range batch {
		sb.WriteString(fmt.Sprintf("\nEmail %d:\n", i+1))
		sb.WriteString(fmt.Sprintf("From: %s\n", t.Sender))
		sb.WriteString(fmt.Sprintf("Subject: %s\n", truncateText(t.Subject, maxSubjectChars)))
		sb.WriteString(fmt.Sprintf("Content: %s\n", truncateText(t.Snippet, maxSnippetChars)))
	}

	sb.WriteString("\n")
	switch format {
	case out.ResponseFormatJSON:
		sb.WriteString(`Reply with {"classifications":[{"email":<n>,"category":"<Category Name>"}]} `)
		sb.WriteString("containing one entry per email.")
	default:
		sb.WriteString("Reply with exactly one line per email in this format and nothing else:\n")
		sb.WriteString("Email <n>: <Category Name>")
	}
	return sb.String()
}

func truncateText(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// =============================================================================
// Reply parsing
// =============================================================================

// replyLinePattern matches "Email 3: Finance", tolerating list markers and
// markdown emphasis around the label.
var replyLinePattern = regexp.MustCompile(`(?i)^[\s\-*#>]*\**email\s+(\d+)\**\s*:\s*(.*)$`)

// parsedReply maps batch positions (zero based) to the category the model chose.
type parsedReply struct {
	assigned map[int]domain.Category
	problems []*domain.ModelResponseParseError
}

func newParsedReply() *parsedReply {
	return &parsedReply{assigned: make(map[int]domain.Category)}
}

func (r *parsedReply) reject(line, reason string) {
	r.problems = append(r.problems, &domain.ModelResponseParseError{Line: line, Reason: reason})
}

// accept validates one (index, category) pair from the reply.
func (r *parsedReply) accept(line string, n int, name string, batchLen int, categories []domain.Category) {
	if n < 1 || n > batchLen {
		r.reject(line, "email index out of range")
		return
	}
	c, ok := domain.FindCategoryByName(categories, cleanCategoryName(name))
	if !ok {
		r.reject(line, "unknown category")
		return
	}
	if _, dup := r.assigned[n-1]; dup {
		r.reject(line, "duplicate email index")
		return
	}
	r.assigned[n-1] = c
}

// parseLineReply reads "Email <n>: <Category>" lines. Lines that do not
// parse are reported; the caller falls back for every unassigned thread.
func parseLineReply(reply string, batchLen int, categories []domain.Category) *parsedReply {
	result := newParsedReply()
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := replyLinePattern.FindStringSubmatch(line)
		if m == nil {
			result.reject(line, "line does not match expected format")
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			result.reject(line, "invalid email index")
			continue
		}
		result.accept(line, n, m[2], batchLen, categories)
	}
	return result
}

type jsonReply struct {
	Classifications []struct {
		Email    int    `json:"email"`
		Category string `json:"category"`
	} `json:"classifications"`
}

// parseJSONReply reads the JSON object format. A reply that is not valid
// JSON at all returns an error so the whole batch falls back.
func parseJSONReply(reply string, batchLen int, categories []domain.Category) (*parsedReply, error) {
	raw := strings.TrimSpace(reply)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var parsed jsonReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, &domain.ModelResponseParseError{Line: truncateText(raw, 80), Reason: err.Error()}
	}

	result := newParsedReply()
	for _, item := range parsed.Classifications {
		line := fmt.Sprintf("email %d: %s", item.Email, item.Category)
		result.accept(line, item.Email, item.Category, batchLen, categories)
	}
	return result, nil
}

func parseReply(reply string, format out.ResponseFormat, batchLen int, categories []domain.Category) (*parsedReply, error) {
	if format == out.ResponseFormatJSON {
		return parseJSONReply(reply, batchLen, categories)
	}
	return parseLineReply(reply, batchLen, categories), nil
}

func cleanCategoryName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*\"'`[]")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}
