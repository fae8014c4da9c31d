package domain

import (
	"strings"
	"time"
	"unicode"
)

// Category is a named bucket threads are sorted into. Built-in categories
// ship with every registry; custom ones are created by the user and take
// priority over built-ins when classifying.
type Category struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	IsCustom    bool      `json:"is_custom" bson:"is_custom"`
	Color       string    `json:"color,omitempty" bson:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Built-in category names.
const (
	CategoryImportant      = "Important"
	CategoryActionRequired = "Action Required"
	CategoryCanWait        = "Can Wait"
	CategoryNewsletter     = "Newsletter"
	CategoryAutoArchive    = "Auto-Archive"
)

// DefaultCustomColor is used when a custom category is created without a color.
const DefaultCustomColor = "#6b7280"

// BuiltinCategories returns a fresh copy of the five built-in categories in
// their declared order. Declaration order matters: the rule scorer breaks
// ties by it.
func BuiltinCategories() []Category {
	builtins := []Category{
		{
			Name:        CategoryImportant,
			Description: "Urgent messages from people you work with that need attention soon.",
			Color:       "#dc2626",
		},
		{
			Name:        CategoryActionRequired,
			Description: "Messages asking you to reply, approve, sign, confirm or complete a task.",
			Color:       "#ea580c",
		},
		{
			Name:        CategoryCanWait,
			Description: "Low priority conversations that can be handled later.",
			Color:       "#2563eb",
		},
		{
			Name:        CategoryNewsletter,
			Description: "Newsletters, digests, blogs and subscription updates.",
			Color:       "#7c3aed",
		},
		{
			Name:        CategoryAutoArchive,
			Description: "Automated notifications, receipts, alerts and no-reply mail.",
			Color:       "#6b7280",
		},
	}
	for i := range builtins {
		builtins[i].ID = DeriveCategoryID(builtins[i].Name)
	}
	return builtins
}

// DeriveCategoryID lowercases name and collapses every run of whitespace
// into a single hyphen.
func DeriveCategoryID(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsSpace(r) {
			pendingHyphen = true
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// HasCustom reports whether any category in the list is user-defined.
func HasCustom(categories []Category) bool {
	for _, c := range categories {
		if c.IsCustom {
			return true
		}
	}
	return false
}

// FindCategoryByName returns the category whose name matches, ignoring case
// and surrounding whitespace.
func FindCategoryByName(categories []Category, name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}

// DefaultCategory picks the bucket used when nothing else applies. It prefers
// a category named like "wait", then one described as low priority, then the
// first built-in, and finally the first category. Returns false only for an
// empty list.
func DefaultCategory(categories []Category) (Category, bool) {
	if len(categories) == 0 {
		return Category{}, false
	}
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Name), "wait") {
			return c, true
		}
	}
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Description), "low priority") {
			return c, true
		}
	}
	for _, c := range categories {
		if !c.IsCustom {
			return c, true
		}
	}
	return categories[0], true
}
