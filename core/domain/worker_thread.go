package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// Thread is a mail conversation as seen by the classifier. Only subject,
// sender and snippet carry signal; everything provider-specific stays
// with the thread source.
type Thread struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender"`
	Snippet    string    `json:"snippet"`
	Category   string    `json:"category,omitempty"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// Partition maps category names to the threads assigned to them. Every
// thread appears in exactly one bucket; bucket order follows the category
// list the partition was created from.
type Partition struct {
	order   []string
	buckets map[string][]Thread
	index   map[string]string
}

// NewPartition creates an empty partition with one bucket per category.
func NewPartition(categories []Category) *Partition {
	p := &Partition{
		order:   make([]string, 0, len(categories)),
		buckets: make(map[string][]Thread, len(categories)),
		index:   make(map[string]string),
	}
	for _, c := range categories {
		if _, ok := p.buckets[c.Name]; ok {
			continue
		}
		p.order = append(p.order, c.Name)
		p.buckets[c.Name] = nil
	}
	return p
}

// Assign places t in the named bucket and stamps t.Category. A thread that
// was already assigned is moved. Returns false if the bucket does not exist.
func (p *Partition) Assign(category string, t Thread) bool {
	if _, ok := p.buckets[category]; !ok {
		return false
	}
	if prev, ok := p.index[t.ID]; ok {
		p.remove(prev, t.ID)
	}
	t.Category = category
	p.buckets[category] = append(p.buckets[category], t)
	p.index[t.ID] = category
	return true
}

func (p *Partition) remove(category, threadID string) {
	list := p.buckets[category]
	for i, t := range list {
		if t.ID == threadID {
			p.buckets[category] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	delete(p.index, threadID)
}

// Categories returns the bucket names in declaration order.
func (p *Partition) Categories() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Threads returns the threads assigned to category, in assignment order.
func (p *Partition) Threads(category string) []Thread {
	list := p.buckets[category]
	out := make([]Thread, len(list))
	copy(out, list)
	return out
}

// CategoryOf returns the bucket a thread was assigned to.
func (p *Partition) CategoryOf(threadID string) (string, bool) {
	c, ok := p.index[threadID]
	return c, ok
}

// Len is the number of assigned threads.
func (p *Partition) Len() int {
	return len(p.index)
}

// All returns every assigned thread, bucket by bucket.
func (p *Partition) All() []Thread {
	out := make([]Thread, 0, len(p.index))
	for _, name := range p.order {
		out = append(out, p.buckets[name]...)
	}
	return out
}

// Counts returns the number of threads per bucket.
func (p *Partition) Counts() map[string]int {
	out := make(map[string]int, len(p.order))
	for _, name := range p.order {
		out[name] = len(p.buckets[name])
	}
	return out
}

// PartitionGroup is the serialized form of one bucket.
type PartitionGroup struct {
	Category string   `json:"category"`
	Threads  []Thread `json:"threads"`
}

// Groups returns the buckets in order, including empty ones.
func (p *Partition) Groups() []PartitionGroup {
	groups := make([]PartitionGroup, 0, len(p.order))
	for _, name := range p.order {
		threads := p.buckets[name]
		if threads == nil {
			threads = []Thread{}
		}
		groups = append(groups, PartitionGroup{Category: name, Threads: threads})
	}
	return groups
}

func (p *Partition) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Groups())
}
