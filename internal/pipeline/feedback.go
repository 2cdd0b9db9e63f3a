package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyInFlight is returned when a phase already has a request loading.
	ErrAlreadyInFlight = errors.New("feedback request already in flight")
	// ErrAlreadyComplete is returned when a phase already holds feedback.
	// Discard the record first to request it again.
	ErrAlreadyComplete = errors.New("feedback already complete")
	// ErrNoRequest is returned when completing a phase that has no record,
	// typically because the cache was reset while the request was outstanding.
	ErrNoRequest = errors.New("no feedback request for phase")
)

// FeedbackRecord is the cached coaching response for one phase.
// IsLoading implies HasContent is false.
type FeedbackRecord struct {
	Phase       Phase     `json:"phase"`
	IsLoading   bool      `json:"is_loading"`
	HasContent  bool      `json:"has_content"`
	Content     string    `json:"content,omitempty"`
	Status      Status    `json:"status"`
	Failed      bool      `json:"failed,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Parsed returns the content with its status marker removed.
func (r FeedbackRecord) Parsed() ParsedFeedback {
	if !r.HasContent {
		return ParsedFeedback{Status: StatusNeutral}
	}
	return ParseStatus(r.Content)
}

// FeedbackCache maps phases to feedback records and allows at most one
// outstanding request per phase.
type FeedbackCache struct {
	records map[Phase]*FeedbackRecord
}

// NewFeedbackCache returns an empty cache.
func NewFeedbackCache() *FeedbackCache {
	return &FeedbackCache{records: make(map[Phase]*FeedbackRecord)}
}

// Get returns a copy of the record for p.
func (c *FeedbackCache) Get(p Phase) (FeedbackRecord, bool) {
	r, ok := c.records[p]
	if !ok {
		return FeedbackRecord{}, false
	}
	return *r, true
}

// BeginRequest marks p as loading. Completed feedback is kept until
// Discard or Reset removes it.
func (c *FeedbackCache) BeginRequest(p Phase) error {
	if r, ok := c.records[p]; ok {
		if r.IsLoading {
			return fmt.Errorf("%w: %s", ErrAlreadyInFlight, p)
		}
		return fmt.Errorf("%w: %s", ErrAlreadyComplete, p)
	}
	c.records[p] = &FeedbackRecord{
		Phase:       p,
		IsLoading:   true,
		Status:      StatusNeutral,
		RequestedAt: timeNow().UTC(),
	}
	return nil
}

// CompleteRequest stores the generator's response for p. Calling it again
// with identical content is a no-op; content is never replaced once set.
func (c *FeedbackCache) CompleteRequest(p Phase, content string) error {
	return c.complete(p, content, false)
}

// FailRequest stores a user-visible placeholder after a generator failure.
func (c *FeedbackCache) FailRequest(p Phase, placeholder string) error {
	return c.complete(p, placeholder, true)
}

func (c *FeedbackCache) complete(p Phase, content string, failed bool) error {
	r, ok := c.records[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRequest, p)
	}
	if r.HasContent {
		if r.Content == content {
			return nil
		}
		return fmt.Errorf("feedback for %s already set", p)
	}
	r.IsLoading = false
	r.HasContent = true
	r.Content = content
	r.Failed = failed
	r.Status = ParseStatus(content).Status
	r.CompletedAt = timeNow().UTC()
	return nil
}

// Discard drops the record for p so a retry can begin.
func (c *FeedbackCache) Discard(p Phase) {
	delete(c.records, p)
}

// Reset clears every record.
func (c *FeedbackCache) Reset() {
	c.records = make(map[Phase]*FeedbackRecord)
}

// Len returns the number of records.
func (c *FeedbackCache) Len() int {
	return len(c.records)
}

// Snapshot copies all records.
func (c *FeedbackCache) Snapshot() map[Phase]FeedbackRecord {
	out := make(map[Phase]FeedbackRecord, len(c.records))
	for p, r := range c.records {
		out[p] = *r
	}
	return out
}
