package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

var errSendFailed = errors.New("channel unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sentCall records a single transport invocation.
type sentCall struct {
	Method  string
	URL     string
	Caption string
	Height  int
	Items   []GroupItem
}

// rateLimitedErr is a transport error asking for a wait before the next try.
type rateLimitedErr struct {
	wait time.Duration
}

func (e rateLimitedErr) Error() string             { return fmt.Sprintf("rate limited, retry after %s", e.wait) }
func (e rateLimitedErr) RetryDelay() time.Duration { return e.wait }

// fakeTransport records every call and when it happened. failures maps a
// method to the number of leading calls of that method that fail; a negative
// count always fails. Failing calls return failErr, or errSendFailed if unset.
type fakeTransport struct {
	mu       sync.Mutex
	calls    []sentCall
	times    []time.Time
	failures map[string]int
	failErr  error
}

func (f *fakeTransport) record(c sentCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	f.times = append(f.times, time.Now())

	n, ok := f.failures[c.Method]
	if !ok || n == 0 {
		return nil
	}
	if n > 0 {
		f.failures[c.Method] = n - 1
	}
	if f.failErr != nil {
		return f.failErr
	}
	return errSendFailed
}

func (f *fakeTransport) SendPhoto(_ context.Context, url, caption string) error {
	return f.record(sentCall{Method: MethodPhoto, URL: url, Caption: caption})
}

func (f *fakeTransport) SendAnimation(_ context.Context, url, caption string) error {
	return f.record(sentCall{Method: MethodAnimation, URL: url, Caption: caption})
}

func (f *fakeTransport) SendVideo(_ context.Context, url, caption string, height int) error {
	return f.record(sentCall{Method: MethodVideo, URL: url, Caption: caption, Height: height})
}

func (f *fakeTransport) SendMediaGroup(_ context.Context, items []GroupItem) error {
	cp := make([]GroupItem, len(items))
	copy(cp, items)
	return f.record(sentCall{Method: MethodMediaGroup, Items: cp})
}

func (f *fakeTransport) Calls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.calls...)
}

// Gaps returns the time elapsed between consecutive calls.
func (f *fakeTransport) Gaps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var gaps []time.Duration
	for i := 1; i < len(f.times); i++ {
		gaps = append(gaps, f.times[i].Sub(f.times[i-1]))
	}
	return gaps
}

// memorySeenStore is an in-memory SeenStore.
type memorySeenStore struct {
	mu      sync.Mutex
	seen    map[SeenKey]time.Time
	isCalls int
	err     error
}

func newMemorySeenStore() *memorySeenStore {
	return &memorySeenStore{seen: make(map[SeenKey]time.Time)}
}

func (m *memorySeenStore) IsSeen(_ context.Context, key SeenKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isCalls++
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.seen[key]
	return ok, nil
}

func (m *memorySeenStore) MarkSeen(_ context.Context, key SeenKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[key]; !ok {
		m.seen[key] = time.Now()
	}
	return nil
}

func (m *memorySeenStore) DeleteSeenBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.seen {
		if t.Before(cutoff) {
			delete(m.seen, k)
			n++
		}
	}
	return n, nil
}

func (m *memorySeenStore) Has(key SeenKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[key]
	return ok
}

// countingFilter wraps a TagFilter and counts calls.
type countingFilter struct {
	inner TagFilter
	calls int
}

func (c *countingFilter) Matches(tag string) bool {
	c.calls++
	return c.inner.Matches(tag)
}

// countingClassifier wraps a PostClassifier and counts calls.
type countingClassifier struct {
	inner PostClassifier
	calls int
}

func (c *countingClassifier) Classify(post *PostRecord) ClassifiedPost {
	c.calls++
	return c.inner.Classify(post)
}

// recordingMetrics captures observations.
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []Outcome
	sends    int
	restarts int
}

func (r *recordingMetrics) PostProcessed(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingMetrics) SendAttempted(string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends++
}

func (r *recordingMetrics) FeedRestarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restarts++
}

// fastDelivery keeps retry behaviour while removing real waits.
func fastDelivery() DeliverySettings {
	return DeliverySettings{
		GroupLimit:     10,
		ItemAttempts:   3,
		ItemBackoff:    time.Millisecond,
		ItemMaxBackoff: 4 * time.Millisecond,
		BatchAttempts:  2,
		BatchDelay:     time.Millisecond,
	}
}
