package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loantrack/internal/domain"
)

func newSequenceService(source SequenceSource) *SequenceService {
	svc := NewSequenceService(source, "HQ")
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestIssue_FormatsID(t *testing.T) {
	svc := newSequenceService(newMockSequenceSource())

	id, err := svc.Issue(context.Background(), "LN")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// March 2026 bucket, first counter value
	if id != "LN260001" {
		t.Errorf("id = %s, want LN260001", id)
	}

	id, err = svc.Issue(context.Background(), "LN")
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if id != "LN260002" {
		t.Errorf("id = %s, want LN260002", id)
	}
}

func TestIssue_PrefixesCountIndependently(t *testing.T) {
	svc := newSequenceService(newMockSequenceSource())

	if _, err := svc.Issue(context.Background(), "LN"); err != nil {
		t.Fatalf("issue LN: %v", err)
	}
	id, err := svc.Issue(context.Background(), "PM")
	if err != nil {
		t.Fatalf("issue PM: %v", err)
	}
	if id != "PM260001" {
		t.Errorf("id = %s, want PM260001", id)
	}
}

func TestIssue_ConcurrentCallersGetDistinctIDs(t *testing.T) {
	const n = 50
	svc := newSequenceService(newMockSequenceSource())

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.Issue(context.Background(), "LN")
			if err != nil {
				t.Errorf("issue: %v", err)
				return
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != n {
		t.Fatalf("got %d distinct ids, want %d", len(ids), n)
	}
	// no gaps: all of 0001..0050 were handed out
	for v := 1; v <= n; v++ {
		if !ids[domain.FormatSequenceID("LN", "202603", v)] {
			t.Errorf("missing id for counter value %d", v)
		}
	}
}

func TestIssue_Exhaustion(t *testing.T) {
	source := newMockSequenceSource()
	source.values["LN|HQ|202603"] = domain.SequenceMax

	svc := newSequenceService(source)
	if _, err := svc.Issue(context.Background(), "LN"); !errors.Is(err, domain.ErrSequenceExhausted) {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}

	// other buckets are unaffected
	if _, err := svc.Issue(context.Background(), "PM"); err != nil {
		t.Fatalf("issue PM: %v", err)
	}
}

func TestIssue_InvalidPrefix(t *testing.T) {
	svc := newSequenceService(newMockSequenceSource())
	for _, prefix := range []string{"", "L", "LNX", "ln", "1N"} {
		_, err := svc.Issue(context.Background(), prefix)
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("prefix %q: expected ValidationError, got %v", prefix, err)
		}
	}
}

func TestPreview_DoesNotConsume(t *testing.T) {
	svc := newSequenceService(newMockSequenceSource())

	preview, err := svc.Preview(context.Background(), "LN")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview != "LN260001" {
		t.Errorf("preview = %s, want LN260001", preview)
	}

	// previewing reserved nothing
	issued, err := svc.Issue(context.Background(), "LN")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued != preview {
		t.Errorf("issued %s after previewing %s", issued, preview)
	}

	next, err := svc.Preview(context.Background(), "LN")
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if next != "LN260002" {
		t.Errorf("preview = %s, want LN260002", next)
	}
}

func TestPreview_ReportsExhaustion(t *testing.T) {
	source := newMockSequenceSource()
	source.values["LN|HQ|202603"] = domain.SequenceMax

	svc := newSequenceService(source)
	if _, err := svc.Preview(context.Background(), "LN"); !errors.Is(err, domain.ErrSequenceExhausted) {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}
}
