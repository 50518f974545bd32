package service

import (
	"context"
	"regexp"
	"time"

	"loantrack/internal/domain"
)

// SequenceSource is the locked counter storage behind the issuer.
type SequenceSource interface {
	Next(ctx context.Context, prefix, branch, period string) (int, error)
	Peek(ctx context.Context, prefix, branch, period string) (int, error)
}

var prefixPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// SequenceService issues business IDs like LN260042: a two-letter module
// prefix, the two-digit year and a four-digit gapless counter scoped to the
// branch and the current year-month bucket.
type SequenceService struct {
	source SequenceSource
	branch string
	now    func() time.Time
}

func NewSequenceService(source SequenceSource, branch string) *SequenceService {
	return &SequenceService{source: source, branch: branch, now: time.Now}
}

// Issue reserves and returns the next ID for the prefix. Serialized per
// bucket by the storage lock; concurrent callers get distinct, contiguous
// values.
func (s *SequenceService) Issue(ctx context.Context, prefix string) (string, error) {
	if !prefixPattern.MatchString(prefix) {
		return "", &domain.ValidationError{Field: "prefix", Message: "must be two uppercase letters"}
	}
	period := s.now().Format("200601")
	value, err := s.source.Next(ctx, prefix, s.branch, period)
	if err != nil {
		return "", err
	}
	return domain.FormatSequenceID(prefix, period, value), nil
}

// Preview formats the ID a subsequent Issue would most likely return. It
// takes no lock and reserves nothing: the result is informational and may
// race with concurrent Issue calls.
func (s *SequenceService) Preview(ctx context.Context, prefix string) (string, error) {
	if !prefixPattern.MatchString(prefix) {
		return "", &domain.ValidationError{Field: "prefix", Message: "must be two uppercase letters"}
	}
	period := s.now().Format("200601")
	last, err := s.source.Peek(ctx, prefix, s.branch, period)
	if err != nil {
		return "", err
	}
	if last >= domain.SequenceMax {
		return "", domain.ErrSequenceExhausted
	}
	return domain.FormatSequenceID(prefix, period, last+1), nil
}
