package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
)

// ReferencePrefix starts every member contribution reference.
const ReferencePrefix = "#CLN-"

const referenceAttempts = 50

// ReferenceChecker reports whether a candidate reference is already taken.
type ReferenceChecker interface {
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

// GenerateReference produces a short human-friendly reference such as
// #CLN-A3F09B and retries until it finds one not already in use. The unique
// index on the reference column catches the race where two callers draw the
// same token; insert callers treat a duplicate-key error as retryable.
func GenerateReference(ctx context.Context, store ReferenceChecker) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		raw := strings.ReplaceAll(uuid.NewString(), "-", "")
		ref := ReferencePrefix + strings.ToUpper(raw[:6])
		exists, err := store.ReferenceExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique reference after %d attempts", referenceAttempts)
}

// ResolveDueDate picks a contribution's due date: the explicit one when set,
// otherwise derived from recurrence.
func ResolveDueDate(ct *models.ContributionType, now time.Time) time.Time {
	if ct.DueDate != nil && !ct.DueDate.IsZero() {
		return *ct.DueDate
	}
	today := now.Truncate(24 * time.Hour)
	switch ct.Recurrence {
	case models.RecurrenceMonthly:
		return today.AddDate(0, 1, 0)
	case models.RecurrenceAnnual:
		return today.AddDate(1, 0, 0)
	case models.RecurrenceOnceOff:
		return today.AddDate(0, 0, 7)
	default:
		return today
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a contribution name into a URL slug.
func Slugify(name string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "contribution"
	}
	return slug
}
