package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/keel/pkg/ledger"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
// Set to 6 characters to balance usability with collision avoidance.
const MinShortIDLength = 6

// ResolveVersionID resolves a short ID prefix to a full truth version UUID.
// Returns the full UUID if exactly one match is found.
func ResolveVersionID(ctx context.Context, client *ledger.Client, shortID string) (string, error) {
	if isFullUUID(shortID) {
		if _, err := client.GetVersion(ctx, shortID); err != nil {
			if ledger.IsNotFound(err) {
				return "", fmt.Errorf("version not found: %s", shortID)
			}
			return "", fmt.Errorf("failed to verify version existence: %w", err)
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	versions, err := client.ListVersions(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to search for version: %w", err)
	}

	var matches []string
	for _, v := range versions {
		if strings.HasPrefix(v.ID, shortID) {
			matches = append(matches, v.ID)
		}
	}
	return pick(shortID, matches)
}

// ResolveResolutionID resolves a short ID prefix to a full resolution UUID.
// Returns the full UUID if exactly one match is found.
func ResolveResolutionID(ctx context.Context, client *ledger.Client, shortID string) (string, error) {
	if isFullUUID(shortID) {
		if _, err := client.GetResolution(ctx, shortID); err != nil {
			if ledger.IsNotFound(err) {
				return "", fmt.Errorf("resolution not found: %s", shortID)
			}
			return "", fmt.Errorf("failed to verify resolution existence: %w", err)
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	resolutions, err := client.ListResolutions(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to search for resolution: %w", err)
	}

	var matches []string
	for _, r := range resolutions {
		if strings.HasPrefix(r.ID, shortID) {
			matches = append(matches, r.ID)
		}
	}
	return pick(shortID, matches)
}

func isFullUUID(id string) bool {
	return len(id) == 36 && strings.Count(id, "-") == 4
}

func pick(shortID string, matches []string) (string, error) {
	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates nothing matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("nothing found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple records matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d records", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous
// short IDs. Lists all matching UUIDs (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("Error: ambiguous short ID '%s' matches %d records:\n", err.ShortID, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse a longer prefix to uniquely identify the record."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
