package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ReportHistoryCap bounds the drift report history. The history is FIFO:
// pushing report 101 evicts the oldest.
const ReportHistoryCap = 100

// casRetries bounds optimistic retry loops on contended pattern writes.
const casRetries = 5

// ErrConflict is returned when an optimistic write lost against a concurrent
// modification. The caller must re-read and retry; the stale write is never
// applied silently.
var ErrConflict = errors.New("concurrent modification")

// Client provides project-scoped Redis operations for the ledger.
// All keys and channels are automatically namespaced with the project name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb     *redis.Client
	project string
}

// NewClient creates a new ledger client for the specified project.
// Returns an error if project is empty.
func NewClient(redisOpts *redis.Options, project string) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		project: project,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Project returns the project name this client is scoped to.
func (c *Client) Project() string {
	return c.project
}

// ContentHash returns the sha256 hex digest of a document. It is the value
// stored under the truth hash key and the guard for compare-and-swap writes.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// GetTruthDoc retrieves the canonical truth document and its content hash.
// Returns ("", "", redis.Nil) if no truth document exists - absence is a
// normal state, use IsNotFound() to detect it.
func (c *Client) GetTruthDoc(ctx context.Context) (doc string, hash string, err error) {
	doc, err = c.rdb.Get(ctx, TruthDocKey(c.project)).Result()
	if err != nil {
		return "", "", err
	}

	hash, err = c.rdb.Get(ctx, TruthHashKey(c.project)).Result()
	if err != nil {
		// Hash missing while doc exists means a partial legacy write;
		// recompute rather than fail the read.
		if errors.Is(err, redis.Nil) {
			return doc, ContentHash(doc), nil
		}
		return "", "", fmt.Errorf("failed to read truth hash: %w", err)
	}

	return doc, hash, nil
}

// PutTruthDoc writes the canonical truth document and its content hash only
// if no document exists yet. Concurrent creators race on the SETNX; the
// loser gets ErrConflict. Mutations go through CommitVersion so the
// optimistic hash check applies.
// The hash is written after the claim succeeds; GetTruthDoc recomputes a
// missing hash, so a crash between the two writes stays readable.
func (c *Client) PutTruthDoc(ctx context.Context, doc string) error {
	created, err := c.rdb.SetNX(ctx, TruthDocKey(c.project), doc, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to write truth document: %w", err)
	}
	if !created {
		return ErrConflict
	}

	if err := c.rdb.Set(ctx, TruthHashKey(c.project), ContentHash(doc), 0).Err(); err != nil {
		return fmt.Errorf("failed to write truth hash: %w", err)
	}
	return nil
}

// CommitVersion atomically persists a truth version snapshot, advances the
// current-version cursor, rewrites the canonical truth document and appends
// a changelog entry. The write is guarded by an optimistic check against the
// stored truth hash: if expectedHash no longer matches (another writer
// committed first), the commit fails with ErrConflict and nothing is written.
// expectedHash may be empty when no truth document exists yet.
func (c *Client) CommitVersion(ctx context.Context, version *TruthVersion, expectedHash, doc string) error {
	if err := version.Validate(); err != nil {
		return fmt.Errorf("invalid version: %w", err)
	}

	versionJSON, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("failed to marshal version: %w", err)
	}

	entry := ChangelogEntry{
		VersionID:   version.ID,
		Number:      version.Number,
		Impact:      version.Impact,
		Reason:      version.Reason,
		Author:      version.Author,
		TimestampMs: version.TimestampMs,
	}
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal changelog entry: %w", err)
	}

	hashKey := TruthHashKey(c.project)
	indexKey := VersionIndexKey(c.project)

	txErr := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, hashKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read truth hash: %w", err)
		}
		if current != expectedHash {
			return ErrConflict
		}

		seq, err := tx.ZCard(ctx, indexKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read version index: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, VersionKey(c.project, version.ID), versionJSON, 0)
			pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(seq + 1), Member: version.ID})
			pipe.Set(ctx, VersionCursorKey(c.project), version.ID, 0)
			pipe.Set(ctx, TruthDocKey(c.project), doc, 0)
			pipe.Set(ctx, hashKey, ContentHash(doc), 0)
			pipe.RPush(ctx, ChangelogKey(c.project), entryJSON)
			return nil
		})
		return err
	}, hashKey, indexKey)

	if txErr != nil {
		if errors.Is(txErr, redis.TxFailedErr) {
			return ErrConflict
		}
		return txErr
	}

	return nil
}

// GetVersion retrieves an immutable truth version snapshot by ID.
// Returns (nil, redis.Nil) if the version doesn't exist.
func (c *Client) GetVersion(ctx context.Context, versionID string) (*TruthVersion, error) {
	data, err := c.rdb.Get(ctx, VersionKey(c.project, versionID)).Result()
	if err != nil {
		return nil, err
	}

	var version TruthVersion
	if err := json.Unmarshal([]byte(data), &version); err != nil {
		return nil, fmt.Errorf("failed to unmarshal version: %w", err)
	}

	return &version, nil
}

// ListVersions returns all truth versions in creation order (oldest first).
func (c *Client) ListVersions(ctx context.Context) ([]*TruthVersion, error) {
	ids, err := c.rdb.ZRange(ctx, VersionIndexKey(c.project), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read version index: %w", err)
	}

	versions := make([]*TruthVersion, 0, len(ids))
	for _, id := range ids {
		version, err := c.GetVersion(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read version %s: %w", id, err)
		}
		versions = append(versions, version)
	}

	return versions, nil
}

// CurrentVersion retrieves the version the current-version cursor points at.
// Returns (nil, redis.Nil) if no version has ever been committed.
func (c *Client) CurrentVersion(ctx context.Context) (*TruthVersion, error) {
	id, err := c.rdb.Get(ctx, VersionCursorKey(c.project)).Result()
	if err != nil {
		return nil, err
	}
	return c.GetVersion(ctx, id)
}

// Changelog returns the append-only changelog, oldest entry first.
func (c *Client) Changelog(ctx context.Context) ([]ChangelogEntry, error) {
	raw, err := c.rdb.LRange(ctx, ChangelogKey(c.project), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read changelog: %w", err)
	}

	entries := make([]ChangelogEntry, 0, len(raw))
	for _, data := range raw {
		var entry ChangelogEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changelog entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// AppendItem appends a work item to its category's item log.
// Validates the item before writing.
func (c *Client) AppendItem(ctx context.Context, item *Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}
	return c.appendItemTo(ctx, ItemsKey(c.project, item.Category), item)
}

// AppendSprintItem appends a task to a sprint's task list.
func (c *Client) AppendSprintItem(ctx context.Context, sprintID string, item *Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}
	if sprintID == "" {
		return fmt.Errorf("sprint ID cannot be empty")
	}
	return c.appendItemTo(ctx, SprintItemsKey(c.project, sprintID), item)
}

func (c *Client) appendItemTo(ctx context.Context, key string, item *Item) error {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	if err := c.rdb.RPush(ctx, key, itemJSON).Err(); err != nil {
		return fmt.Errorf("failed to append item: %w", err)
	}
	return nil
}

// Items returns every item in a category's log, oldest first.
func (c *Client) Items(ctx context.Context, category Category) ([]Item, error) {
	return c.itemsFrom(ctx, ItemsKey(c.project, category), 0)
}

// RecentItems returns up to n most recent items in a category's log,
// oldest of the window first. Returns an empty slice when the log is empty.
func (c *Client) RecentItems(ctx context.Context, category Category, n int) ([]Item, error) {
	return c.itemsFrom(ctx, ItemsKey(c.project, category), n)
}

// SprintItems returns every task recorded for a sprint, oldest first.
func (c *Client) SprintItems(ctx context.Context, sprintID string) ([]Item, error) {
	return c.itemsFrom(ctx, SprintItemsKey(c.project, sprintID), 0)
}

// itemsFrom reads items from a list key. n > 0 limits to the n most recent.
func (c *Client) itemsFrom(ctx context.Context, key string, n int) ([]Item, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}

	raw, err := c.rdb.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	items := make([]Item, 0, len(raw))
	for _, data := range raw {
		var item Item
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

// UpsertPattern atomically applies an observation to the pattern stored under
// key. The read-modify-write runs under a WATCH transaction so concurrent
// learners never lose updates; contended writes retry up to casRetries times
// before surfacing ErrConflict. apply receives a zero-value pattern when the
// key has never been observed.
func (c *Client) UpsertPattern(ctx context.Context, key string, apply func(p *ViolationPattern)) (*ViolationPattern, error) {
	redisKey := PatternKey(c.project, key)

	for attempt := 0; attempt < casRetries; attempt++ {
		var result *ViolationPattern

		err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			var pattern ViolationPattern

			data, err := tx.Get(ctx, redisKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("failed to read pattern: %w", err)
			}
			if err == nil {
				if err := json.Unmarshal([]byte(data), &pattern); err != nil {
					return fmt.Errorf("failed to unmarshal pattern: %w", err)
				}
			}

			apply(&pattern)

			patternJSON, err := json.Marshal(&pattern)
			if err != nil {
				return fmt.Errorf("failed to marshal pattern: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, redisKey, patternJSON, 0)
				pipe.SAdd(ctx, PatternIndexKey(c.project), key)
				return nil
			})
			if err != nil {
				return err
			}

			result = &pattern
			return nil
		}, redisKey)

		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		// Lost the race, re-read and retry
	}

	return nil, ErrConflict
}

// GetPattern retrieves a violation pattern by its type/signature key.
// Returns (nil, redis.Nil) if the pattern has never been observed.
func (c *Client) GetPattern(ctx context.Context, key string) (*ViolationPattern, error) {
	data, err := c.rdb.Get(ctx, PatternKey(c.project, key)).Result()
	if err != nil {
		return nil, err
	}

	var pattern ViolationPattern
	if err := json.Unmarshal([]byte(data), &pattern); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pattern: %w", err)
	}

	return &pattern, nil
}

// ListPatterns returns every stored violation pattern. Order is unspecified.
func (c *Client) ListPatterns(ctx context.Context) ([]*ViolationPattern, error) {
	keys, err := c.rdb.SMembers(ctx, PatternIndexKey(c.project)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern index: %w", err)
	}

	patterns := make([]*ViolationPattern, 0, len(keys))
	for _, key := range keys {
		pattern, err := c.GetPattern(ctx, key)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, pattern)
	}

	return patterns, nil
}

// PushReport persists a drift report into the bounded history. The history
// holds the most recent ReportHistoryCap reports; older reports are evicted
// FIFO. Publishing the report to subscribers is a separate, best-effort
// concern - see PublishDriftReport.
func (c *Client) PushReport(ctx context.Context, report *DriftReport) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	key := ReportHistoryKey(c.project)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, reportJSON)
		pipe.LTrim(ctx, key, 0, ReportHistoryCap-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist report: %w", err)
	}

	return nil
}

// PublishDriftReport publishes a drift report to the project's drift events
// channel. Delivery is at-most-once Pub/Sub; callers treat failures as
// non-fatal since the report itself is already persisted via PushReport.
func (c *Client) PublishDriftReport(ctx context.Context, report *DriftReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := c.rdb.Publish(ctx, DriftEventsChannel(c.project), reportJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish drift event: %w", err)
	}

	return nil
}

// RecentReports returns up to n most recent drift reports, newest first.
// n <= 0 returns the full retained history.
func (c *Client) RecentReports(ctx context.Context, n int) ([]*DriftReport, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}

	raw, err := c.rdb.LRange(ctx, ReportHistoryKey(c.project), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read report history: %w", err)
	}

	reports := make([]*DriftReport, 0, len(raw))
	for _, data := range raw {
		var report DriftReport
		if err := json.Unmarshal([]byte(data), &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		reports = append(reports, &report)
	}

	return reports, nil
}

// GetReport retrieves a drift report from the retained history by ID.
// Returns (nil, redis.Nil) if the report is unknown or already evicted.
func (c *Client) GetReport(ctx context.Context, reportID string) (*DriftReport, error) {
	reports, err := c.RecentReports(ctx, 0)
	if err != nil {
		return nil, err
	}

	for _, report := range reports {
		if report.ID == reportID {
			return report, nil
		}
	}

	return nil, redis.Nil
}

// AppendEscalation appends a persisted escalation record.
func (c *Client) AppendEscalation(ctx context.Context, esc *Escalation) error {
	escJSON, err := json.Marshal(esc)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation: %w", err)
	}

	if err := c.rdb.RPush(ctx, EscalationsKey(c.project), escJSON).Err(); err != nil {
		return fmt.Errorf("failed to append escalation: %w", err)
	}

	return nil
}

// Escalations returns all persisted escalation records, oldest first.
func (c *Client) Escalations(ctx context.Context) ([]Escalation, error) {
	raw, err := c.rdb.LRange(ctx, EscalationsKey(c.project), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read escalations: %w", err)
	}

	escalations := make([]Escalation, 0, len(raw))
	for _, data := range raw {
		var esc Escalation
		if err := json.Unmarshal([]byte(data), &esc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal escalation: %w", err)
		}
		escalations = append(escalations, esc)
	}

	return escalations, nil
}

// PutResolution writes a resolution workflow (full replacement).
// Validates the resolution before writing.
func (c *Client) PutResolution(ctx context.Context, res *Resolution) error {
	if err := res.Validate(); err != nil {
		return fmt.Errorf("invalid resolution: %w", err)
	}

	resJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ResolutionKey(c.project, res.ID), resJSON, 0)
		pipe.SAdd(ctx, ResolutionIndexKey(c.project), res.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write resolution: %w", err)
	}

	return nil
}

// GetResolution retrieves a resolution by ID.
// Returns (nil, redis.Nil) if the resolution doesn't exist.
func (c *Client) GetResolution(ctx context.Context, resolutionID string) (*Resolution, error) {
	data, err := c.rdb.Get(ctx, ResolutionKey(c.project, resolutionID)).Result()
	if err != nil {
		return nil, err
	}

	var res Resolution
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resolution: %w", err)
	}

	return &res, nil
}

// ListResolutions returns every stored resolution. Order is unspecified.
func (c *Client) ListResolutions(ctx context.Context) ([]*Resolution, error) {
	ids, err := c.rdb.SMembers(ctx, ResolutionIndexKey(c.project)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read resolution index: %w", err)
	}

	resolutions := make([]*Resolution, 0, len(ids))
	for _, id := range ids {
		res, err := c.GetResolution(ctx, id)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		resolutions = append(resolutions, res)
	}

	return resolutions, nil
}

// SetBlocked raises the global blocked flag with a reason.
func (c *Client) SetBlocked(ctx context.Context, reason string) error {
	if err := c.rdb.Set(ctx, BlockedFlagKey(c.project), reason, 0).Err(); err != nil {
		return fmt.Errorf("failed to set blocked flag: %w", err)
	}
	return nil
}

// ClearBlocked lowers the global blocked flag. Clearing an unset flag is a no-op.
func (c *Client) ClearBlocked(ctx context.Context) error {
	if err := c.rdb.Del(ctx, BlockedFlagKey(c.project)).Err(); err != nil {
		return fmt.Errorf("failed to clear blocked flag: %w", err)
	}
	return nil
}

// Blocked reports whether the global blocked flag is raised and why.
func (c *Client) Blocked(ctx context.Context) (bool, string, error) {
	reason, err := c.rdb.Get(ctx, BlockedFlagKey(c.project)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("failed to read blocked flag: %w", err)
	}
	return true, reason, nil
}

// PublishViolation publishes a blocked/review verification result to the
// violation events channel for external consumers (dashboard, audit).
func (c *Client) PublishViolation(ctx context.Context, result *VerificationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal verification result: %w", err)
	}

	if err := c.rdb.Publish(ctx, ViolationEventsChannel(c.project), resultJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish violation event: %w", err)
	}

	return nil
}

// ReportSubscription represents an active Pub/Sub subscription to drift
// report events. Caller must call Close() when done to clean up resources.
type ReportSubscription struct {
	events <-chan *DriftReport
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of drift report events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *ReportSubscription) Events() <-chan *DriftReport {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *ReportSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *ReportSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeDriftReports subscribes to drift report events for this project.
// Returns a ReportSubscription that delivers full report objects.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// Redis Pub/Sub is at-most-once; a slow subscriber may drop events.
func (c *Client) SubscribeDriftReports(ctx context.Context) (*ReportSubscription, error) {
	channel := DriftEventsChannel(c.project)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *DriftReport, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var report DriftReport
				if err := json.Unmarshal([]byte(msg.Payload), &report); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal drift report event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &report:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &ReportSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check whether a Get returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsConflict returns true if the error is an optimistic-write conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
