// Package history keeps recent execution records in Redis.
package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"coderun/internal/common/cache"
	"coderun/internal/execution/pipeline"
	"coderun/internal/execution/result"
	appErr "coderun/pkg/errors"
	"coderun/pkg/utils/logger"
)

const (
	recordKeyPrefix = "coderun:run:"
	recentKey       = "coderun:runs:recent"
	defaultTTL      = 24 * time.Hour
	defaultRecent   = 100
)

// Record is the stored view of one execution.
type Record struct {
	RunID     string                  `json:"runId"`
	Language  string                  `json:"language"`
	State     result.State            `json:"state"`
	Error     string                  `json:"error,omitempty"`
	ErrorCode int                     `json:"errorCode,omitempty"`
	Result    *result.ExecutionResult `json:"result,omitempty"`
	CreatedAt int64                   `json:"createdAt"`
	UpdatedAt int64                   `json:"updatedAt"`
}

// Config holds history settings.
type Config struct {
	TTL    time.Duration
	Recent int
}

// Store persists records as zstd-compressed JSON.
type Store struct {
	cache   cache.Cache
	ttl     time.Duration
	recent  int
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	now     func() time.Time
}

// NewStore creates a history store on top of c.
func NewStore(c cache.Cache, cfg Config) (*Store, error) {
	if c == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("cache is required")
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create zstd encoder failed")
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create zstd decoder failed")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	recent := cfg.Recent
	if recent <= 0 {
		recent = defaultRecent
	}
	return &Store{
		cache:   c,
		ttl:     ttl,
		recent:  recent,
		encoder: encoder,
		decoder: decoder,
		now:     time.Now,
	}, nil
}

// ReportStatus records a state transition. It lets the store act as the
// pipeline-wide status reporter.
func (s *Store) ReportStatus(ctx context.Context, update pipeline.StatusUpdate) error {
	if update.RunID == "" {
		return nil
	}
	rec, err := s.Get(ctx, update.RunID)
	if err != nil && !appErr.Is(err, appErr.RunNotFound) {
		return err
	}
	now := s.now().UnixMilli()
	if rec.RunID == "" {
		rec = Record{RunID: update.RunID, Language: update.Language, CreatedAt: now}
		if err := s.remember(ctx, update.RunID); err != nil {
			return err
		}
	}
	rec.State = update.State
	rec.UpdatedAt = now
	if update.Err != nil {
		rec.Error = update.Err.Error()
		rec.ErrorCode = int(appErr.GetCode(update.Err))
	}
	return s.put(ctx, rec)
}

// SaveResult attaches the final result to a run record.
func (s *Store) SaveResult(ctx context.Context, res result.ExecutionResult) error {
	if res.RunID == "" {
		return appErr.ValidationError("run_id", "required")
	}
	rec, err := s.Get(ctx, res.RunID)
	if err != nil && !appErr.Is(err, appErr.RunNotFound) {
		return err
	}
	now := s.now().UnixMilli()
	if rec.RunID == "" {
		rec = Record{RunID: res.RunID, Language: res.Language, CreatedAt: now}
		if err := s.remember(ctx, res.RunID); err != nil {
			return err
		}
	}
	rec.State = result.StateCompleted
	rec.Result = &res
	rec.UpdatedAt = now
	return s.put(ctx, rec)
}

// Get loads one record. A missing or expired run is RunNotFound.
func (s *Store) Get(ctx context.Context, runID string) (Record, error) {
	raw, err := s.cache.Get(ctx, recordKey(runID))
	if err != nil {
		return Record{}, appErr.Wrapf(err, appErr.CacheError, "load run %s failed", runID)
	}
	if raw == "" {
		return Record{}, appErr.New(appErr.RunNotFound).WithDetail("run_id", runID)
	}
	data, err := s.decoder.DecodeAll([]byte(raw), nil)
	if err != nil {
		return Record{}, appErr.Wrapf(err, appErr.CacheError, "decompress run %s failed", runID)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, appErr.Wrapf(err, appErr.CacheError, "decode run %s failed", runID)
	}
	return rec, nil
}

// Recent returns up to limit of the most recently created records, newest first.
// Ids whose record already expired are skipped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > s.recent {
		limit = s.recent
	}
	ids, err := s.cache.LRange(ctx, recentKey, 0, int64(limit-1))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "list recent runs failed")
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if appErr.Is(err, appErr.RunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) put(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode run %s failed", rec.RunID)
	}
	compressed := s.encoder.EncodeAll(data, nil)
	if err := s.cache.Set(ctx, recordKey(rec.RunID), compressed, cache.JitterTTL(s.ttl)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store run %s failed", rec.RunID)
	}
	logger.Debug(ctx, "run record stored",
		zap.String("run_id", rec.RunID),
		zap.String("state", string(rec.State)),
		zap.Int("raw_bytes", len(data)),
		zap.Int("stored_bytes", len(compressed)),
	)
	return nil
}

func (s *Store) remember(ctx context.Context, runID string) error {
	if err := s.cache.LPush(ctx, recentKey, runID); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "index run %s failed", runID)
	}
	if err := s.cache.LTrim(ctx, recentKey, 0, int64(s.recent-1)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "trim run index failed")
	}
	return s.cache.Expire(ctx, recentKey, s.ttl)
}

// Ping checks the backing cache.
func (s *Store) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// Close releases the codec resources.
func (s *Store) Close() {
	_ = s.encoder.Close()
	s.decoder.Close()
}

func recordKey(runID string) string {
	return recordKeyPrefix + runID
}
