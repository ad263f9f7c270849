package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError wraps a failure with a stable operation code for callers and
// logs.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "progress.service.new"
	opApplyToggles = "progress.apply_toggles"
	opListRecords  = "progress.list_records"
	opRecentCounts = "progress.recent_counts"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for new progress records.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the progress service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns the progress record lifecycle: listing, batched toggling, and
// the derived per-user chapter count.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the progress service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ListRecords returns every live completion record for the user.
func (s *Service) ListRecords(ctx context.Context, userID string) ([]Record, error) {
	if s.db == nil {
		s.logError(opListRecords, "missing_database", errMissingDatabase)
		return nil, newServiceError(opListRecords, "missing_database", errMissingDatabase)
	}
	if userID == "" {
		s.logError(opListRecords, "missing_user_id", errMissingUserID)
		return nil, newServiceError(opListRecords, "missing_user_id", errMissingUserID)
	}

	var records []Record
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("completed_at_s DESC").
		Find(&records).Error; err != nil {
		s.logError(opListRecords, "query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opListRecords, "query_failed", err)
	}

	return records, nil
}

// ApplyToggles applies a batch of check/uncheck operations atomically. All
// writes and the chapters_read_count recomputation share one transaction, so
// a failed batch leaves both the records and the derived count untouched.
func (s *Service) ApplyToggles(ctx context.Context, userID string, toggles []Toggle) (SaveResult, error) {
	if s.db == nil {
		s.logError(opApplyToggles, "missing_database", errMissingDatabase)
		return SaveResult{}, newServiceError(opApplyToggles, "missing_database", errMissingDatabase)
	}
	if s.idProvider == nil {
		s.logError(opApplyToggles, "missing_id_provider", errMissingIDProvider)
		return SaveResult{}, newServiceError(opApplyToggles, "missing_id_provider", errMissingIDProvider)
	}
	if userID == "" {
		s.logError(opApplyToggles, "missing_user_id", errMissingUserID)
		return SaveResult{}, newServiceError(opApplyToggles, "missing_user_id", errMissingUserID)
	}

	result := SaveResult{Outcomes: make([]ToggleOutcome, 0, len(toggles))}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, toggle := range toggles {
			outcome, err := s.applyToggle(tx, userID, toggle)
			if err != nil {
				return err
			}
			result.Outcomes = append(result.Outcomes, outcome)
		}

		count, err := s.recountChapters(tx, userID)
		if err != nil {
			return err
		}
		result.ChaptersReadCount = count
		return nil
	})
	if txErr != nil {
		return SaveResult{}, txErr
	}

	return result, nil
}

func (s *Service) applyToggle(tx *gorm.DB, userID string, toggle Toggle) (ToggleOutcome, error) {
	var existing Record
	err := tx.
		Where("user_id = ? AND book = ? AND chapter = ?", userID, toggle.Book, toggle.Chapter).
		Take(&existing).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opApplyToggles, "record_select_failed", err,
			zap.String("user_id", userID),
			zap.String("book", toggle.Book),
			zap.Int("chapter", toggle.Chapter))
		return ToggleOutcome{}, newServiceError(opApplyToggles, "record_select_failed", err)
	}

	switch toggle.Action {
	case ActionComplete:
		if found {
			return ToggleOutcome{Toggle: toggle, Applied: false, RecordID: existing.RecordID}, nil
		}
		recordID, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opApplyToggles, "id_generation_failed", err, zap.String("user_id", userID))
			return ToggleOutcome{}, newServiceError(opApplyToggles, "id_generation_failed", err)
		}
		record := Record{
			RecordID:           recordID,
			UserID:             userID,
			Book:               toggle.Book,
			Chapter:            toggle.Chapter,
			CompletedAtSeconds: s.clock().UTC().Unix(),
		}
		if err := tx.Create(&record).Error; err != nil {
			s.logError(opApplyToggles, "record_insert_failed", err,
				zap.String("user_id", userID),
				zap.String("book", toggle.Book),
				zap.Int("chapter", toggle.Chapter))
			return ToggleOutcome{}, newServiceError(opApplyToggles, "record_insert_failed", err)
		}
		return ToggleOutcome{Toggle: toggle, Applied: true, RecordID: recordID}, nil

	case ActionUncomplete:
		if !found {
			return ToggleOutcome{Toggle: toggle, Applied: false}, nil
		}
		if err := tx.Delete(&Record{}, "record_id = ?", existing.RecordID).Error; err != nil {
			s.logError(opApplyToggles, "record_delete_failed", err,
				zap.String("user_id", userID),
				zap.String("book", toggle.Book),
				zap.Int("chapter", toggle.Chapter))
			return ToggleOutcome{}, newServiceError(opApplyToggles, "record_delete_failed", err)
		}
		return ToggleOutcome{Toggle: toggle, Applied: true, RecordID: existing.RecordID}, nil
	}

	return ToggleOutcome{}, newServiceError(opApplyToggles, "unknown_action", fmt.Errorf("%w: %q", ErrUnknownAction, toggle.Action))
}

// recountChapters derives chapters_read_count from the authoritative record
// set rather than incrementing a cached value.
func (s *Service) recountChapters(tx *gorm.DB, userID string) (int, error) {
	var count int64
	if err := tx.Model(&Record{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		s.logError(opApplyToggles, "record_count_failed", err, zap.String("user_id", userID))
		return 0, newServiceError(opApplyToggles, "record_count_failed", err)
	}
	if err := tx.Table("users").
		Where("id = ?", userID).
		Update("chapters_read_count", count).Error; err != nil {
		s.logError(opApplyToggles, "count_update_failed", err, zap.String("user_id", userID))
		return 0, newServiceError(opApplyToggles, "count_update_failed", err)
	}
	return int(count), nil
}

// RecentCompletionCounts returns per-user record counts for completions at or
// after the provided cutoff. Rankings use it for the recent-activity metric.
func (s *Service) RecentCompletionCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	if s.db == nil {
		s.logError(opRecentCounts, "missing_database", errMissingDatabase)
		return nil, newServiceError(opRecentCounts, "missing_database", errMissingDatabase)
	}

	type userCount struct {
		UserID string `gorm:"column:user_id"`
		Total  int    `gorm:"column:total"`
	}
	var rows []userCount
	if err := s.db.WithContext(ctx).
		Model(&Record{}).
		Select("user_id, COUNT(*) AS total").
		Where("completed_at_s >= ?", since.UTC().Unix()).
		Group("user_id").
		Find(&rows).Error; err != nil {
		s.logError(opRecentCounts, "query_failed", err)
		return nil, newServiceError(opRecentCounts, "query_failed", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Total
	}
	return counts, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("progress service error", attrs...)
}
