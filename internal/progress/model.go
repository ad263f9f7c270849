package progress

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lumenreads/lumen/internal/catalog"
)

// ToggleAction enumerates supported checklist operations.
type ToggleAction string

const (
	// ActionComplete records a chapter as read.
	ActionComplete ToggleAction = "complete"
	// ActionUncomplete removes a chapter completion.
	ActionUncomplete ToggleAction = "uncomplete"
)

var (
	// ErrUnknownBook indicates the book is not part of the catalog universe.
	ErrUnknownBook = errors.New("progress: unknown book")
	// ErrChapterOutOfRange indicates the chapter number falls outside the book.
	ErrChapterOutOfRange = errors.New("progress: chapter out of range")
	// ErrUnknownAction indicates an unrecognized toggle action.
	ErrUnknownAction = errors.New("progress: unknown action")
)

// Record models one chapter-completion event. The unique index keeps at most
// one live record per (user, book, chapter); toggling is insert/delete, never
// update-in-place.
type Record struct {
	RecordID           string `gorm:"column:record_id;primaryKey;size:190;not null"`
	UserID             string `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_progress_user_book_chapter,priority:1;index:idx_progress_user_completed,priority:1"`
	Book               string `gorm:"column:book;size:64;not null;uniqueIndex:idx_progress_user_book_chapter,priority:2"`
	Chapter            int    `gorm:"column:chapter;not null;uniqueIndex:idx_progress_user_book_chapter,priority:3"`
	CompletedAtSeconds int64  `gorm:"column:completed_at_s;not null;index:idx_progress_user_completed,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "progress_records"
}

// Toggle is a validated check/uncheck request for a single chapter.
type Toggle struct {
	Book    string
	Chapter int
	Action  ToggleAction
}

// NewToggle validates the book against the catalog, the chapter against the
// book's range, and the action against the known set.
func NewToggle(book string, chapter int, action ToggleAction) (Toggle, error) {
	name := strings.TrimSpace(book)
	chapterCount, ok := catalog.ChapterCount(name)
	if !ok {
		return Toggle{}, fmt.Errorf("%w: %q", ErrUnknownBook, book)
	}
	if chapter < 1 || chapter > chapterCount {
		return Toggle{}, fmt.Errorf("%w: %s %d", ErrChapterOutOfRange, name, chapter)
	}
	switch action {
	case ActionComplete, ActionUncomplete:
	default:
		return Toggle{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return Toggle{Book: name, Chapter: chapter, Action: action}, nil
}

// ParseAction maps a wire value onto a ToggleAction.
func ParseAction(value string) (ToggleAction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(ActionComplete):
		return ActionComplete, nil
	case string(ActionUncomplete):
		return ActionUncomplete, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, value)
	}
}

// ToggleOutcome reports what a single toggle did. Applied is false when the
// chapter was already in the requested state; the batch still succeeds.
type ToggleOutcome struct {
	Toggle   Toggle
	Applied  bool
	RecordID string
}

// SaveResult summarizes an applied batch, including the recomputed live
// record count persisted to the user row.
type SaveResult struct {
	Outcomes          []ToggleOutcome
	ChaptersReadCount int
}
