package progress

import (
	"math"
	"sort"

	"github.com/lumenreads/lumen/internal/catalog"
)

// Summary is the overall completion ratio against the catalog universe.
type Summary struct {
	TotalChapters     int `json:"total_chapters"`
	CompletedChapters int `json:"completed_chapters"`
	Percentage        int `json:"percentage"`
}

// BookProgress maps each book to its deduplicated completed chapters,
// alongside the overall summary.
type BookProgress struct {
	Books   map[string][]int `json:"books"`
	Summary Summary          `json:"summary"`
}

// Aggregate folds a user's records into per-book chapter sets and an overall
// summary. Pure function of its input: duplicate (book, chapter) pairs
// collapse, chapter lists come back sorted, and books outside the catalog
// appear in the mapping but never count toward the completion ratio.
func Aggregate(records []Record) BookProgress {
	chapterSets := make(map[string]map[int]struct{})
	for _, record := range records {
		set, ok := chapterSets[record.Book]
		if !ok {
			set = make(map[int]struct{})
			chapterSets[record.Book] = set
		}
		set[record.Chapter] = struct{}{}
	}

	books := make(map[string][]int, len(chapterSets))
	completed := 0
	for book, set := range chapterSets {
		chapters := make([]int, 0, len(set))
		for chapter := range set {
			chapters = append(chapters, chapter)
		}
		sort.Ints(chapters)
		books[book] = chapters
		if _, inCatalog := catalog.ChapterCount(book); inCatalog {
			completed += len(chapters)
		}
	}

	total := catalog.TotalChapters()
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(completed) / float64(total) * 100))
	}

	return BookProgress{
		Books: books,
		Summary: Summary{
			TotalChapters:     total,
			CompletedChapters: completed,
			Percentage:        percentage,
		},
	}
}
