package rankings

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/lumenreads/lumen/internal/users"
	"go.uber.org/zap"
)

const (
	defaultTopN  = 3
	recentWindow = 7 * 24 * time.Hour
)

var (
	errMissingDirectory = errors.New("rankings: user directory required")
	errMissingActivity  = errors.New("rankings: activity source required")
	noOpLogger          = zap.NewNop()
)

// UserDirectory is the ordered user query surface the rankers consume.
type UserDirectory interface {
	TopReaders(ctx context.Context, groupID string, limit int) ([]users.User, error)
	ListGrouped(ctx context.Context) ([]users.User, error)
}

// ActivitySource supplies recent completion counts for the recent metric.
type ActivitySource interface {
	RecentCompletionCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

// ServiceConfig describes the ranker dependencies.
type ServiceConfig struct {
	Directory UserDirectory
	Activity  ActivitySource
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Service computes leaderboards and per-group rising stars. Query failures
// degrade to empty results: the error is logged and returned, but callers can
// always range over the (possibly empty) slice.
type Service struct {
	directory UserDirectory
	activity  ActivitySource
	clock     func() time.Time
	logger    *zap.Logger
}

// NewService constructs the ranking service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Directory == nil {
		return nil, errMissingDirectory
	}
	if cfg.Activity == nil {
		return nil, errMissingActivity
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
		directory: cfg.Directory,
		activity:  cfg.Activity,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Leaderboard returns at most query.Limit users ranked by their derived
// chapter count, globally or scoped to one group. Ties break ascending by
// user id so repeated queries agree.
func (s *Service) Leaderboard(ctx context.Context, query LeaderboardQuery) ([]Entry, error) {
	if query.Limit <= 0 {
		return []Entry{}, nil
	}

	top, err := s.directory.TopReaders(ctx, query.GroupID, query.Limit)
	if err != nil {
		s.logger.Error("leaderboard query failed",
			zap.String("group_id", query.GroupID),
			zap.Error(err))
		return []Entry{}, err
	}

	return rankUsers(top, func(user users.User) int {
		return int(user.ChaptersReadCount)
	}), nil
}

// RisingStars partitions grouped users by group id and ranks the top N per
// partition by the configured metric. Every user with a group lands in
// exactly one partition's candidate pool before truncation.
func (s *Service) RisingStars(ctx context.Context, cfg RisingStarsConfig) (map[string][]Entry, error) {
	topN := cfg.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	grouped, err := s.directory.ListGrouped(ctx)
	if err != nil {
		s.logger.Error("rising stars user query failed", zap.Error(err))
		return map[string][]Entry{}, err
	}

	score := func(user users.User) int {
		return int(user.ChaptersReadCount)
	}
	if cfg.Metric == MetricRecent {
		since := s.clock().UTC().Add(-recentWindow)
		recent, err := s.activity.RecentCompletionCounts(ctx, since)
		if err != nil {
			s.logger.Error("rising stars activity query failed", zap.Error(err))
			return map[string][]Entry{}, err
		}
		score = func(user users.User) int {
			return recent[user.ID]
		}
	}

	partitions := make(map[string][]users.User)
	for _, user := range grouped {
		partitions[user.GroupID] = append(partitions[user.GroupID], user)
	}

	stars := make(map[string][]Entry, len(partitions))
	for groupID, members := range partitions {
		ranked := rankUsers(members, score)
		if len(ranked) > topN {
			ranked = ranked[:topN]
		}
		stars[groupID] = ranked
	}
	return stars, nil
}

// rankUsers orders users descending by score with an ascending id tiebreak
// and annotates 1-based ranks.
func rankUsers(members []users.User, score func(users.User) int) []Entry {
	ordered := make([]users.User, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool {
		left, right := score(ordered[i]), score(ordered[j])
		if left != right {
			return left > right
		}
		return ordered[i].ID < ordered[j].ID
	})

	entries := make([]Entry, 0, len(ordered))
	for index, user := range ordered {
		rank := index + 1
		entries = append(entries, Entry{
			Rank:        rank,
			Medal:       medalFor(rank),
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			GroupID:     user.GroupID,
			Chapters:    score(user),
		})
	}
	return entries
}
