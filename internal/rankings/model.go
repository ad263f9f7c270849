package rankings

import (
	"errors"
	"fmt"
	"strings"
)

// Metric selects how rising stars are scored. The original system shipped two
// forked copies of the ranker differing only in this choice; here it is
// configuration on one algorithm.
type Metric string

const (
	// MetricAllTime ranks by the derived total chapter count.
	MetricAllTime Metric = "alltime"
	// MetricRecent ranks by completions inside the trailing seven days.
	MetricRecent Metric = "recent"
)

// ErrUnknownMetric indicates an unrecognized metric name.
var ErrUnknownMetric = errors.New("rankings: unknown metric")

// ParseMetric maps a wire value onto a Metric.
func ParseMetric(value string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(MetricAllTime), "":
		return MetricAllTime, nil
	case string(MetricRecent):
		return MetricRecent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, value)
	}
}

// LeaderboardQuery scopes and bounds a leaderboard request. An empty GroupID
// means the global board.
type LeaderboardQuery struct {
	GroupID string
	Limit   int
}

// RisingStarsConfig bounds the per-group ranking. TopN defaults to 3.
type RisingStarsConfig struct {
	Metric Metric
	TopN   int
}

// Entry is one ranked row: 1-based rank, medal markers for the podium and
// "#rank" beyond it.
type Entry struct {
	Rank        int    `json:"rank"`
	Medal       string `json:"medal"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	GroupID     string `json:"group_id,omitempty"`
	Chapters    int    `json:"chapters"`
}

func medalFor(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("#%d", rank)
	}
}
