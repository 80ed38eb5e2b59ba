// Package metrics derives summary figures from agent and content snapshots.
package metrics

import (
	"math"
	"time"

	"content_orchestra/internal/domain"
)

// Compute is a pure function of its inputs. "Today" is the calendar date of
// now in now's location.
func Compute(agents []domain.Agent, items []domain.ContentItem, now time.Time) domain.Metrics {
	var m domain.Metrics
	for _, a := range agents {
		if a.Status == domain.AgentStatusWorking {
			m.ActiveAgents++
		}
	}

	m.TotalContentCreated = len(items)
	if len(items) == 0 {
		return m
	}

	y, mo, d := now.Date()
	loc := now.Location()
	trendSum := 0
	published := 0
	for _, item := range items {
		trendSum += item.TrendScore
		if item.Stage.InPipeline() {
			m.ContentPipelineCount++
		}
		if item.Stage == domain.StagePublished {
			published++
		}
		iy, imo, id := item.CreatedAt.In(loc).Date()
		if iy == y && imo == mo && id == d {
			m.DailyOutput++
		}
		if item.Video != nil && item.Video.Status == domain.VideoStatusCompleted {
			if item.Video.Kind == domain.VideoKindReel {
				m.ReelsCreated++
			} else {
				m.VideosCreated++
			}
		}
	}
	m.AverageTrendScore = int(math.Round(float64(trendSum) / float64(len(items))))
	m.SuccessRate = int(math.Round(float64(published) / float64(len(items)) * 100))
	return m
}
