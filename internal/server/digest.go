package server

import (
	"fmt"
	"log"
	"time"

	"github.com/clawdeck/clawdeck/internal/models"
)

// digestWindow is how far back the scheduled usage digest looks.
const digestWindow = 24 * time.Hour

// digestRow is one per-bot line of the usage digest.
type digestRow struct {
	BotID         string
	Requests      int64
	TotalTokens   int64
	EstimatedCost float64
	Failures      int64
}

// digestRows aggregates usage per bot since the cutoff.
func (s *Server) digestRows(since time.Time) ([]digestRow, error) {
	var rows []digestRow
	err := s.db.Model(&models.APIUsage{}).
		Select("bot_id, count(*) as requests, sum(total_tokens) as total_tokens, sum(estimated_cost) as estimated_cost, sum(case when success then 0 else 1 end) as failures").
		Where("created_at >= ?", since).
		Group("bot_id").
		Order("estimated_cost desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("server: usage digest: %w", err)
	}
	return rows, nil
}

// runDigest writes the daily per-bot usage summary. It is the cron
// entrypoint, so it logs failures instead of returning them.
func (s *Server) runDigest() {
	rows, err := s.digestRows(time.Now().Add(-digestWindow))
	if err != nil {
		log.Printf("%v", err)
		return
	}
	if len(rows) == 0 {
		fmt.Fprintf(s.out, "digest: no usage in the last 24h\n")
		return
	}
	fmt.Fprintf(s.out, "digest: usage for the last 24h (%d bots)\n", len(rows))
	for _, r := range rows {
		fmt.Fprintf(s.out, "digest:   bot=%s requests=%d tokens=%d cost=$%.4f failures=%d\n",
			r.BotID, r.Requests, r.TotalTokens, r.EstimatedCost, r.Failures)
	}
}
