// Package ranking supplies the per-domain rank used to bias document ids so
// that posting lists come out ordered best domain first.
package ranking

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/edge-index/internal/model"
)

// DomainRankings maps domain ids to a rank in [0, model.MaxRank]. The zero
// value and nil ranks every domain model.MaxRank.
type DomainRankings struct {
	ranks map[int]int
}

func New(ranks map[int]int) *DomainRankings {
	cp := make(map[int]int, len(ranks))
	for d, r := range ranks {
		cp[d] = min(max(r, 0), model.MaxRank)
	}
	return &DomainRankings{ranks: cp}
}

func (d *DomainRankings) Rank(domainID int) int {
	if d == nil {
		return model.MaxRank
	}
	if r, ok := d.ranks[domainID]; ok {
		return r
	}
	return model.MaxRank
}

// Bias returns the rank-biased form of docID.
func (d *DomainRankings) Bias(docID int64) int64 {
	return model.RankBiased(d.Rank(model.DomainID(docID)), docID)
}

func (d *DomainRankings) Size() int {
	if d == nil {
		return 0
	}
	return len(d.ranks)
}

const rankingQuery = `SELECT domain_id, rank FROM domain_ranking`

// LoadFromPostgres reads the domain_ranking table.
func LoadFromPostgres(ctx context.Context, db *sql.DB) (*DomainRankings, error) {
	rows, err := db.QueryContext(ctx, rankingQuery)
	if err != nil {
		return nil, fmt.Errorf("querying domain rankings: %w", err)
	}
	defer rows.Close()

	ranks := make(map[int]int)
	for rows.Next() {
		var domainID, rank int
		if err := rows.Scan(&domainID, &rank); err != nil {
			return nil, fmt.Errorf("scanning domain ranking: %w", err)
		}
		ranks[domainID] = rank
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating domain rankings: %w", err)
	}
	slog.Default().With("component", "ranking").Info("domain rankings loaded", "domains", len(ranks))
	return New(ranks), nil
}
