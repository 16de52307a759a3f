package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// LookupGoalsByNumber returns existing goals keyed by goal number.
func (s *Store) LookupGoalsByNumber(ctx context.Context, numbers []string) (map[string]Goal, error) {
	out := make(map[string]Goal, len(numbers))
	if len(numbers) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, goal_number, title, type, risk_tolerance, fund_distribution, status
		 FROM goals WHERE goal_number = ANY($1)`, numbers)
	if err != nil {
		return nil, fmt.Errorf("db: lookup goals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g Goal
		var dist []byte
		if err := rows.Scan(&g.ID, &g.AccountID, &g.GoalNumber, &g.Title, &g.Type, &g.RiskTolerance, &dist, &g.Status); err != nil {
			return nil, fmt.Errorf("db: scan goal: %w", err)
		}
		if err := json.Unmarshal(dist, &g.FundDistribution); err != nil {
			return nil, fmt.Errorf("db: decode fund_distribution for goal %s: %w", g.GoalNumber, err)
		}
		out[g.GoalNumber] = g
	}
	return out, rows.Err()
}

// CreateGoal inserts a new goal, tolerating a concurrent create of the same
// goal number.
func (s *Store) CreateGoal(ctx context.Context, g Goal) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	dist, err := json.Marshal(g.FundDistribution)
	if err != nil {
		return fmt.Errorf("db: encode fund_distribution: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO goals (id, account_id, goal_number, title, type, risk_tolerance, fund_distribution, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (goal_number) DO NOTHING`,
		g.ID, g.AccountID, g.GoalNumber, g.Title, g.Type, g.RiskTolerance, dist, g.Status)
	if err != nil {
		return fmt.Errorf("db: create goal: %w", err)
	}
	return nil
}
