package entity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/db"
)

// Creator creates the clients, accounts and goals named in a new-entities
// report, in that order, tolerating "already exists" as success to
// absorb races between concurrent batches (§4.F).
type Creator struct {
	store *db.Store
}

func NewCreator(store *db.Store) *Creator {
	return &Creator{store: store}
}

// Create runs the three creation phases. accountOwners maps an account
// number to the client name that should own it if the account is new;
// goalAccounts maps a goal number to the account number that should own
// it if the goal is new; goalTitles maps a goal number to its source
// goalTitle. All three are derived by the caller from the batch's rows,
// since the report itself only carries summaries.
func (c *Creator) Create(ctx context.Context, report *db.NewEntitiesReport, accountOwners, goalAccounts, goalTitles map[string]string) error {
	for _, nc := range report.NewClients {
		if err := c.store.CreateClient(ctx, db.Client{Name: nc.Key, Status: db.ClientActive}); err != nil {
			return fmt.Errorf("entity: create client %q: %w", nc.Key, err)
		}
	}

	clients, err := c.store.LookupClientsByName(ctx, clientKeys(report.NewClients))
	if err != nil {
		return fmt.Errorf("entity: lookup clients after create: %w", err)
	}

	for _, na := range report.NewAccounts {
		ownerName, ok := accountOwners[na.Key]
		if !ok {
			return fmt.Errorf("entity: no owning client recorded for new account %q", na.Key)
		}
		owner, ok := clients[ownerName]
		if !ok {
			existing, err := c.store.LookupClientsByName(ctx, []string{ownerName})
			if err != nil {
				return fmt.Errorf("entity: lookup owner client %q: %w", ownerName, err)
			}
			owner, ok = existing[ownerName]
			if !ok {
				return fmt.Errorf("entity: owning client %q not found for account %q", ownerName, na.Key)
			}
		}
		if err := c.store.CreateAccount(ctx, db.Account{
			ClientID:      owner.ID,
			AccountNumber: na.Key,
			Type:          db.AccountPersonal,
			Category:      db.CategoryGeneral,
			Status:        "active",
		}); err != nil {
			return fmt.Errorf("entity: create account %q: %w", na.Key, err)
		}
	}

	accounts, err := c.store.LookupAccountsByNumber(ctx, accountKeys(report.NewAccounts))
	if err != nil {
		return fmt.Errorf("entity: lookup accounts after create: %w", err)
	}

	for _, ng := range report.NewGoals {
		accountNumber, ok := goalAccounts[ng.Key]
		if !ok {
			return fmt.Errorf("entity: no owning account recorded for new goal %q", ng.Key)
		}
		account, ok := accounts[accountNumber]
		if !ok {
			existing, err := c.store.LookupAccountsByNumber(ctx, []string{accountNumber})
			if err != nil {
				return fmt.Errorf("entity: lookup owner account %q: %w", accountNumber, err)
			}
			account, ok = existing[accountNumber]
			if !ok {
				return fmt.Errorf("entity: owning account %q not found for goal %q", accountNumber, ng.Key)
			}
		}
		title := goalTitles[ng.Key]
		if title == "" {
			title = ng.Key
		}
		// Goals default to type=other, riskTolerance=moderate (§4.F).
		if err := c.store.CreateGoal(ctx, db.Goal{
			ID:               uuid.New(),
			AccountID:        account.ID,
			GoalNumber:       ng.Key,
			Title:            title,
			Type:             db.GoalTypeOther,
			RiskTolerance:    db.RiskModerate,
			FundDistribution: ng.FundDistribution,
			Status:           "active",
		}); err != nil {
			return fmt.Errorf("entity: create goal %q: %w", ng.Key, err)
		}
	}

	return nil
}

func clientKeys(s []db.NewEntitySummary) []string {
	out := make([]string, len(s))
	for i, e := range s {
		out[i] = e.Key
	}
	return out
}

func accountKeys(s []db.NewEntitySummary) []string {
	out := make([]string, len(s))
	for i, e := range s {
		out[i] = e.Key
	}
	return out
}
