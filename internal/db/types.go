// Package db holds the persisted data model (spec.md §3) and the pgx-backed
// repositories that read and write it. There is deliberately no ORM: every
// query is hand-written SQL against jackc/pgx/v5, grounded on the COPY-based
// bulk loader pattern in the reference bulk-loading script.
package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/paynet/trustrecon/internal/money"
)

type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
)

type Client struct {
	ID     uuid.UUID
	Name   string
	Status ClientStatus
}

type AccountType string

const (
	AccountPersonal AccountType = "personal"
	AccountPooled   AccountType = "pooled"
	AccountJoint    AccountType = "joint"
	AccountLinked   AccountType = "linked"
)

type AccountCategory string

const (
	CategoryGeneral               AccountCategory = "general"
	CategoryFamily                AccountCategory = "family"
	CategoryInvestmentClubs       AccountCategory = "investment_clubs"
	CategoryRetirementsBenefit    AccountCategory = "retirements_benefit_scheme"
)

type Account struct {
	ID            uuid.UUID
	ClientID      uuid.UUID
	AccountNumber string
	Type          AccountType
	Category      AccountCategory
	SponsorCode   string
	Status        string
	OpenedAt      time.Time
}

type GoalType string

const (
	GoalTypeOther GoalType = "other"
)

type RiskTolerance string

const (
	RiskModerate RiskTolerance = "moderate"
)

type Goal struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	GoalNumber       string
	Title            string
	Type             GoalType
	RiskTolerance    RiskTolerance
	FundDistribution map[string]float64 // fundCode -> percent [0,1]
	Status           string
}

type FundCode string

const (
	FundXUMMF FundCode = "XUMMF"
	FundXUBF  FundCode = "XUBF"
	FundXUDEF FundCode = "XUDEF"
	FundXUREF FundCode = "XUREF"
)

// AllFundCodes is the closed set of four funds, in the fixed order the
// spec's per-fund amount/percentage columns use.
var AllFundCodes = []FundCode{FundXUMMF, FundXUBF, FundXUDEF, FundXUREF}

type Fund struct {
	ID       uuid.UUID
	FundCode FundCode
	Name     string
	Status   string
}

type FundPrice struct {
	FundID    uuid.UUID
	PriceDate time.Time
	Bid       money.Amount
	Mid       money.Amount
	Offer     money.Amount
}

type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxRedemption TransactionType = "redemption"
)

// BankTransactionType is the bank feed's coarser two-state type.
type BankTransactionType string

const (
	BankTxDeposit    BankTransactionType = "deposit"
	BankTxWithdrawal BankTransactionType = "withdrawal"
)

type FundTransaction struct {
	ID                  uuid.UUID
	FundTransactionID   string
	GoalTransactionCode string
	TransactionID       string
	Source              string
	ClientID            uuid.UUID
	AccountID            uuid.UUID
	GoalID               uuid.UUID
	FundID               uuid.UUID
	UploadBatchID        uuid.UUID
	TransactionDate      time.Time
	DateCreated          time.Time
	Type                 TransactionType
	Amount               money.Amount
	Units                money.Units
	Bid, Mid, Offer      money.Amount
	PriceDate            time.Time
	RowNumber            int
}

type ProcessingStatus string

const (
	StatusQueued              ProcessingStatus = "queued"
	StatusParsing             ProcessingStatus = "parsing"
	StatusValidating          ProcessingStatus = "validating"
	StatusProcessing          ProcessingStatus = "processing"
	StatusCompleted           ProcessingStatus = "completed"
	StatusFailed              ProcessingStatus = "failed"
	StatusWaitingForApproval  ProcessingStatus = "waiting_for_approval"
	StatusCanceled            ProcessingStatus = "canceled"
)

type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationPassed  ValidationStatus = "passed"
	ValidationFailed  ValidationStatus = "failed"
)

type NewEntitiesStatus string

const (
	NewEntitiesNone     NewEntitiesStatus = "none"
	NewEntitiesPending  NewEntitiesStatus = "pending"
	NewEntitiesApproved NewEntitiesStatus = "approved"
	NewEntitiesRejected NewEntitiesStatus = "rejected"
)

// RowError is the typed per-row error shape from spec.md §4.C, also used
// for group errors (§4.D) with Field left empty.
type RowError struct {
	RowNumber       int    `json:"rowNumber"`
	Field           string `json:"field,omitempty"`
	ErrorCode       string `json:"errorCode"`
	Severity        string `json:"severity"`
	Message         string `json:"message"`
	SuggestedAction string `json:"suggestedAction,omitempty"`
	Value           string `json:"value,omitempty"`
}

type UploadBatch struct {
	ID                  uuid.UUID
	BatchNumber          string
	FileName             string
	FileSize             int64
	FilePath             string
	ProcessingStatus     ProcessingStatus
	ValidationStatus     ValidationStatus
	TotalRecords         int
	ProcessedRecords     int
	FailedRecords        int
	ValidationErrors     []RowError
	ValidationWarnings   []RowError
	NewEntitiesReport    *NewEntitiesReport
	NewEntitiesStatus    NewEntitiesStatus
	TotalAmount          money.Amount
	UploadedBy           string
	ApprovedBy           string
	CreatedAt            time.Time
	ProcessingStartedAt  *time.Time
	ProcessingCompletedAt *time.Time
}

// NewEntitySummary is the §4.E per-entity summary shape.
type NewEntitySummary struct {
	Key              string       `json:"key"`
	TransactionCount int          `json:"transactionCount"`
	TotalAmount      money.Amount `json:"totalAmount"`
}

type NewGoalSummary struct {
	NewEntitySummary
	FundDistribution map[string]float64 `json:"fundDistribution"`
}

type NewEntitiesReport struct {
	NewClients  []NewEntitySummary `json:"newClients"`
	NewAccounts []NewEntitySummary `json:"newAccounts"`
	NewGoals    []NewGoalSummary   `json:"newGoals"`
}

type InvalidFundTransaction struct {
	ID            uuid.UUID
	UploadBatchID uuid.UUID
	RowNumber     int
	RawData       map[string]string
	Errors        []RowError
}

// BankUploadBatch mirrors UploadBatch for the bank feed.
type BankUploadBatch struct {
	UploadBatch
}

type ReconciliationStatus string

const (
	ReconPending        ReconciliationStatus = "pending"
	ReconMatched        ReconciliationStatus = "matched"
	ReconMissingInFund  ReconciliationStatus = "missing_in_fund"
	ReconMissingInBank  ReconciliationStatus = "missing_in_bank"
)

type ReviewTag string

const (
	ReviewTagReversalNetted ReviewTag = "reversal_netted"
)

type BankGoalTransaction struct {
	ID                        uuid.UUID
	UploadBatchID             uuid.UUID
	GoalID                    *uuid.UUID
	GoalNumber                string
	AccountNumber             string
	ClientName                string
	TransactionDate           time.Time
	TotalAmount               money.Amount
	PerFundPercent            map[FundCode]float64
	PerFundAmount             map[FundCode]money.Amount
	Type                      BankTransactionType
	TransactionID             string
	ReconciliationStatus      ReconciliationStatus
	MatchedGoalTransactionCode string
	MatchingScore             float64
	ReviewTag                 ReviewTag
	RowNumber                 int
}

type VarianceType string

const (
	VarianceTotalAmountMismatch    VarianceType = "total_amount_mismatch"
	VarianceFundDistribution       VarianceType = "fund_distribution_mismatch"
	VarianceDateMismatch           VarianceType = "date_mismatch"
	VarianceMissingInBank          VarianceType = "missing_in_bank"
	VarianceMissingInFundSystem    VarianceType = "missing_in_fund_system"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type ResolutionStatus string

const (
	ResolutionPending  ResolutionStatus = "pending"
	ResolutionApproved ResolutionStatus = "approved"
	ResolutionDisputed ResolutionStatus = "disputed"
	ResolutionResolved ResolutionStatus = "resolved"
)

type ReconciliationVariance struct {
	ID uuid.UUID
	// BankGoalTransactionID is nil for missing_in_bank variances, which
	// have a fund-side code but no bank row to anchor to.
	BankGoalTransactionID   *uuid.UUID
	FundGoalTransactionCode string
	Type                    VarianceType
	Severity                Severity
	AmountDelta             money.Amount
	FundDeltas              map[FundCode]money.Amount
	DateDeltaDays           int
	ResolutionStatus        ResolutionStatus
	AutoApproved            bool
	Reviewer                string
	Notes                   string
	CreatedAt               time.Time
	ResolvedAt              *time.Time
}

// GoalTransactionAggregateRow is one row of the §4.J GoalTransactionsAggregate
// materialized read model.
type GoalTransactionAggregateRow struct {
	Code            string
	TransactionDate time.Time
	ClientName      string
	AccountNumber   string
	GoalNumber      string
	TotalAmount     money.Amount
	PerFundAmount   map[FundCode]money.Amount
	FundCount       int
	DepositCount    int
	WithdrawalCount int
}

// AccountUnitBalanceRow is one row of the §4.J AccountUnitBalancesAggregate.
type AccountUnitBalanceRow struct {
	AccountID           uuid.UUID
	ClientName          string
	AccountNumber       string
	AccountType         AccountType
	AccountCategory     AccountCategory
	PerFundUnits        map[FundCode]money.Units
	TotalUnits          money.Units
	LastTransactionDate time.Time
}
