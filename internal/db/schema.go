package db

// Schema is the full DDL for the trustrecon data model (spec.md §3). It is
// applied once at startup by cmd/ingest-worker, the same way the reference
// loader's bootstrap step runs its CREATE TABLE statements before the first
// COPY.
const Schema = `
CREATE TABLE IF NOT EXISTS clients (
	id uuid PRIMARY KEY,
	name text NOT NULL UNIQUE,
	status text NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS accounts (
	id uuid PRIMARY KEY,
	client_id uuid NOT NULL REFERENCES clients(id),
	account_number text NOT NULL UNIQUE,
	type text NOT NULL,
	category text NOT NULL,
	sponsor_code text,
	status text NOT NULL DEFAULT 'active',
	opened_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS goals (
	id uuid PRIMARY KEY,
	account_id uuid NOT NULL REFERENCES accounts(id),
	goal_number text NOT NULL UNIQUE,
	title text NOT NULL,
	type text NOT NULL,
	risk_tolerance text NOT NULL,
	fund_distribution jsonb NOT NULL DEFAULT '{}',
	status text NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS funds (
	id uuid PRIMARY KEY,
	fund_code text NOT NULL UNIQUE,
	name text NOT NULL,
	status text NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS fund_prices (
	fund_id uuid NOT NULL REFERENCES funds(id),
	price_date date NOT NULL,
	bid numeric(20,2) NOT NULL,
	mid numeric(20,2) NOT NULL,
	offer numeric(20,2) NOT NULL,
	PRIMARY KEY (fund_id, price_date)
);

CREATE TABLE IF NOT EXISTS upload_batches (
	id uuid PRIMARY KEY,
	batch_number text NOT NULL UNIQUE,
	file_name text NOT NULL,
	file_size bigint NOT NULL,
	file_path text NOT NULL,
	processing_status text NOT NULL DEFAULT 'queued',
	validation_status text NOT NULL DEFAULT 'pending',
	total_records int NOT NULL DEFAULT 0,
	processed_records int NOT NULL DEFAULT 0,
	failed_records int NOT NULL DEFAULT 0,
	validation_errors jsonb NOT NULL DEFAULT '[]',
	validation_warnings jsonb NOT NULL DEFAULT '[]',
	new_entities_report jsonb,
	new_entities_status text NOT NULL DEFAULT 'none',
	total_amount numeric(20,2) NOT NULL DEFAULT 0,
	uploaded_by text NOT NULL,
	approved_by text,
	created_at timestamptz NOT NULL DEFAULT now(),
	processing_started_at timestamptz,
	processing_completed_at timestamptz
);

CREATE TABLE IF NOT EXISTS fund_transactions (
	id uuid PRIMARY KEY,
	fund_transaction_id text NOT NULL,
	goal_transaction_code text NOT NULL,
	transaction_id text NOT NULL,
	source text NOT NULL,
	client_id uuid NOT NULL REFERENCES clients(id),
	account_id uuid NOT NULL REFERENCES accounts(id),
	goal_id uuid NOT NULL REFERENCES goals(id),
	fund_id uuid NOT NULL REFERENCES funds(id),
	upload_batch_id uuid NOT NULL REFERENCES upload_batches(id),
	transaction_date date NOT NULL,
	date_created timestamptz NOT NULL DEFAULT now(),
	type text NOT NULL,
	amount numeric(20,2) NOT NULL,
	units numeric(20,4) NOT NULL,
	bid numeric(20,2) NOT NULL,
	mid numeric(20,2) NOT NULL,
	offer numeric(20,2) NOT NULL,
	price_date date NOT NULL,
	row_number int NOT NULL,
	UNIQUE (upload_batch_id, row_number)
);

CREATE INDEX IF NOT EXISTS fund_transactions_goal_code_idx ON fund_transactions (goal_transaction_code);

CREATE TABLE IF NOT EXISTS invalid_fund_transactions (
	id uuid PRIMARY KEY,
	upload_batch_id uuid NOT NULL REFERENCES upload_batches(id),
	row_number int NOT NULL,
	raw_data jsonb NOT NULL,
	errors jsonb NOT NULL,
	UNIQUE (upload_batch_id, row_number)
);

CREATE TABLE IF NOT EXISTS bank_upload_batches (
	id uuid PRIMARY KEY,
	batch_number text NOT NULL UNIQUE,
	file_name text NOT NULL,
	file_size bigint NOT NULL,
	file_path text NOT NULL,
	processing_status text NOT NULL DEFAULT 'queued',
	validation_status text NOT NULL DEFAULT 'pending',
	total_records int NOT NULL DEFAULT 0,
	processed_records int NOT NULL DEFAULT 0,
	failed_records int NOT NULL DEFAULT 0,
	validation_errors jsonb NOT NULL DEFAULT '[]',
	validation_warnings jsonb NOT NULL DEFAULT '[]',
	total_amount numeric(20,2) NOT NULL DEFAULT 0,
	uploaded_by text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	processing_started_at timestamptz,
	processing_completed_at timestamptz
);

CREATE TABLE IF NOT EXISTS bank_goal_transactions (
	id uuid PRIMARY KEY,
	upload_batch_id uuid NOT NULL REFERENCES bank_upload_batches(id),
	goal_id uuid REFERENCES goals(id),
	goal_number text NOT NULL,
	account_number text NOT NULL,
	client_name text NOT NULL,
	transaction_date date NOT NULL,
	total_amount numeric(20,2) NOT NULL,
	per_fund_percent jsonb NOT NULL DEFAULT '{}',
	per_fund_amount jsonb NOT NULL DEFAULT '{}',
	type text NOT NULL,
	transaction_id text,
	reconciliation_status text NOT NULL DEFAULT 'pending',
	matched_goal_transaction_code text,
	matching_score double precision NOT NULL DEFAULT 0,
	review_tag text,
	row_number int NOT NULL,
	UNIQUE (upload_batch_id, row_number)
);

CREATE INDEX IF NOT EXISTS bank_goal_transactions_recon_status_idx ON bank_goal_transactions (reconciliation_status);

CREATE TABLE IF NOT EXISTS reconciliation_variances (
	id uuid PRIMARY KEY,
	bank_goal_transaction_id uuid REFERENCES bank_goal_transactions(id),
	fund_goal_transaction_code text NOT NULL,
	type text NOT NULL,
	severity text NOT NULL,
	amount_delta numeric(20,2) NOT NULL DEFAULT 0,
	fund_deltas jsonb NOT NULL DEFAULT '{}',
	date_delta_days int NOT NULL DEFAULT 0,
	resolution_status text NOT NULL DEFAULT 'pending',
	auto_approved boolean NOT NULL DEFAULT false,
	reviewer text,
	notes text,
	created_at timestamptz NOT NULL DEFAULT now(),
	resolved_at timestamptz
);

CREATE INDEX IF NOT EXISTS reconciliation_variances_status_idx ON reconciliation_variances (resolution_status);

CREATE TABLE IF NOT EXISTS goal_transactions_aggregate (
	code text PRIMARY KEY,
	transaction_date date NOT NULL,
	client_name text NOT NULL,
	account_number text NOT NULL,
	goal_number text NOT NULL,
	total_amount numeric(20,2) NOT NULL,
	per_fund_amount jsonb NOT NULL DEFAULT '{}',
	fund_count int NOT NULL DEFAULT 0,
	deposit_count int NOT NULL DEFAULT 0,
	withdrawal_count int NOT NULL DEFAULT 0,
	refreshed_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS account_unit_balances_aggregate (
	account_id uuid PRIMARY KEY REFERENCES accounts(id),
	client_name text NOT NULL,
	account_number text NOT NULL,
	account_type text NOT NULL,
	account_category text NOT NULL,
	per_fund_units jsonb NOT NULL DEFAULT '{}',
	total_units numeric(20,4) NOT NULL,
	last_transaction_date date,
	refreshed_at timestamptz NOT NULL DEFAULT now()
);
`
