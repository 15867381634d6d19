/*
Package sqlite provides a SQLite-backed implementation of the rule store.

PURPOSE:
  Implements commission.RuleStore plus durable persistence of computed
  allocation results. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  commission.RuleStore: Rule reads, snapshot views, validated writes

KEY TABLES:
  total_rules:        Agency retention rules (one row per rule, versioned)
  distribution_rules: Split rules with participants serialized as JSON
  allocations:        Computed commission breakdowns saved by the sale flow

LINK UNIQUENESS:
  "At most one ACTIVE distribution per total rule" is enforced twice: the
  write path raises a typed ConflictingLinkError inside the transaction,
  and a partial unique index backs it so no code path can persist a second
  active link.

SNAPSHOTS:
  View() runs the callback inside a read transaction, so resolution always
  sees a consistent pairing of total rules and distributions.

CONCURRENCY:
  Uses sync.RWMutex alongside SQLite WAL mode. Conflicting authoring edits
  to the same rule are additionally caught by optimistic versioning.

USAGE:
  store, err := sqlite.New("./data/commissions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := commission.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - commission/store.go: Interface definitions and invariants
  - commission/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/imovia/commission-engine/commission"
)

// Store implements the rule store and allocation persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Compile-time check that Store implements the full store contract
var _ commission.RuleStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Total commission rules (agency retention)
	CREATE TABLE IF NOT EXISTS total_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		product_type TEXT NOT NULL,
		percent TEXT NOT NULL,
		status TEXT NOT NULL,
		window_start TEXT,
		window_end TEXT,
		development_id TEXT,
		product_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_total_rules_product_type
		ON total_rules(product_type);
	CREATE INDEX IF NOT EXISTS idx_total_rules_status
		ON total_rules(status);

	-- Override lookups (resolver precedence tiers)
	CREATE INDEX IF NOT EXISTS idx_total_rules_product_override
		ON total_rules(product_id) WHERE product_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_total_rules_development_override
		ON total_rules(development_id) WHERE development_id IS NOT NULL;

	-- Distribution rules (split of the retained amount)
	CREATE TABLE IF NOT EXISTS distribution_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		total_rule_id TEXT NOT NULL REFERENCES total_rules(id),
		status TEXT NOT NULL,
		participants_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_distribution_rules_total
		ON distribution_rules(total_rule_id);

	-- At most one ACTIVE distribution per total rule
	CREATE UNIQUE INDEX IF NOT EXISTS idx_distribution_rules_active_link
		ON distribution_rules(total_rule_id) WHERE status = 'active';

	-- Computed allocations saved by the sale workflow
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		total_rule_id TEXT NOT NULL,
		distribution_rule_id TEXT NOT NULL,
		product_type TEXT NOT NULL,
		product_id TEXT NOT NULL,
		development_id TEXT,
		sale_date TEXT NOT NULL,
		sale_value TEXT NOT NULL,
		retained_amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		lines_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_product
		ON allocations(product_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_sale_date
		ON allocations(sale_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx, so the row-scanning
// helpers serve direct reads and snapshot views alike.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// SNAPSHOT READS
// =============================================================================

// View runs fn inside a transaction so it observes a consistent pairing of
// total rules and distributions. The transaction only ever reads and is
// always rolled back; the driver does not support TxOptions.ReadOnly.
func (s *Store) View(ctx context.Context, fn func(commission.Snapshot) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&snapshotView{q: tx})
}

func (s *Store) TotalRule(ctx context.Context, id commission.RuleID) (*commission.TotalCommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&snapshotView{q: s.db}).TotalRule(ctx, id)
}

func (s *Store) TotalRulesByProductType(ctx context.Context, pt commission.ProductType) ([]commission.TotalCommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&snapshotView{q: s.db}).TotalRulesByProductType(ctx, pt)
}

func (s *Store) DistributionRule(ctx context.Context, id commission.RuleID) (*commission.DistributionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&snapshotView{q: s.db}).DistributionRule(ctx, id)
}

func (s *Store) DistributionsByTotalRule(ctx context.Context, totalID commission.RuleID) ([]commission.DistributionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&snapshotView{q: s.db}).DistributionsByTotalRule(ctx, totalID)
}

func (s *Store) ListTotalRules(ctx context.Context) ([]commission.TotalCommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTotalRules(ctx, s.db, `SELECT `+totalRuleColumns+` FROM total_rules ORDER BY id`)
}

func (s *Store) ListDistributionRules(ctx context.Context) ([]commission.DistributionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryDistributionRules(ctx, s.db, `SELECT `+distRuleColumns+` FROM distribution_rules ORDER BY id`)
}

// snapshotView implements commission.Snapshot over a queryer. When backed by
// a read transaction all queries see the same database state.
type snapshotView struct {
	q queryer
}

const totalRuleColumns = `id, name, description, product_type, percent, status,
	window_start, window_end, development_id, product_id, version`

const distRuleColumns = `id, name, description, total_rule_id, status, participants_json, version`

func (v *snapshotView) TotalRule(ctx context.Context, id commission.RuleID) (*commission.TotalCommissionRule, error) {
	rules, err := queryTotalRules(ctx, v.q,
		`SELECT `+totalRuleColumns+` FROM total_rules WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, commission.ErrRuleNotFound
	}
	return &rules[0], nil
}

func (v *snapshotView) TotalRulesByProductType(ctx context.Context, pt commission.ProductType) ([]commission.TotalCommissionRule, error) {
	return queryTotalRules(ctx, v.q,
		`SELECT `+totalRuleColumns+` FROM total_rules WHERE product_type = ? ORDER BY id`, pt)
}

func (v *snapshotView) DistributionRule(ctx context.Context, id commission.RuleID) (*commission.DistributionRule, error) {
	rules, err := queryDistributionRules(ctx, v.q,
		`SELECT `+distRuleColumns+` FROM distribution_rules WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, commission.ErrRuleNotFound
	}
	return &rules[0], nil
}

func (v *snapshotView) DistributionsByTotalRule(ctx context.Context, totalID commission.RuleID) ([]commission.DistributionRule, error) {
	return queryDistributionRules(ctx, v.q,
		`SELECT `+distRuleColumns+` FROM distribution_rules WHERE total_rule_id = ? ORDER BY id`, totalID)
}

// =============================================================================
// WRITE PATH
// =============================================================================

// SaveTotalRule creates or updates a total-commission rule with optimistic
// version checking.
func (s *Store) SaveTotalRule(ctx context.Context, rule commission.TotalCommissionRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var windowStart, windowEnd any
	if rule.Window != nil {
		windowStart = rule.Window.Start.Format("2006-01-02")
		windowEnd = rule.Window.End.Format("2006-01-02")
	}
	now := time.Now().UTC().Format(time.RFC3339)

	var current int
	err = tx.QueryRowContext(ctx, `SELECT version FROM total_rules WHERE id = ?`, rule.ID).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		if rule.Version != 0 {
			return commission.ErrConcurrentModification
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO total_rules
			(id, name, description, product_type, percent, status,
			 window_start, window_end, development_id, product_id, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			rule.ID, rule.Name, rule.Description, rule.ProductType, rule.Percent.String(), rule.Status,
			windowStart, windowEnd, nullString(rule.DevelopmentID), nullString(rule.ProductID), now, now)
	case err != nil:
		return fmt.Errorf("failed to read total rule version: %w", err)
	default:
		if rule.Version != current {
			return commission.ErrConcurrentModification
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE total_rules
			SET name = ?, description = ?, product_type = ?, percent = ?, status = ?,
			    window_start = ?, window_end = ?, development_id = ?, product_id = ?,
			    version = version + 1, updated_at = ?
			WHERE id = ?`,
			rule.Name, rule.Description, rule.ProductType, rule.Percent.String(), rule.Status,
			windowStart, windowEnd, nullString(rule.DevelopmentID), nullString(rule.ProductID), now, rule.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save total rule: %w", err)
	}

	return tx.Commit()
}

// SaveDistributionRule creates or updates a distribution rule, enforcing
// referential integrity and active-link uniqueness inside one transaction.
func (s *Store) SaveDistributionRule(ctx context.Context, rule commission.DistributionRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM total_rules WHERE id = ?`, rule.TotalRuleID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check total rule: %w", err)
	}
	if exists == 0 {
		return commission.ErrRuleNotFound
	}

	if rule.Status == commission.StatusActive {
		var existingID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM distribution_rules
			WHERE total_rule_id = ? AND status = 'active' AND id <> ?`,
			rule.TotalRuleID, rule.ID).Scan(&existingID)
		switch {
		case err == nil:
			return &commission.ConflictingLinkError{
				TotalRuleID: rule.TotalRuleID,
				ExistingID:  commission.RuleID(existingID),
				RejectedID:  rule.ID,
			}
		case err != sql.ErrNoRows:
			return fmt.Errorf("failed to check active link: %w", err)
		}
	}

	participantsJSON, err := json.Marshal(rule.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	var current int
	err = tx.QueryRowContext(ctx, `SELECT version FROM distribution_rules WHERE id = ?`, rule.ID).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		if rule.Version != 0 {
			return commission.ErrConcurrentModification
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO distribution_rules
			(id, name, description, total_rule_id, status, participants_json, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			rule.ID, rule.Name, rule.Description, rule.TotalRuleID, rule.Status, string(participantsJSON), now, now)
	case err != nil:
		return fmt.Errorf("failed to read distribution rule version: %w", err)
	default:
		if rule.Version != current {
			return commission.ErrConcurrentModification
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE distribution_rules
			SET name = ?, description = ?, total_rule_id = ?, status = ?,
			    participants_json = ?, version = version + 1, updated_at = ?
			WHERE id = ?`,
			rule.Name, rule.Description, rule.TotalRuleID, rule.Status, string(participantsJSON), now, rule.ID)
	}
	if err != nil {
		// The partial unique index backs the explicit check above.
		if isUniqueConstraintError(err) {
			return commission.ErrConflictingLink
		}
		return fmt.Errorf("failed to save distribution rule: %w", err)
	}

	return tx.Commit()
}

// =============================================================================
// ALLOCATION RECORDS - Persisted results from the sale workflow
// =============================================================================

// AllocationRecord is a saved commission computation.
type AllocationRecord struct {
	ID        string
	Sale      commission.SaleContext
	Result    commission.AllocationResult
	CreatedAt time.Time
}

// SaveAllocation persists a computed allocation with its line items.
func (s *Store) SaveAllocation(ctx context.Context, rec AllocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	linesJSON, err := json.Marshal(rec.Result.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode allocation lines: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO allocations
		(id, total_rule_id, distribution_rule_id, product_type, product_id, development_id,
		 sale_date, sale_value, retained_amount, currency, lines_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Result.TotalRuleID, rec.Result.DistributionRuleID,
		rec.Sale.ProductType, rec.Sale.ProductID, nullString(rec.Sale.DevelopmentID),
		rec.Sale.SaleDate.Format("2006-01-02"), rec.Sale.SaleValue.Value.String(),
		rec.Result.RetainedAmount.Value.String(), rec.Sale.SaleValue.Currency,
		string(linesJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save allocation: %w", err)
	}
	return nil
}

// ListAllocations returns saved allocations, newest first, optionally
// filtered by product id.
func (s *Store) ListAllocations(ctx context.Context, productID string) ([]AllocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, total_rule_id, distribution_rule_id, product_type, product_id, development_id,
		       sale_date, sale_value, retained_amount, currency, lines_json, created_at
		FROM allocations`
	args := []any{}
	if productID != "" {
		query += ` WHERE product_id = ?`
		args = append(args, productID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var records []AllocationRecord
	for rows.Next() {
		var (
			rec                 AllocationRecord
			developmentID       sql.NullString
			saleDate, createdAt string
			saleValue, retained string
			currency            string
			linesJSON           string
		)
		if err := rows.Scan(&rec.ID,
			(*string)(&rec.Result.TotalRuleID), (*string)(&rec.Result.DistributionRuleID),
			(*string)(&rec.Sale.ProductType), &rec.Sale.ProductID, &developmentID,
			&saleDate, &saleValue, &retained, &currency, &linesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		rec.Sale.DevelopmentID = developmentID.String
		rec.Sale.SaleDate, _ = time.Parse("2006-01-02", saleDate)
		rec.Sale.SaleValue = commission.Money{Value: commission.MustParseDecimal(saleValue), Currency: commission.Currency(currency)}
		rec.Result.RetainedAmount = commission.Money{Value: commission.MustParseDecimal(retained), Currency: commission.Currency(currency)}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if err := json.Unmarshal([]byte(linesJSON), &rec.Result.Lines); err != nil {
			return nil, fmt.Errorf("failed to decode allocation lines: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Reset clears all rule and allocation data. Demo/dev environments only;
// the scenario loader calls this before seeding.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"allocations", "distribution_rules", "total_rules"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// ROW SCANNING
// =============================================================================

func queryTotalRules(ctx context.Context, q queryer, query string, args ...any) ([]commission.TotalCommissionRule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query total rules: %w", err)
	}
	defer rows.Close()

	var rules []commission.TotalCommissionRule
	for rows.Next() {
		var (
			rule                     commission.TotalCommissionRule
			description              sql.NullString
			percent                  string
			windowStart, windowEnd   sql.NullString
			developmentID, productID sql.NullString
		)
		if err := rows.Scan((*string)(&rule.ID), &rule.Name, &description,
			(*string)(&rule.ProductType), &percent, (*string)(&rule.Status),
			&windowStart, &windowEnd, &developmentID, &productID, &rule.Version); err != nil {
			return nil, fmt.Errorf("failed to scan total rule: %w", err)
		}
		rule.Description = description.String
		rule.Percent = commission.MustParseDecimal(percent)
		rule.DevelopmentID = developmentID.String
		rule.ProductID = productID.String
		if windowStart.Valid && windowEnd.Valid {
			start, err := time.Parse("2006-01-02", windowStart.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse window start: %w", err)
			}
			end, err := time.Parse("2006-01-02", windowEnd.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse window end: %w", err)
			}
			rule.Window = &commission.ValidityWindow{Start: start, End: end}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func queryDistributionRules(ctx context.Context, q queryer, query string, args ...any) ([]commission.DistributionRule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution rules: %w", err)
	}
	defer rows.Close()

	var rules []commission.DistributionRule
	for rows.Next() {
		var (
			rule             commission.DistributionRule
			description      sql.NullString
			participantsJSON string
		)
		if err := rows.Scan((*string)(&rule.ID), &rule.Name, &description,
			(*string)(&rule.TotalRuleID), (*string)(&rule.Status), &participantsJSON, &rule.Version); err != nil {
			return nil, fmt.Errorf("failed to scan distribution rule: %w", err)
		}
		rule.Description = description.String
		if err := json.Unmarshal([]byte(participantsJSON), &rule.Participants); err != nil {
			return nil, fmt.Errorf("failed to decode participants: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
