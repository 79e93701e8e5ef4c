package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"go.uber.org/zap"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTableName rejects anything but schema.table identifiers, since the
// ledger table name is interpolated into SQL
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid ledger table name %q", name)
	}
	return nil
}

// ledgerRow is one mirrored ledger row as scanned. Identifiers are converted to text
// in SQL to avoid the driver's mixed-endian uniqueidentifier bytes.
type ledgerRow struct {
	ID          string
	LeadID      string
	FromStageID sql.NullString
	ToStageID   string
	FromFunnel  sql.NullString
	ToFunnel    string
	Reason      sql.NullString
	MovedAt     time.Time
}

func (r ledgerRow) toDomain() (domain.LeadStageHistory, error) {
	var out domain.LeadStageHistory
	var err error

	if out.ID, err = uuid.Parse(r.ID); err != nil {
		return out, fmt.Errorf("id %q: %w", r.ID, err)
	}
	if out.LeadID, err = uuid.Parse(r.LeadID); err != nil {
		return out, fmt.Errorf("lead_id %q: %w", r.LeadID, err)
	}
	if out.ToStageID, err = uuid.Parse(r.ToStageID); err != nil {
		return out, fmt.Errorf("to_stage_id %q: %w", r.ToStageID, err)
	}
	if r.FromStageID.Valid && r.FromStageID.String != "" {
		id, err := uuid.Parse(r.FromStageID.String)
		if err != nil {
			return out, fmt.Errorf("from_stage_id %q: %w", r.FromStageID.String, err)
		}
		out.FromStageID = &id
	}

	out.ToFunnel = domain.FunnelType(strings.ToLower(r.ToFunnel))
	if !out.ToFunnel.IsValid() {
		return out, fmt.Errorf("to_funnel %q is not a known pipeline", r.ToFunnel)
	}
	if r.FromFunnel.Valid && r.FromFunnel.String != "" {
		ft := domain.FunnelType(strings.ToLower(r.FromFunnel.String))
		out.FromFunnel = &ft
	}
	out.Reason = r.Reason.String
	out.MovedAt = r.MovedAt.UTC()
	return out, nil
}

// LedgerMirror serves stage transitions from the warehouse copy of the ledger.
// The mirror carries brand_id and funnel_id denormalized from leads.
type LedgerMirror struct {
	client *Client
	table  string
	logger *zap.Logger
}

// NewLedgerMirror validates the table name and binds it to the client
func NewLedgerMirror(client *Client, table string, logger *zap.Logger) (*LedgerMirror, error) {
	if !client.IsEnabled() {
		return nil, fmt.Errorf("warehouse client is not enabled")
	}
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	return &LedgerMirror{client: client, table: table, logger: logger}, nil
}

// buildTransitionQuery mirrors the primary ledger query: every row of each lead that
// moved inside the window, ordered by lead then moved_at
func buildTransitionQuery(table string, q analytics.TransitionQuery) (string, []interface{}) {
	args := []interface{}{sql.Named("from", q.From), sql.Named("to", q.To)}
	filter := ""
	if q.BrandID != nil {
		filter += " AND w.brand_id = @brand"
		args = append(args, sql.Named("brand", q.BrandID.String()))
	}
	if q.FunnelID != nil {
		filter += " AND w.funnel_id = @funnel"
		args = append(args, sql.Named("funnel", q.FunnelID.String()))
	}

	query := fmt.Sprintf(`SELECT
	CONVERT(varchar(36), h.id), CONVERT(varchar(36), h.lead_id),
	CONVERT(varchar(36), h.from_stage_id), CONVERT(varchar(36), h.to_stage_id),
	h.from_funnel, h.to_funnel, h.reason, h.moved_at
FROM %[1]s h
WHERE h.lead_id IN (
	SELECT DISTINCT w.lead_id FROM %[1]s w
	WHERE w.moved_at >= @from AND w.moved_at <= @to%[2]s
)
ORDER BY h.lead_id, h.moved_at`, table, filter)
	return query, args
}

// QueryTransitions implements analytics.TransitionSource
func (m *LedgerMirror) QueryTransitions(ctx context.Context, q analytics.TransitionQuery) ([]domain.LeadStageHistory, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.client.queryTimeout)
		defer cancel()
	}

	query, args := buildTransitionQuery(m.table, q)
	start := time.Now()

	rows, err := m.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		m.logger.Error("Warehouse ledger query failed",
			zap.Error(err),
			zap.String("query", truncateQuery(query, 200)),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("warehouse ledger query: %w", err)
	}
	defer rows.Close()

	var out []domain.LeadStageHistory
	for rows.Next() {
		var r ledgerRow
		if err := rows.Scan(&r.ID, &r.LeadID, &r.FromStageID, &r.ToStageID, &r.FromFunnel, &r.ToFunnel, &r.Reason, &r.MovedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		entry, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("malformed ledger row: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}

	m.logger.Debug("Warehouse ledger query completed",
		zap.Int("rows_returned", len(out)),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}
