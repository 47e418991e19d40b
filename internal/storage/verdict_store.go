package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stoik/phishd/internal/domain"
)

// VerdictStore persists Verdicts and their post-hoc actions: raw SQL,
// upsert on conflict, scan into the domain type directly, with reasons
// encoded as a JSON TEXT blob.
type VerdictStore struct {
	db *Database
}

func NewVerdictStore(db *Database) *VerdictStore {
	return &VerdictStore{db: db}
}

func encodeReasons(reasons []domain.CheckResult) (string, error) {
	if reasons == nil {
		reasons = []domain.CheckResult{}
	}
	b, err := json.Marshal(reasons)
	if err != nil {
		return "", fmt.Errorf("encode reasons: %w", err)
	}
	return string(b), nil
}

func decodeReasons(raw string) ([]domain.CheckResult, error) {
	var reasons []domain.CheckResult
	if raw == "" {
		return reasons, nil
	}
	if err := json.Unmarshal([]byte(raw), &reasons); err != nil {
		return nil, fmt.Errorf("decode reasons: %w", err)
	}
	return reasons, nil
}

// Save inserts or overwrites the verdict for v.MessageID.
func (s *VerdictStore) Save(ctx context.Context, v domain.Verdict) error {
	reasonsJSON, err := encodeReasons(v.Reasons)
	if err != nil {
		return err
	}
	var action *string
	if v.ActionTaken != nil {
		a := string(*v.ActionTaken)
		action = &a
	}
	var imapUID *int64
	if v.IMAPUID != nil {
		u := int64(*v.IMAPUID)
		imapUID = &u
	}

	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO verdicts (messageId, score, reasons_json, timestamp, actionTaken, "from", subject, receivedDate, imapUID)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(messageId) DO UPDATE SET
			score = excluded.score,
			reasons_json = excluded.reasons_json,
			timestamp = excluded.timestamp,
			actionTaken = excluded.actionTaken,
			"from" = excluded."from",
			subject = excluded.subject,
			receivedDate = excluded.receivedDate,
			imapUID = excluded.imapUID
	`, v.MessageID, v.Score, reasonsJSON, v.Timestamp, action, v.From, v.Subject, v.ReceivedDate, imapUID)
	if err != nil {
		return fmt.Errorf("save verdict %s: %w", v.MessageID, err)
	}
	return nil
}

func scanVerdict(row interface {
	Scan(dest ...any) error
}) (domain.Verdict, error) {
	var v domain.Verdict
	var reasonsJSON string
	var action sql.NullString
	var from, subject sql.NullString
	var receivedDate sql.NullTime
	var imapUID sql.NullInt64

	if err := row.Scan(&v.MessageID, &v.Score, &reasonsJSON, &v.Timestamp, &action, &from, &subject, &receivedDate, &imapUID); err != nil {
		return domain.Verdict{}, err
	}

	reasons, err := decodeReasons(reasonsJSON)
	if err != nil {
		return domain.Verdict{}, err
	}
	v.Reasons = reasons
	if action.Valid {
		a := domain.Action(action.String)
		v.ActionTaken = &a
	}
	v.From = from.String
	v.Subject = subject.String
	if receivedDate.Valid {
		v.ReceivedDate = receivedDate.Time
	}
	if imapUID.Valid {
		u := uint32(imapUID.Int64)
		v.IMAPUID = &u
	}
	return v, nil
}

const verdictColumnsSQL = `messageId, score, reasons_json, timestamp, actionTaken, "from", subject, receivedDate, imapUID`

// Lookup returns the verdict for messageID, or (nil, nil) if none was saved.
func (s *VerdictStore) Lookup(ctx context.Context, messageID string) (*domain.Verdict, error) {
	row := s.db.db.QueryRowContext(ctx, `SELECT `+verdictColumnsSQL+` FROM verdicts WHERE messageId = ?`, messageID)
	v, err := scanVerdict(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup verdict %s: %w", messageID, err)
	}
	return &v, nil
}

// Defaults applied by RecentVerdicts when the caller passes non-positive
// values.
const (
	defaultRecentLimit    = 20
	defaultRecentMinScore = 3
)

// RecentVerdicts returns up to limit still-open verdicts (no action taken
// yet) scoring at least minimumScore, most recent first. limit <= 0 selects
// the default of 20; minimumScore < 0 selects the default of 3.
func (s *VerdictStore) RecentVerdicts(ctx context.Context, limit int, minimumScore int) ([]domain.Verdict, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if minimumScore < 0 {
		minimumScore = defaultRecentMinScore
	}
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+verdictColumnsSQL+` FROM verdicts WHERE actionTaken IS NULL AND score >= ? ORDER BY timestamp DESC LIMIT ?`,
		minimumScore, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent verdicts: %w", err)
	}
	defer rows.Close()

	var out []domain.Verdict
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateAction records the action taken on a previously saved verdict.
func (s *VerdictStore) UpdateAction(ctx context.Context, messageID string, action domain.Action) error {
	res, err := s.db.db.ExecContext(ctx, `UPDATE verdicts SET actionTaken = ? WHERE messageId = ?`, string(action), messageID)
	if err != nil {
		return fmt.Errorf("update action for %s: %w", messageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", messageID, err)
	}
	if n == 0 {
		return fmt.Errorf("update action: no verdict for message %s", messageID)
	}
	return nil
}

// MarkDomainSafe marks every open verdict whose From header contains
// "@"+domain as ActionMarkedSafe, and returns the count updated. It does not
// itself add the domain to the allowlist -- that is a separate, explicit
// AllowlistStore.Add.
func (s *VerdictStore) MarkDomainSafe(ctx context.Context, domainName string) (int, error) {
	res, err := s.db.db.ExecContext(ctx,
		`UPDATE verdicts SET actionTaken = ? WHERE "from" LIKE ? AND actionTaken IS NULL`,
		string(domain.ActionMarkedSafe), "%@"+domainName+"%")
	if err != nil {
		return 0, fmt.Errorf("mark domain safe %s: %w", domainName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Delete removes the verdict for messageID.
func (s *VerdictStore) Delete(ctx context.Context, messageID string) error {
	if _, err := s.db.db.ExecContext(ctx, `DELETE FROM verdicts WHERE messageId = ?`, messageID); err != nil {
		return fmt.Errorf("delete verdict %s: %w", messageID, err)
	}
	return nil
}

// PurgeOld deletes verdicts older than `days` days and returns the count removed.
func (s *VerdictStore) PurgeOld(ctx context.Context, days int) (int, error) {
	cutoff := now().AddDate(0, 0, -days)
	res, err := s.db.db.ExecContext(ctx, `DELETE FROM verdicts WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old verdicts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
