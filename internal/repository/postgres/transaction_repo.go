// Package postgres implements the Transaction/Wallet/ChargeSchedule
// repositories on pgx/v5, with row-level locking for the concurrency model
// of spec §5.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionRepository persists Transaction aggregates in the
// `transactions` table (spec §6 Persisted state).
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository wraps a pgx pool.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

type chargeDataRow struct {
	ChargeSettingID string `json:"charge_setting_id"`
	VersionID       string `json:"version_id"`
	VersionNumber   int    `json:"version_number"`
	ChargeAmount    string `json:"charge_amount"`
	Sponsored       bool   `json:"sponsored"`
}

type settlementDataRow struct {
	Amount          string `json:"amount"`
	RecipientUserID string `json:"recipient_user"`
	TransactionType string `json:"transaction_type"`
	Role            string `json:"role"`
}

const selectTransactionColumns = `
	id, reference, amount, user_id, resource, resource_id, source, transaction_type,
	direction, settlement_status, charge_data, settlement_data, metadata, parent_id,
	occurred_on, created_at, delayed_settlement_until`

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID, lockForUpdate bool) (*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions WHERE id = $1`
	if lockForUpdate {
		query += ` FOR UPDATE`
	}
	return r.scanOne(ctx, query, id)
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference uuid.UUID, lockForUpdate bool) (*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions WHERE reference = $1`
	if lockForUpdate {
		query += ` FOR UPDATE`
	}
	return r.scanOne(ctx, query, reference)
}

func (r *TransactionRepository) scanOne(ctx context.Context, query string, arg any) (*transaction.Transaction, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.NotFound("transaction lookup failed").WithDetails(map[string]any{"cause": err.Error()})
	}
	return t, nil
}

func (r *TransactionRepository) Save(ctx context.Context, t *transaction.Transaction) error {
	chargeJSON, err := marshalChargeData(t.ChargeData)
	if err != nil {
		return err
	}
	settlementJSON, err := marshalSettlementData(t.SettlementData)
	if err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return err
	}

	var parentID pgtype.UUID
	if t.ParentID != nil {
		parentID = pgtype.UUID{Bytes: *t.ParentID, Valid: true}
	}
	var delayedUntil pgtype.Timestamptz
	if t.DelayedSettlementUntil != nil {
		delayedUntil = pgtype.Timestamptz{Time: *t.DelayedSettlementUntil, Valid: true}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO transactions (
			id, reference, amount, user_id, resource, resource_id, source, transaction_type,
			direction, settlement_status, charge_data, settlement_data, metadata, parent_id,
			occurred_on, created_at, delayed_settlement_until
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			settlement_status = EXCLUDED.settlement_status,
			charge_data = EXCLUDED.charge_data,
			settlement_data = EXCLUDED.settlement_data,
			metadata = EXCLUDED.metadata,
			delayed_settlement_until = EXCLUDED.delayed_settlement_until
	`,
		t.ID, t.Reference, t.Amount.Cents(), t.UserID, t.Resource, t.ResourceID, t.Source, t.TransactionType,
		t.Direction, t.SettlementStatus, chargeJSON, settlementJSON, metadataJSON, parentID,
		t.OccurredOn, t.CreatedAt, delayedUntil,
	)
	if err != nil {
		return apperror.Conflict("failed to persist transaction").WithDetails(map[string]any{"cause": err.Error()})
	}
	return nil
}

func (r *TransactionRepository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*transaction.Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectTransactionColumns+`
		FROM transactions
		WHERE settlement_status = $1 AND delayed_settlement_until <= $2
		ORDER BY delayed_settlement_until ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`, transaction.StatusScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepository) ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*transaction.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+selectTransactionColumns+`
		FROM transactions WHERE user_id = $1
		ORDER BY occurred_on DESC
		LIMIT $2 OFFSET $3`, userID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// rowScanner abstracts over pgx.Row and pgx.Rows for the shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var (
		id, reference, userID, resourceID uuid.UUID
		parentID                          pgtype.UUID
		amountCents                       int64
		resource, source, txnType, dir, status string
		chargeJSON, settlementJSON, metadataJSON []byte
		occurredOn, createdAt            time.Time
		delayedUntil                      pgtype.Timestamptz
	)

	if err := row.Scan(&id, &reference, &amountCents, &userID, &resource, &resourceID, &source, &txnType,
		&dir, &status, &chargeJSON, &settlementJSON, &metadataJSON, &parentID,
		&occurredOn, &createdAt, &delayedUntil); err != nil {
		return nil, err
	}

	t := &transaction.Transaction{
		ID:               id,
		Reference:        reference,
		Amount:           money.FromCents(amountCents),
		UserID:           userID,
		Resource:         resource,
		ResourceID:       resourceID,
		Source:           transaction.Source(source),
		TransactionType:  transaction.Type(txnType),
		Direction:        transaction.Direction(dir),
		SettlementStatus: transaction.Status(status),
		OccurredOn:       occurredOn,
		CreatedAt:        createdAt,
	}

	if parentID.Valid {
		pid := uuid.UUID(parentID.Bytes)
		t.ParentID = &pid
	}
	if delayedUntil.Valid {
		dt := delayedUntil.Time
		t.DelayedSettlementUntil = &dt
	}

	cd, err := unmarshalChargeData(chargeJSON)
	if err != nil {
		return nil, err
	}
	t.ChargeData = cd

	sd, err := unmarshalSettlementData(settlementJSON)
	if err != nil {
		return nil, err
	}
	t.SettlementData = sd

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func marshalChargeData(cd *transaction.ChargeData) ([]byte, error) {
	if cd == nil {
		return []byte("null"), nil
	}
	return json.Marshal(chargeDataRow{
		ChargeSettingID: cd.ChargeSettingID,
		VersionID:       cd.VersionID,
		VersionNumber:   cd.VersionNumber,
		ChargeAmount:    cd.ChargeAmount.String(),
		Sponsored:       cd.Sponsored,
	})
}

func unmarshalChargeData(raw []byte) (*transaction.ChargeData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var row chargeDataRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	amount, err := money.FromString(row.ChargeAmount)
	if err != nil {
		return nil, err
	}
	return &transaction.ChargeData{
		ChargeSettingID: row.ChargeSettingID,
		VersionID:       row.VersionID,
		VersionNumber:   row.VersionNumber,
		ChargeAmount:    amount,
		Sponsored:       row.Sponsored,
	}, nil
}

func marshalSettlementData(sd []transaction.SettlementData) ([]byte, error) {
	rows := make([]settlementDataRow, 0, len(sd))
	for _, d := range sd {
		rows = append(rows, settlementDataRow{
			Amount:          d.Amount.String(),
			RecipientUserID: d.RecipientUserID.String(),
			TransactionType: string(d.TransactionType),
			Role:            string(d.Role),
		})
	}
	return json.Marshal(rows)
}

func unmarshalSettlementData(raw []byte) ([]transaction.SettlementData, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []settlementDataRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	out := make([]transaction.SettlementData, 0, len(rows))
	for _, row := range rows {
		amount, err := money.FromString(row.Amount)
		if err != nil {
			return nil, err
		}
		recipient, err := uuid.Parse(row.RecipientUserID)
		if err != nil {
			return nil, err
		}
		out = append(out, transaction.SettlementData{
			Amount:          amount,
			RecipientUserID: recipient,
			TransactionType: transaction.Type(row.TransactionType),
			Role:            transaction.Role(row.Role),
		})
	}
	return out, nil
}
