package postgres

import (
	"context"
	"errors"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/wallet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WalletRepository persists Wallet aggregates in the `wallets` table
// (spec §6 Persisted state).
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository wraps a pgx pool.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

const selectWalletColumns = `
	id, user_id, balance, pending_balance, pin_hash, pin_updated_at,
	bank_account_name, bank_account_number, bank_name, bank_code, bank_updated_at`

// GetByUserOrCreate implements the get-or-create semantics of spec §3
// ("Wallet is created on first access"), optionally under row lock.
func (r *WalletRepository) GetByUserOrCreate(ctx context.Context, userID uuid.UUID, lockForUpdate bool) (*wallet.Wallet, error) {
	query := `SELECT ` + selectWalletColumns + ` FROM wallets WHERE user_id = $1`
	if lockForUpdate {
		query += ` FOR UPDATE`
	}

	w, err := scanWallet(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		w := wallet.New(userID)
		if err := r.Save(ctx, w); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err != nil {
		return nil, apperror.Conflict("wallet lookup failed").WithDetails(map[string]any{"cause": err.Error()})
	}
	return w, nil
}

func (r *WalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	var pinUpdatedAt pgtype.Timestamptz
	if w.PINUpdatedAt != nil {
		pinUpdatedAt = pgtype.Timestamptz{Time: *w.PINUpdatedAt, Valid: true}
	}

	var accountName, accountNumber, bankName, bankCode pgtype.Text
	var bankUpdatedAt pgtype.Timestamptz
	if w.BankDetails != nil {
		accountName = pgtype.Text{String: w.BankDetails.AccountName, Valid: true}
		accountNumber = pgtype.Text{String: w.BankDetails.AccountNumber, Valid: true}
		bankName = pgtype.Text{String: w.BankDetails.BankName, Valid: true}
		bankCode = pgtype.Text{String: w.BankDetails.BankCode, Valid: true}
		bankUpdatedAt = pgtype.Timestamptz{Time: w.BankDetails.UpdatedAt, Valid: true}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO wallets (
			id, user_id, balance, pending_balance, pin_hash, pin_updated_at,
			bank_account_name, bank_account_number, bank_name, bank_code, bank_updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			pending_balance = EXCLUDED.pending_balance,
			pin_hash = EXCLUDED.pin_hash,
			pin_updated_at = EXCLUDED.pin_updated_at,
			bank_account_name = EXCLUDED.bank_account_name,
			bank_account_number = EXCLUDED.bank_account_number,
			bank_name = EXCLUDED.bank_name,
			bank_code = EXCLUDED.bank_code,
			bank_updated_at = EXCLUDED.bank_updated_at
	`,
		w.ID, w.UserID, w.Balance.Cents(), w.PendingBalance.Cents(), nullableString(w.PINHash), pinUpdatedAt,
		accountName, accountNumber, bankName, bankCode, bankUpdatedAt,
	)
	if err != nil {
		return apperror.Conflict("failed to persist wallet").WithDetails(map[string]any{"cause": err.Error()})
	}
	return nil
}

func nullableString(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func scanWallet(row pgx.Row) (*wallet.Wallet, error) {
	var (
		id, userID                                     uuid.UUID
		balanceCents, pendingCents                      int64
		pinHash                                         pgtype.Text
		pinUpdatedAt, bankUpdatedAt                     pgtype.Timestamptz
		accountName, accountNumber, bankName, bankCode pgtype.Text
	)

	if err := row.Scan(&id, &userID, &balanceCents, &pendingCents, &pinHash, &pinUpdatedAt,
		&accountName, &accountNumber, &bankName, &bankCode, &bankUpdatedAt); err != nil {
		return nil, err
	}

	w := &wallet.Wallet{
		ID:             id,
		UserID:         userID,
		Balance:        money.FromCents(balanceCents),
		PendingBalance: money.FromCents(pendingCents),
	}
	if pinHash.Valid {
		w.PINHash = pinHash.String
	}
	if pinUpdatedAt.Valid {
		t := pinUpdatedAt.Time
		w.PINUpdatedAt = &t
	}
	if accountNumber.Valid {
		w.BankDetails = &wallet.BankDetails{
			AccountName:   accountName.String,
			AccountNumber: accountNumber.String,
			BankName:      bankName.String,
			BankCode:      bankCode.String,
			UpdatedAt:     bankUpdatedAt.Time,
		}
	}
	return w, nil
}
