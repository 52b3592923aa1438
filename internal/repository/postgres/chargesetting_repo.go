package postgres

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/chargeschedule"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

func newVersionID() string { return uuid.New().String() }

// ChargeSettingRepository reads tiered fee schedule versions and creates
// new versions with concurrency-safe version-number allocation, grounded
// in original_source's charge_setting_version repository (lock the
// setting's version rows, read max(version_number), then atomic
// close-previous).
type ChargeSettingRepository struct {
	pool *pgxpool.Pool
}

func NewChargeSettingRepository(pool *pgxpool.Pool) *ChargeSettingRepository {
	return &ChargeSettingRepository{pool: pool}
}

type tierRow struct {
	Name           string  `json:"name"`
	MinPrice       string  `json:"min_price"`
	MaxPrice       *string `json:"max_price,omitempty"`
	PercentageRate string  `json:"percentage_rate"`
	MinCharge      *string `json:"min_charge,omitempty"`
	MaxCharge      *string `json:"max_charge,omitempty"`
}

// GetVersionsAt returns every version whose effective window could cover
// `at`, for the evaluator to pick the active one (spec §4.2).
func (r *ChargeSettingRepository) GetVersionsAt(ctx context.Context, chargeSettingID string, at time.Time) ([]chargeschedule.Version, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT version_id, version_number, tiers, effective_from, effective_until
		FROM charge_setting_versions
		WHERE charge_setting_id = $1 AND effective_from <= $2
		  AND (effective_until IS NULL OR effective_until > $2)
		ORDER BY version_number DESC`, chargeSettingID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chargeschedule.Version
	for rows.Next() {
		var (
			versionID      string
			versionNumber  int
			tiersJSON      []byte
			effectiveFrom  time.Time
			effectiveUntil pgtype.Timestamptz
		)
		if err := rows.Scan(&versionID, &versionNumber, &tiersJSON, &effectiveFrom, &effectiveUntil); err != nil {
			return nil, err
		}
		tiers, err := unmarshalTiers(tiersJSON)
		if err != nil {
			return nil, err
		}
		v := chargeschedule.Version{
			VersionID:     versionID,
			VersionNumber: versionNumber,
			Tiers:         tiers,
			EffectiveFrom: effectiveFrom,
		}
		if effectiveUntil.Valid {
			t := effectiveUntil.Time
			v.EffectiveUntil = &t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateVersion atomically closes any currently-open version and inserts
// the new one at max(version_number)+1, under row locks on the setting's
// existing versions to prevent races (original_source grounding).
func (r *ChargeSettingRepository) CreateVersion(ctx context.Context, chargeSettingID string, tiers []chargeschedule.Tier, reason string) (chargeschedule.Version, error) {
	if err := chargeschedule.ValidateNoGapsOrOverlaps(tiers); err != nil {
		return chargeschedule.Version{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return chargeschedule.Version{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var maxVersion *int
	err = tx.QueryRow(ctx, `
		SELECT max(version_number) FROM (
			SELECT version_number FROM charge_setting_versions
			WHERE charge_setting_id = $1 FOR UPDATE
		) AS locked`, chargeSettingID).Scan(&maxVersion)
	if err != nil {
		return chargeschedule.Version{}, err
	}

	nextVersion := 1
	if maxVersion != nil {
		nextVersion = *maxVersion + 1
	}

	now := time.Now().UTC()

	if _, err := tx.Exec(ctx, `
		UPDATE charge_setting_versions SET effective_until = $2
		WHERE charge_setting_id = $1 AND effective_until IS NULL`, chargeSettingID, now); err != nil {
		return chargeschedule.Version{}, err
	}

	tiersJSON, err := marshalTiers(tiers)
	if err != nil {
		return chargeschedule.Version{}, err
	}

	versionID := newVersionID()
	if _, err := tx.Exec(ctx, `
		INSERT INTO charge_setting_versions (
			version_id, charge_setting_id, version_number, tiers,
			effective_from, effective_until, created_at, change_reason
		) VALUES ($1,$2,$3,$4,$5,NULL,$6,$7)`,
		versionID, chargeSettingID, nextVersion, tiersJSON, now, now, reason,
	); err != nil {
		return chargeschedule.Version{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return chargeschedule.Version{}, err
	}

	return chargeschedule.Version{
		VersionID:     versionID,
		VersionNumber: nextVersion,
		Tiers:         tiers,
		EffectiveFrom: now,
	}, nil
}

func marshalTiers(tiers []chargeschedule.Tier) ([]byte, error) {
	rows := make([]tierRow, 0, len(tiers))
	for _, t := range tiers {
		row := tierRow{
			Name:           t.Name,
			MinPrice:       t.MinPrice.String(),
			PercentageRate: t.PercentageRate.FloatString(4),
		}
		if t.MaxPrice != nil {
			s := t.MaxPrice.String()
			row.MaxPrice = &s
		}
		if t.MinCharge != nil {
			s := t.MinCharge.String()
			row.MinCharge = &s
		}
		if t.MaxCharge != nil {
			s := t.MaxCharge.String()
			row.MaxCharge = &s
		}
		rows = append(rows, row)
	}
	return json.Marshal(rows)
}

func unmarshalTiers(raw []byte) ([]chargeschedule.Tier, error) {
	var rows []tierRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	out := make([]chargeschedule.Tier, 0, len(rows))
	for _, row := range rows {
		minPrice, err := money.FromString(row.MinPrice)
		if err != nil {
			return nil, err
		}
		rate, ok := new(big.Rat).SetString(row.PercentageRate)
		if !ok {
			return nil, apperror.Malformed("invalid percentage_rate in stored tier")
		}
		tier := chargeschedule.Tier{MinPrice: minPrice, Name: row.Name, PercentageRate: rate}
		if row.MaxPrice != nil {
			v, err := money.FromString(*row.MaxPrice)
			if err != nil {
				return nil, err
			}
			tier.MaxPrice = &v
		}
		if row.MinCharge != nil {
			v, err := money.FromString(*row.MinCharge)
			if err != nil {
				return nil, err
			}
			tier.MinCharge = &v
		}
		if row.MaxCharge != nil {
			v, err := money.FromString(*row.MaxCharge)
			if err != nil {
				return nil, err
			}
			tier.MaxCharge = &v
		}
		out = append(out, tier)
	}
	return out, nil
}
