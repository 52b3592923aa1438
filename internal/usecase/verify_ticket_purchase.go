package usecase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/google/uuid"
)

// consumedMetadataKeys are popped out of the provider metadata before it is
// stored as transaction metadata (spec §4.4 step 4). The signature check
// does not use this list: it covers every key except signature and referrer.
var consumedMetadataKeys = []string{
	"signature", "charge_setting_id", "version_id", "version_number",
	"calculated_charge", "user", "sponsored",
}

// VerifyTicketPurchaseInput is the authenticated caller's request.
type VerifyTicketPurchaseInput struct {
	Reference     uuid.UUID
	AuthUserID    uuid.UUID
}

// VerifyTicketPurchase is the entry point for a checkout-verify call
// (spec §4.4).
func (s *Services) VerifyTicketPurchase(ctx context.Context, in VerifyTicketPurchaseInput) error {
	existing, err := s.Transactions.GetByReference(ctx, in.Reference, false)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil // idempotent success
	}

	ext, err := s.Payment.GetValidTransaction(ctx, in.Reference)
	if err != nil {
		return err
	}
	if ext.Metadata == nil {
		return apperror.Malformed("provider transaction is missing metadata")
	}

	signature, _ := ext.Metadata["signature"].(string)
	if signature == "" {
		return apperror.Malformed("provider transaction metadata is missing signature")
	}

	toVerify := make(map[string]any, len(ext.Metadata))
	for k, v := range ext.Metadata {
		// referrer is optional and, like signature, excluded from the signed
		// field set (spec §4.4 step 3; CreateTicketPurchaseCheckout signs
		// metadata before referrer is added).
		if k == "signature" || k == "referrer" {
			continue
		}
		toVerify[k] = v
	}
	ok, err := s.ChargeSigner.Verify(toVerify, signature)
	if err != nil {
		return apperror.Malformed("failed to verify charge signature")
	}
	if !ok {
		return apperror.Malformed("charge signature does not match transaction metadata")
	}

	metaUser, _ := ext.Metadata["user"].(string)
	if metaUser != in.AuthUserID.String() {
		return apperror.Forbidden("transaction does not belong to the authenticated user")
	}

	sponsored, _ := ext.Metadata["sponsored"].(bool)
	chargeData, err := chargeDataFromMetadata(ext.Metadata, sponsored)
	if err != nil {
		return err
	}

	residual := residualMetadata(ext.Metadata)
	slug, hasSlug := residual["slug"]
	if !hasSlug || slug == "" {
		return apperror.Malformed("provider transaction metadata is missing slug")
	}

	txn, err := transaction.Create(transaction.CreateParams{
		Amount:          ext.Amount,
		ChargeData:      chargeData,
		OccurredOn:      ext.OccurredOn,
		Reference:       in.Reference,
		Resource:        "ticket",
		ResourceID:      uuid.Nil,
		Source:          transaction.SourcePaymentProvider,
		TransactionType: transaction.TypePurchase,
		Metadata:        residual,
		UserID:          in.AuthUserID,
	})
	if err != nil {
		return err
	}

	if err := s.Transactions.Save(ctx, txn); err != nil {
		return err
	}
	s.publish(ctx, txn.DrainEvents())
	return nil
}

func chargeDataFromMetadata(meta map[string]any, sponsored bool) (*transaction.ChargeData, error) {
	chargeSettingID, _ := meta["charge_setting_id"].(string)
	versionID, _ := meta["version_id"].(string)
	calculatedChargeRaw, _ := meta["calculated_charge"].(string)
	if chargeSettingID == "" || versionID == "" || calculatedChargeRaw == "" {
		return nil, apperror.Malformed("provider transaction metadata is missing charge data")
	}

	chargeAmount, err := money.FromString(calculatedChargeRaw)
	if err != nil {
		return nil, apperror.Malformed("provider transaction metadata has an invalid calculated_charge")
	}

	versionNumber, err := toInt(meta["version_number"])
	if err != nil {
		return nil, apperror.Malformed("provider transaction metadata has an invalid version_number")
	}

	return &transaction.ChargeData{
		ChargeSettingID: chargeSettingID,
		VersionID:       versionID,
		VersionNumber:   versionNumber,
		ChargeAmount:    chargeAmount,
		Sponsored:       sponsored,
	}, nil
}

// residualMetadata returns every metadata key not consumed into charge_data,
// the signature, or the authenticated user — this becomes the transaction's
// own metadata map (spec §4.4 step 4, "setting the residual metadata").
func residualMetadata(meta map[string]any) map[string]string {
	consumed := make(map[string]struct{}, len(consumedMetadataKeys))
	for _, k := range consumedMetadataKeys {
		consumed[k] = struct{}{}
	}

	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if _, skip := consumed[k]; skip {
			continue
		}
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("value is not numeric")
	}
}
