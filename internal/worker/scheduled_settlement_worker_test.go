package worker

import (
	"context"
	"testing"
	"time"

	"github.com/cyphera/settlement-engine/internal/domain/chargeschedule"
	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/cyphera/settlement-engine/internal/domain/wallet"
	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/cyphera/settlement-engine/internal/ports"
	"github.com/cyphera/settlement-engine/internal/signing"
	"github.com/cyphera/settlement-engine/internal/usecase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type txnRepo struct {
	byReference map[uuid.UUID]*transaction.Transaction
}

func (r *txnRepo) GetByID(ctx context.Context, id uuid.UUID, _ bool) (*transaction.Transaction, error) {
	return nil, nil
}
func (r *txnRepo) GetByReference(ctx context.Context, reference uuid.UUID, _ bool) (*transaction.Transaction, error) {
	return r.byReference[reference], nil
}
func (r *txnRepo) Save(ctx context.Context, t *transaction.Transaction) error {
	r.byReference[t.Reference] = t
	return nil
}
func (r *txnRepo) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	for _, t := range r.byReference {
		if t.SettlementStatus == transaction.StatusScheduled && t.DelayedSettlementUntil != nil && !now.Before(*t.DelayedSettlementUntil) {
			out = append(out, t)
		}
	}
	return out, nil
}
func (r *txnRepo) ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*transaction.Transaction, int, error) {
	return nil, 0, nil
}

type walletRepo struct{ byUser map[uuid.UUID]*wallet.Wallet }

func (r *walletRepo) GetByUserOrCreate(ctx context.Context, userID uuid.UUID, _ bool) (*wallet.Wallet, error) {
	if w, ok := r.byUser[userID]; ok {
		return w, nil
	}
	w := wallet.New(userID)
	r.byUser[userID] = w
	return w, nil
}
func (r *walletRepo) Save(ctx context.Context, w *wallet.Wallet) error {
	r.byUser[w.UserID] = w
	return nil
}

type bus struct{ published []events.Event }

func (b *bus) Publish(ctx context.Context, ev events.Event) error {
	b.published = append(b.published, ev)
	return nil
}
func (b *bus) Subscribe(string, ports.EventHandlerFunc) {}
func (b *bus) Run(ctx context.Context) error            { return nil }

type tickets struct{ organizerID uuid.UUID }

func (f *tickets) MarkReservationAsPaid(ctx context.Context, reference uuid.UUID) error { return nil }
func (f *tickets) GetEventOrganizer(ctx context.Context, slug string) (uuid.UUID, error) {
	return f.organizerID, nil
}

type users struct{ systemUserID uuid.UUID }

func (f *users) GetSystemUserID(ctx context.Context) (uuid.UUID, error) { return f.systemUserID, nil }
func (f *users) GetReferralInfo(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	return nil, nil
}

type chargeSchedule struct{}

func (chargeSchedule) GetVersionsAt(ctx context.Context, chargeSettingID string, at time.Time) ([]chargeschedule.Version, error) {
	return nil, nil
}
func (chargeSchedule) CreateVersion(ctx context.Context, chargeSettingID string, tiers []chargeschedule.Tier, reason string) (chargeschedule.Version, error) {
	return chargeschedule.Version{}, nil
}

func init() {
	logger.Init("local")
}

func TestScheduledSettlementWorkerProcessesDueTransactionOnStart(t *testing.T) {
	organizerID := uuid.New()
	systemUserID := uuid.New()
	buyerID := uuid.New()

	txns := &txnRepo{byReference: make(map[uuid.UUID]*transaction.Transaction)}
	wallets := &walletRepo{byUser: make(map[uuid.UUID]*wallet.Wallet)}
	b := &bus{}

	services := usecase.NewServices(
		txns, wallets, chargeSchedule{}, b, nil,
		&tickets{organizerID: organizerID}, &users{systemUserID: systemUserID},
		signing.New("charge-key"), signing.New("account-key"), false, 2,
	)

	txn, err := transaction.Create(transaction.CreateParams{
		Amount: money.MustFromString("100.00"),
		ChargeData: &transaction.ChargeData{
			ChargeSettingID: "ticket_purchase", VersionID: "v1", VersionNumber: 1,
			ChargeAmount: money.MustFromString("5.00"),
		},
		OccurredOn: time.Now().UTC(), Reference: uuid.New(), Resource: "ticket",
		Source: transaction.SourcePaymentProvider, TransactionType: transaction.TypePurchase,
		Metadata: map[string]string{"slug": "some-event"}, UserID: buyerID,
	})
	require.NoError(t, err)
	txn.DrainEvents()
	require.NoError(t, txns.Save(context.Background(), txn))
	require.NoError(t, services.SettleTicketPurchase(context.Background(), txn.Reference))

	scheduled := txns.byReference[txn.Reference]
	require.Equal(t, transaction.StatusScheduled, scheduled.SettlementStatus)

	past := time.Now().UTC().Add(-time.Minute)
	scheduled.DelayedSettlementUntil = &past

	w := New(services, time.Hour)
	w.Start()
	w.Stop()

	settled := txns.byReference[txn.Reference]
	require.Equal(t, transaction.StatusCompleted, settled.SettlementStatus)
}
