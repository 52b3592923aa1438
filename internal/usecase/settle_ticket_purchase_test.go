package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/cyphera/settlement-engine/internal/domain/chargeschedule"
	"github.com/cyphera/settlement-engine/internal/domain/events"
	"github.com/cyphera/settlement-engine/internal/domain/money"
	"github.com/cyphera/settlement-engine/internal/domain/transaction"
	"github.com/cyphera/settlement-engine/internal/domain/wallet"
	"github.com/cyphera/settlement-engine/internal/ports"
	"github.com/cyphera/settlement-engine/internal/signing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeTxnRepo is an in-memory stand-in for ports.TransactionRepository.
type fakeTxnRepo struct {
	byReference map[uuid.UUID]*transaction.Transaction
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{byReference: make(map[uuid.UUID]*transaction.Transaction)}
}

func (r *fakeTxnRepo) GetByID(ctx context.Context, id uuid.UUID, _ bool) (*transaction.Transaction, error) {
	for _, t := range r.byReference {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r *fakeTxnRepo) GetByReference(ctx context.Context, reference uuid.UUID, _ bool) (*transaction.Transaction, error) {
	return r.byReference[reference], nil
}

func (r *fakeTxnRepo) Save(ctx context.Context, t *transaction.Transaction) error {
	r.byReference[t.Reference] = t
	return nil
}

func (r *fakeTxnRepo) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	for _, t := range r.byReference {
		if t.SettlementStatus == transaction.StatusScheduled && t.DelayedSettlementUntil != nil && !now.Before(*t.DelayedSettlementUntil) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTxnRepo) ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*transaction.Transaction, int, error) {
	return nil, 0, nil
}

// fakeWalletRepo is an in-memory stand-in for ports.WalletRepository.
type fakeWalletRepo struct {
	byUser map[uuid.UUID]*wallet.Wallet
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{byUser: make(map[uuid.UUID]*wallet.Wallet)}
}

func (r *fakeWalletRepo) GetByUserOrCreate(ctx context.Context, userID uuid.UUID, _ bool) (*wallet.Wallet, error) {
	if w, ok := r.byUser[userID]; ok {
		return w, nil
	}
	w := wallet.New(userID)
	r.byUser[userID] = w
	return w, nil
}

func (r *fakeWalletRepo) Save(ctx context.Context, w *wallet.Wallet) error {
	r.byUser[w.UserID] = w
	return nil
}

// fakeBus collects published events without any transport.
type fakeBus struct {
	published []events.Event
}

func (b *fakeBus) Publish(ctx context.Context, ev events.Event) error {
	b.published = append(b.published, ev)
	return nil
}
func (b *fakeBus) Subscribe(string, ports.EventHandlerFunc) {}
func (b *fakeBus) Run(ctx context.Context) error            { return nil }

// fakeTickets/fakeUsers implement ports.TicketService/ports.UserService with
// canned responses configured per test.
type fakeTickets struct {
	organizerID uuid.UUID
}

func (f *fakeTickets) MarkReservationAsPaid(ctx context.Context, reference uuid.UUID) error {
	return nil
}
func (f *fakeTickets) GetEventOrganizer(ctx context.Context, slug string) (uuid.UUID, error) {
	return f.organizerID, nil
}

type fakeUsers struct {
	systemUserID      uuid.UUID
	referrerByUser    map[uuid.UUID]uuid.UUID
}

func (f *fakeUsers) GetSystemUserID(ctx context.Context) (uuid.UUID, error) {
	return f.systemUserID, nil
}
func (f *fakeUsers) GetReferralInfo(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	if r, ok := f.referrerByUser[userID]; ok {
		return &r, nil
	}
	return nil, nil
}

// fakeChargeSchedule and fakePaymentAdapter are unused by the settlement
// tests below but required to satisfy Services' constructor.
type fakeChargeSchedule struct{}

func (fakeChargeSchedule) GetVersionsAt(ctx context.Context, chargeSettingID string, at time.Time) ([]chargeschedule.Version, error) {
	return nil, nil
}
func (fakeChargeSchedule) CreateVersion(ctx context.Context, chargeSettingID string, tiers []chargeschedule.Tier, reason string) (chargeschedule.Version, error) {
	return chargeschedule.Version{}, nil
}

func newSettlementTestServices(organizerID, systemUserID uuid.UUID, referrers map[uuid.UUID]uuid.UUID) (*Services, *fakeTxnRepo, *fakeWalletRepo, *fakeBus) {
	txns := newFakeTxnRepo()
	wallets := newFakeWalletRepo()
	bus := &fakeBus{}

	svc := NewServices(
		txns, wallets, fakeChargeSchedule{}, bus, nil,
		&fakeTickets{organizerID: organizerID},
		&fakeUsers{systemUserID: systemUserID, referrerByUser: referrers},
		signing.New("charge-key"), signing.New("account-key"),
		false, 0,
	)
	return svc, txns, wallets, bus
}

func newPendingPurchase(t *testing.T, buyerID uuid.UUID, amount, fee money.Amount) *transaction.Transaction {
	txn, err := transaction.Create(transaction.CreateParams{
		Amount: amount,
		ChargeData: &transaction.ChargeData{
			ChargeSettingID: "ticket_purchase",
			VersionID:       "v1",
			VersionNumber:   1,
			ChargeAmount:    fee,
		},
		OccurredOn:      time.Now().UTC(),
		Reference:       uuid.New(),
		Resource:        "ticket",
		Source:          transaction.SourcePaymentProvider,
		TransactionType: transaction.TypePurchase,
		Metadata:        map[string]string{"slug": "some-event"},
		UserID:          buyerID,
	})
	require.NoError(t, err)
	txn.DrainEvents()
	return txn
}

func TestSettleTicketPurchaseNoReferrersMatchesScenarioS1(t *testing.T) {
	organizerID := uuid.New()
	systemUserID := uuid.New()
	buyerID := uuid.New()

	svc, txns, _, _ := newSettlementTestServices(organizerID, systemUserID, nil)

	txn := newPendingPurchase(t, buyerID, money.MustFromString("100.00"), money.MustFromString("5.00"))
	require.NoError(t, txns.Save(context.Background(), txn))

	err := svc.SettleTicketPurchase(context.Background(), txn.Reference)
	require.NoError(t, err)

	saved := txns.byReference[txn.Reference]
	require.Equal(t, transaction.StatusCompleted, saved.SettlementStatus)
	require.Len(t, saved.SettlementData, 2)
	require.Equal(t, "95.00", saved.SettlementData[0].Amount.String())
	require.Equal(t, organizerID, saved.SettlementData[0].RecipientUserID)
	require.Equal(t, "5.00", saved.SettlementData[1].Amount.String())
	require.Equal(t, systemUserID, saved.SettlementData[1].RecipientUserID)

	sum := money.Zero
	for _, sd := range saved.SettlementData {
		sum = sum.Add(sd.Amount)
	}
	require.Equal(t, saved.Amount.String(), sum.String())
}

func TestSettleTicketPurchaseBothReferrersMatchesScenarioS2(t *testing.T) {
	organizerID := uuid.New()
	systemUserID := uuid.New()
	buyerID := uuid.New()
	buyerReferrer := uuid.New()
	organizerReferrer := uuid.New()

	svc, txns, _, _ := newSettlementTestServices(organizerID, systemUserID, map[uuid.UUID]uuid.UUID{
		buyerID:     buyerReferrer,
		organizerID: organizerReferrer,
	})

	txn := newPendingPurchase(t, buyerID, money.MustFromString("100.00"), money.MustFromString("5.00"))
	require.NoError(t, txns.Save(context.Background(), txn))

	require.NoError(t, svc.SettleTicketPurchase(context.Background(), txn.Reference))

	saved := txns.byReference[txn.Reference]
	require.Len(t, saved.SettlementData, 4)
	require.Equal(t, "95.00", saved.SettlementData[0].Amount.String())
	require.Equal(t, "0.30", saved.SettlementData[1].Amount.String())
	require.Equal(t, "0.30", saved.SettlementData[2].Amount.String())
	require.Equal(t, "4.40", saved.SettlementData[3].Amount.String())

	sum := money.Zero
	for _, sd := range saved.SettlementData {
		sum = sum.Add(sd.Amount)
	}
	require.Equal(t, "100.00", sum.String())
}

func TestSettleTicketPurchaseBuyerReferrerOnlyMatchesScenarioS3(t *testing.T) {
	organizerID := uuid.New()
	systemUserID := uuid.New()
	buyerID := uuid.New()
	buyerReferrer := uuid.New()

	svc, txns, _, _ := newSettlementTestServices(organizerID, systemUserID, map[uuid.UUID]uuid.UUID{
		buyerID: buyerReferrer,
	})

	txn := newPendingPurchase(t, buyerID, money.MustFromString("100.00"), money.MustFromString("5.00"))
	require.NoError(t, txns.Save(context.Background(), txn))

	require.NoError(t, svc.SettleTicketPurchase(context.Background(), txn.Reference))

	saved := txns.byReference[txn.Reference]
	require.Len(t, saved.SettlementData, 3)
	require.Equal(t, "95.00", saved.SettlementData[0].Amount.String())
	require.Equal(t, "0.60", saved.SettlementData[1].Amount.String())
	require.Equal(t, buyerReferrer, saved.SettlementData[1].RecipientUserID)
	require.Equal(t, "4.40", saved.SettlementData[2].Amount.String())
}

func TestSettleTicketPurchaseReplayAfterSettlementIsNoOp(t *testing.T) {
	organizerID := uuid.New()
	systemUserID := uuid.New()
	buyerID := uuid.New()

	svc, txns, _, bus := newSettlementTestServices(organizerID, systemUserID, nil)

	txn := newPendingPurchase(t, buyerID, money.MustFromString("100.00"), money.MustFromString("5.00"))
	require.NoError(t, txns.Save(context.Background(), txn))
	require.NoError(t, svc.SettleTicketPurchase(context.Background(), txn.Reference))

	publishedBefore := len(bus.published)
	childrenBefore := len(txns.byReference[txn.Reference].SettlementData)

	require.NoError(t, svc.SettleTicketPurchase(context.Background(), txn.Reference))

	require.Equal(t, publishedBefore, len(bus.published))
	require.Equal(t, childrenBefore, len(txns.byReference[txn.Reference].SettlementData))
}

func TestSettleTicketPurchaseSponsoredChargeRejected(t *testing.T) {
	organizerID := uuid.New()
	systemUserID := uuid.New()
	buyerID := uuid.New()

	svc, txns, _, _ := newSettlementTestServices(organizerID, systemUserID, nil)

	txn := newPendingPurchase(t, buyerID, money.MustFromString("100.00"), money.MustFromString("5.00"))
	txn.ChargeData.Sponsored = true
	require.NoError(t, txns.Save(context.Background(), txn))

	err := svc.SettleTicketPurchase(context.Background(), txn.Reference)
	require.Error(t, err)
}
