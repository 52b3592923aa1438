package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
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
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type txnRepo struct{ byReference map[uuid.UUID]*transaction.Transaction }

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
	return nil, nil
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

type tickets struct{}

func (tickets) MarkReservationAsPaid(ctx context.Context, reference uuid.UUID) error { return nil }
func (tickets) GetEventOrganizer(ctx context.Context, slug string) (uuid.UUID, error) {
	return uuid.Nil, nil
}

type users struct{}

func (users) GetSystemUserID(ctx context.Context) (uuid.UUID, error) { return uuid.Nil, nil }
func (users) GetReferralInfo(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
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
	gin.SetMode(gin.TestMode)
}

func newTestServices(txns *txnRepo, wallets *walletRepo) *usecase.Services {
	return usecase.NewServices(
		txns, wallets, chargeSchedule{}, &bus{}, nil,
		tickets{}, users{},
		signing.New("charge-key"), signing.New("account-key"), false, 0,
	)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandleCompletesWithdrawalOnValidTransferSuccess(t *testing.T) {
	userID := uuid.New()
	txns := &txnRepo{byReference: make(map[uuid.UUID]*transaction.Transaction)}
	wallets := &walletRepo{byUser: make(map[uuid.UUID]*wallet.Wallet)}
	services := newTestServices(txns, wallets)

	txn, err := transaction.Create(transaction.CreateParams{
		Amount:    money.MustFromString("50.00"),
		Reference: uuid.New(),
		ChargeData: &transaction.ChargeData{
			ChargeSettingID: "instant_withdrawal", VersionID: "v1", VersionNumber: 1,
			ChargeAmount: money.MustFromString("1.00"),
		},
		OccurredOn: time.Now().UTC(), Resource: "withdrawal", ResourceID: uuid.Nil,
		Source: transaction.SourceWallet, TransactionType: transaction.TypeWithdrawal, UserID: userID,
	})
	require.NoError(t, err)
	txn.DrainEvents()
	txn.SettlementStatus = transaction.StatusProcessing
	require.NoError(t, txns.Save(context.Background(), txn))

	secret := "paystack-secret"
	handler := NewPaystackHandler(services, secret)

	body := []byte(`{"event":"transfer.success","data":{"reference":"` + txn.Reference.String() + `","amount":5000,"createdAt":"2026-07-30T12:00:00Z","recipient":{"details":{"account_number":"0123456789"}}}}`)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhook/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", sign(secret, body))
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	handler.Handle(c)

	require.Equal(t, http.StatusOK, rec.Code)
	completed := txns.byReference[txn.Reference]
	require.Equal(t, transaction.StatusCompleted, completed.SettlementStatus)
}

func TestHandleRejectsInvalidSignature(t *testing.T) {
	txns := &txnRepo{byReference: make(map[uuid.UUID]*transaction.Transaction)}
	wallets := &walletRepo{byUser: make(map[uuid.UUID]*wallet.Wallet)}
	services := newTestServices(txns, wallets)
	handler := NewPaystackHandler(services, "paystack-secret")

	body := []byte(`{"event":"transfer.success","data":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhook/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", "not-a-real-signature")
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	handler.Handle(c)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleIgnoresUnrelatedEvents(t *testing.T) {
	txns := &txnRepo{byReference: make(map[uuid.UUID]*transaction.Transaction)}
	wallets := &walletRepo{byUser: make(map[uuid.UUID]*wallet.Wallet)}
	services := newTestServices(txns, wallets)
	secret := "paystack-secret"
	handler := NewPaystackHandler(services, secret)

	body := []byte(`{"event":"charge.success","data":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhook/paystack", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", sign(secret, body))
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	handler.Handle(c)

	require.Equal(t, http.StatusOK, rec.Code)
}
