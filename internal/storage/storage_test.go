package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/molbhav/molbhav/pkg/types"
	"go.uber.org/zap"
)

func testSummary(state types.SessionState) *types.SessionSummary {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &types.SessionSummary{
		SessionID:   "0123456789abcdef0123456789abcdef",
		ProductID:   "nike-air-max",
		BuyerRef:    "10.0.0.1",
		State:       state,
		Tactic:      types.TacticConcession,
		Rounds:      3,
		AnchorPrice: 12999,
		FinalPrice:  11500,
		CreatedAt:   now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
}

func TestConsoleAppendOfferEventIdempotent(t *testing.T) {
	store := NewConsoleStorage(zap.NewNop())
	ctx := context.Background()

	offer := &types.Offer{Actor: types.ActorBuyer, Price: 11000, Round: 1, Timestamp: time.Now()}

	_ = store.AppendOfferEvent(ctx, "s1", "10.0.0.1", offer)
	_ = store.AppendOfferEvent(ctx, "s1", "10.0.0.1", offer)

	offers, err := store.OfferEvents(ctx, "s1")
	if err != nil {
		t.Fatalf("OfferEvents() error: %v", err)
	}

	if len(offers) != 1 {
		t.Errorf("replayed offer event duplicated: got %d rows", len(offers))
	}
}

func TestConsoleSummaryNeverDowngradesTerminal(t *testing.T) {
	store := NewConsoleStorage(zap.NewNop())
	ctx := context.Background()

	agreed := testSummary(types.StateAgreed)
	err := store.UpsertSummary(ctx, agreed)
	if err != nil {
		t.Fatalf("UpsertSummary() error: %v", err)
	}

	// A late non-terminal write must not reopen the session.
	_ = store.UpsertSummary(ctx, testSummary(types.StateResponding))

	got, err := store.Summary(ctx, agreed.SessionID)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}

	if got.State != types.StateAgreed {
		t.Errorf("terminal summary downgraded to %s", got.State)
	}
}

func TestConsoleSummaryNotFound(t *testing.T) {
	store := NewConsoleStorage(zap.NewNop())

	_, err := store.Summary(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Summary() = %v, want ErrNotFound", err)
	}
}

func TestConsoleExpiredActiveSessions(t *testing.T) {
	store := NewConsoleStorage(zap.NewNop())
	ctx := context.Background()

	active := testSummary(types.StateResponding)
	_ = store.UpsertSummary(ctx, active)

	closed := testSummary(types.StateAgreed)
	closed.SessionID = "ffffffffffffffffffffffffffffffff"
	_ = store.UpsertSummary(ctx, closed)

	expired, err := store.ExpiredActiveSessions(ctx, active.ExpiresAt.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("ExpiredActiveSessions() error: %v", err)
	}

	if len(expired) != 1 || expired[0].SessionID != active.SessionID {
		t.Errorf("ExpiredActiveSessions() = %v, want only the active expired session", expired)
	}

	// Nothing expired before its deadline.
	expired, _ = store.ExpiredActiveSessions(ctx, active.ExpiresAt.Add(-time.Minute), 10)
	if len(expired) != 0 {
		t.Errorf("ExpiredActiveSessions() before deadline = %d rows, want 0", len(expired))
	}
}

func TestConsoleProductCatalog(t *testing.T) {
	store := NewConsoleStorage(zap.NewNop())
	ctx := context.Background()

	p := &types.Product{
		ID:          "nike-air-max",
		Name:        "Nike Air Max",
		Category:    "footwear",
		AnchorPrice: 12995,
		CostPrice:   7000,
		MinMargin:   0.10,
		Active:      true,
	}

	_ = store.CreateProduct(ctx, p)

	got, err := store.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct() error: %v", err)
	}
	if got.AnchorPrice != 12995 {
		t.Errorf("GetProduct().AnchorPrice = %v", got.AnchorPrice)
	}

	err = store.DeactivateProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("DeactivateProduct() error: %v", err)
	}

	active, _ := store.ListProducts(ctx, true)
	if len(active) != 0 {
		t.Errorf("ListProducts(activeOnly) after deactivate = %d rows", len(active))
	}

	if err := store.DeactivateProduct(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeactivateProduct(missing) = %v, want ErrNotFound", err)
	}
}

func pgForTest(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}

	return &PostgresStorage{
		db:      db,
		timeout: 500 * time.Millisecond,
		logger:  zap.NewNop(),
	}, mock
}

func TestPostgresAppendOfferEvent(t *testing.T) {
	store, mock := pgForTest(t)
	defer store.db.Close()

	mock.ExpectExec("INSERT INTO offer_events").
		WillReturnResult(sqlmock.NewResult(0, 1))

	offer := &types.Offer{
		Actor:     types.ActorSeller,
		Price:     12500,
		Tactic:    types.TacticConcession,
		Round:     2,
		Timestamp: time.Now(),
		Features:  map[string]float64{"bot_score": 0.1},
	}

	err := store.AppendOfferEvent(context.Background(), "s1", "10.0.0.1", offer)
	if err != nil {
		t.Fatalf("AppendOfferEvent() error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresAppendOfferEventConflictIsNoError(t *testing.T) {
	store, mock := pgForTest(t)
	defer store.db.Close()

	// ON CONFLICT DO NOTHING reports zero rows affected.
	mock.ExpectExec("INSERT INTO offer_events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	offer := &types.Offer{Actor: types.ActorBuyer, Price: 11000, Round: 1, Timestamp: time.Now()}

	err := store.AppendOfferEvent(context.Background(), "s1", "10.0.0.1", offer)
	if err != nil {
		t.Fatalf("AppendOfferEvent() replay error: %v", err)
	}
}

func TestPostgresUpsertSummary(t *testing.T) {
	store, mock := pgForTest(t)
	defer store.db.Close()

	mock.ExpectExec("INSERT INTO session_summaries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertSummary(context.Background(), testSummary(types.StateAgreed))
	if err != nil {
		t.Fatalf("UpsertSummary() error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresSummaryNotFound(t *testing.T) {
	store, mock := pgForTest(t)
	defer store.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM session_summaries").
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}))

	_, err := store.Summary(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Summary() = %v, want ErrNotFound", err)
	}
}

func TestPostgresListCoupons(t *testing.T) {
	store, mock := pgForTest(t)
	defer store.db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "code", "category", "min_price", "min_round", "discount_pct",
		"max_discount", "active", "created_at",
	}).AddRow("festive5", "FESTIVE5", "", 5000.0, 6, 0.05, 500.0, true, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM coupons").WillReturnRows(rows)

	coupons, err := store.ListCoupons(context.Background(), true)
	if err != nil {
		t.Fatalf("ListCoupons() error: %v", err)
	}

	if len(coupons) != 1 || coupons[0].Code != "FESTIVE5" {
		t.Errorf("ListCoupons() = %+v", coupons)
	}
}
