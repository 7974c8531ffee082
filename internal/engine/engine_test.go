package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smartrent-ledger/internal/model"
)

var (
	operator = model.MustAddress("0x0000000000000000000000000000000000000001")
	alice    = model.MustAddress("0x00000000000000000000000000000000000000a1")
	bob      = model.MustAddress("0x00000000000000000000000000000000000000b2")
	carol    = model.MustAddress("0x00000000000000000000000000000000000000c3")
	dave     = model.MustAddress("0x00000000000000000000000000000000000000d4")
	renter   = model.MustAddress("0x00000000000000000000000000000000000000e5")
	fees     = model.MustAddress("0x00000000000000000000000000000000000000fe")
	day      = 24 * time.Hour
	start    = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishEvent(ctx context.Context, ev model.Event) error {
	return m.Called(ev.Kind).Error(0)
}

func (m *mockPublisher) PublishLockAccess(ctx context.Context, b model.Booking) error {
	return m.Called(b.ID, b.Status).Error(0)
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) Append(ctx context.Context, ev model.Event) error {
	return m.Called(ev.Kind).Error(0)
}

type mockRecorder struct {
	mu  sync.Mutex
	ops map[string]int
}

func (r *mockRecorder) RecordOperation(kind, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = map[string]int{}
	}
	r.ops[kind+"/"+outcome]++
}

func (r *mockRecorder) RecordPublishFailure(string) {}

// ticker is a deterministic clock advancing one minute per call.
func ticker() func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func policy() Policy {
	return Policy{PlatformFeeBps: 200, CancellationFeeBps: 500, FeeRecipient: fees}
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(policy(), append([]Option{WithClock(ticker())}, opts...)...)
	require.NoError(t, err)
	return e
}

// scenario drives every kind of operation through the engine.
func scenario(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	_, err := e.Mint(ctx, operator, MintInput{AssetID: 1, TotalShares: 1000, Holder: alice, MetadataPointer: "ipfs://villa"})
	require.NoError(t, err)
	for to, amt := range map[model.Address]uint64{bob: 300, carol: 200, dave: 100} {
		_, err = e.Transfer(ctx, alice, TransferInput{AssetID: 1, To: to, Amount: amt})
		require.NoError(t, err)
	}

	l, err := e.CreateListing(ctx, alice, CreateListingInput{AssetID: 1, Amount: 50, PricePerShare: decimal.NewFromInt(1_000)})
	require.NoError(t, err)
	_, err = e.BuyFromListing(ctx, renter, BuyInput{ListingID: l.ID, Amount: 30, Payment: decimal.NewFromInt(30_000)})
	require.NoError(t, err)
	l2, err := e.CreateListing(ctx, bob, CreateListingInput{AssetID: 1, Amount: 10, PricePerShare: decimal.NewFromInt(5)})
	require.NoError(t, err)
	_, err = e.CancelListing(ctx, bob, ListingRef{ListingID: l2.ID})
	require.NoError(t, err)

	price := decimal.New(1, 17)
	_, err = e.SetRentalTerms(ctx, alice, TermsInput{AssetID: 1, PricePerDay: price})
	require.NoError(t, err)

	in := start.Add(10 * day)
	b1, err := e.BookRental(ctx, renter, BookInput{AssetID: 1, CheckIn: in, CheckOut: in.Add(7 * day), Payment: price.Mul(decimal.NewFromInt(8))})
	require.NoError(t, err)
	_, err = e.ActivateRental(ctx, renter, BookingRef{BookingID: b1.ID})
	require.NoError(t, err)
	_, err = e.CompleteRental(ctx, alice, BookingRef{BookingID: b1.ID})
	require.NoError(t, err)

	b2, err := e.BookRental(ctx, carol, BookInput{AssetID: 1, CheckIn: in, CheckOut: in.Add(2 * day), Payment: price.Mul(decimal.NewFromInt(2))})
	require.NoError(t, err)
	_, err = e.CancelRental(ctx, carol, BookingRef{BookingID: b2.ID})
	require.NoError(t, err)

	_, err = e.Withdraw(ctx, alice, WithdrawInput{Amount: decimal.NewFromInt(1_000)})
	require.NoError(t, err)
}

type snapshot struct {
	Seq      uint64
	Holdings []model.Holding
	Listings []model.Listing
	Bookings []model.Booking
	Rent     RentSummary
	Funds    map[model.Address]decimal.Decimal
	Escrowed decimal.Decimal
}

func snap(t *testing.T, e *Engine) string {
	t.Helper()
	hs, err := e.Holdings(1)
	require.NoError(t, err)
	bookings, _, err := e.BookingsByAsset(1, model.Page{})
	require.NoError(t, err)
	rent, err := e.Rent(1)
	require.NoError(t, err)
	s := snapshot{
		Seq:      e.Seq(),
		Holdings: hs,
		Listings: append(e.ListingsBySeller(alice), e.ListingsBySeller(bob)...),
		Bookings: bookings,
		Rent:     rent,
		Funds:    map[model.Address]decimal.Decimal{},
		Escrowed: e.Escrowed(),
	}
	for _, a := range []model.Address{alice, bob, carol, dave, renter, fees} {
		s.Funds[a] = e.Funds(a)
	}
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	return string(raw)
}

func TestScenarioAndInvariants(t *testing.T) {
	rec := &mockRecorder{}
	e := newEngine(t, WithMetrics(rec))
	scenario(t, e)
	require.NoError(t, e.CheckInvariants())

	assert.Equal(t, uint64(15), e.Seq())
	// 7 days escrowed, 1 day overpaid and credited back
	b, err := e.Booking(1)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, b.Status)
	assert.True(t, b.EscrowedAmount.Equal(decimal.New(7, 17)))

	hs, err := e.Holdings(1)
	require.NoError(t, err)
	var paid decimal.Decimal
	for _, p := range b.Distribution.Payouts {
		paid = paid.Add(p.Amount)
	}
	assert.Len(t, hs, 5)
	assert.True(t, paid.Add(b.Distribution.Remainder).Equal(b.EscrowedAmount))
	assert.True(t, e.Escrowed().IsZero())
	assert.Equal(t, 1, rec.ops["asset.minted/ok"])
	assert.Equal(t, 2, rec.ops["rental.booked/ok"])
}

func TestReplayReproducesState(t *testing.T) {
	journal := NewMemoryJournal()
	live := newEngine(t, WithJournal(journal))
	scenario(t, live)

	events, err := journal.Events(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 15)

	replayed, err := New(policy())
	require.NoError(t, err)
	require.NoError(t, replayed.Replay(context.Background(), events))
	require.NoError(t, replayed.CheckInvariants())
	assert.Equal(t, snap(t, live), snap(t, replayed))

	err = replayed.Replay(context.Background(), events[:1])
	assert.ErrorIs(t, err, model.ErrDuplicateEventSeq)
}

func TestReplayPrefixAndGap(t *testing.T) {
	journal := NewMemoryJournal()
	scenario(t, newEngine(t, WithJournal(journal)))
	events, err := journal.Events(context.Background(), 0, 0)
	require.NoError(t, err)

	e := newEngine(t)
	require.NoError(t, e.Replay(context.Background(), events[:4]))
	assert.Equal(t, uint64(4), e.Seq())

	err = e.Replay(context.Background(), events[5:6])
	require.Error(t, err)
	assert.Equal(t, uint64(4), e.Seq())

	tail, err := journal.Events(context.Background(), 4, 0)
	require.NoError(t, err)
	require.NoError(t, e.Replay(context.Background(), tail))
	assert.Equal(t, uint64(15), e.Seq())
}

func TestReplayRejectsUnknownKind(t *testing.T) {
	e := newEngine(t)
	err := e.Replay(context.Background(), []model.Event{{Seq: 1, Kind: "asset.burned", Payload: json.RawMessage(`{"input":{}}`)}})
	assert.ErrorIs(t, err, model.ErrUnknownEventKind)
	assert.Equal(t, uint64(0), e.Seq())
}

func TestJournalFailureRollsBack(t *testing.T) {
	j := &mockJournal{}
	j.On("Append", model.EventAssetMinted).Return(nil).Once()
	j.On("Append", model.EventSharesTransferred).Return(errors.New("db down")).Once()
	pub := &mockPublisher{}
	pub.On("PublishEvent", model.EventAssetMinted).Return(nil).Once()

	e := newEngine(t, WithJournal(j), WithPublisher(pub))
	ctx := context.Background()
	_, err := e.Mint(ctx, operator, MintInput{AssetID: 1, TotalShares: 10, Holder: alice})
	require.NoError(t, err)

	_, err = e.Transfer(ctx, alice, TransferInput{AssetID: 1, To: bob, Amount: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal append")

	h, err := e.BalanceOf(1, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), h.Balance)
	owners, _, err := e.AssetOwners(1, model.Page{})
	require.NoError(t, err)
	assert.Len(t, owners, 1)
	assert.Equal(t, uint64(1), e.Seq())
	require.NoError(t, e.CheckInvariants())

	j.AssertExpectations(t)
	pub.AssertExpectations(t)
	pub.AssertNotCalled(t, "PublishEvent", model.EventSharesTransferred)
}

func TestPublisherFailureKeepsOperation(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishEvent", mock.Anything).Return(errors.New("broker down"))
	pub.On("PublishLockAccess", uint64(1), model.BookingActive).Return(errors.New("broker down")).Once()
	pub.On("PublishLockAccess", uint64(1), model.BookingCompleted).Return(nil).Once()

	e := newEngine(t, WithPublisher(pub))
	ctx := context.Background()
	_, err := e.Mint(ctx, operator, MintInput{AssetID: 1, TotalShares: 10, Holder: alice})
	require.NoError(t, err)
	_, err = e.SetRentalTerms(ctx, alice, TermsInput{AssetID: 1, PricePerDay: decimal.NewFromInt(10)})
	require.NoError(t, err)
	in := start.Add(day)
	_, err = e.BookRental(ctx, renter, BookInput{AssetID: 1, CheckIn: in, CheckOut: in.Add(day), Payment: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = e.ActivateRental(ctx, renter, BookingRef{BookingID: 1})
	require.NoError(t, err)
	assert.True(t, e.AccessGranted(1, renter))
	_, err = e.CompleteRental(ctx, renter, BookingRef{BookingID: 1})
	require.NoError(t, err)

	assert.True(t, e.Funds(alice).Equal(decimal.NewFromInt(10)))
	pub.AssertNumberOfCalls(t, "PublishEvent", 5)
	pub.AssertExpectations(t)
}

func TestFailedOperationIsNotJournaled(t *testing.T) {
	journal := NewMemoryJournal()
	e := newEngine(t, WithJournal(journal))
	ctx := context.Background()
	_, err := e.Mint(ctx, operator, MintInput{AssetID: 1, TotalShares: 0, Holder: alice})
	assert.ErrorIs(t, err, model.ErrZeroShares)
	_, err = e.Transfer(ctx, alice, TransferInput{AssetID: 1, To: bob, Amount: 1})
	assert.ErrorIs(t, err, model.ErrUnknownAsset)
	assert.Equal(t, 0, journal.Len())
	assert.Equal(t, uint64(0), e.Seq())
}

func TestCancelledContextIsRejectedBeforeApply(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Mint(ctx, operator, MintInput{AssetID: 1, TotalShares: 10, Holder: alice})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = e.Asset(1)
	assert.ErrorIs(t, err, model.ErrUnknownAsset)
}

func TestConcurrentBuyersAreSerialized(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	_, err := e.Mint(ctx, operator, MintInput{AssetID: 1, TotalShares: 100, Holder: alice})
	require.NoError(t, err)
	l, err := e.CreateListing(ctx, alice, CreateListingInput{AssetID: 1, Amount: 50, PricePerShare: decimal.NewFromInt(2)})
	require.NoError(t, err)

	const buyers = 12
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := model.MustAddress(fmt.Sprintf("0x%040x", 0x100+i))
			_, errs[i] = e.BuyFromListing(ctx, buyer, BuyInput{ListingID: l.ID, Amount: 10, Payment: decimal.NewFromInt(20)})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, model.ErrListingExhausted) || errors.Is(err, model.ErrListingInactive), err)
	}
	assert.Equal(t, 5, ok)
	got, err := e.Listing(l.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NoError(t, e.CheckInvariants())
}

func TestNewRejectsBadPolicy(t *testing.T) {
	_, err := New(Policy{PlatformFeeBps: 10_001, FeeRecipient: fees})
	assert.ErrorIs(t, err, model.ErrInvalidBps)
	_, err = New(Policy{})
	assert.ErrorIs(t, err, model.ErrInvalidAddress)
	_, err = New(Policy{FeeRecipient: fees, IncomeBasis: "weekly"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRestoreReplaysWithoutJournalingOrPublishing(t *testing.T) {
	source := NewMemoryJournal()
	live := newEngine(t, WithJournal(source))
	scenario(t, live)

	pub := &mockPublisher{}
	pub.On("PublishEvent", model.EventFundsWithdrawn).Return(nil).Once()
	sink := &mockJournal{}
	sink.On("Append", model.EventFundsWithdrawn).Return(nil).Once()

	restored, err := Restore(context.Background(), policy(), source, WithJournal(sink), WithPublisher(pub))
	require.NoError(t, err)
	assert.Equal(t, uint64(15), restored.Seq())
	assert.Equal(t, snap(t, live), snap(t, restored))

	bal := restored.Funds(alice)
	require.True(t, bal.IsPositive())
	_, err = restored.Withdraw(context.Background(), alice, WithdrawInput{Amount: bal})
	require.NoError(t, err)
	assert.Equal(t, uint64(16), restored.Seq())

	pub.AssertExpectations(t)
	sink.AssertExpectations(t)
}
