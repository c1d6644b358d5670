package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/apperr"
	"pricing-service/internal/models"
)

// stepClock advances a fixed amount per reading so audit timestamps are
// strictly ordered and deterministic.
type stepClock struct {
	current time.Time
}

func (c *stepClock) Now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

func newTestClock() *stepClock {
	return &stepClock{current: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

var buyer = Actor{Name: "d.okafor", Role: "sales"}

func bracketVariant() models.Variant {
	return models.Variant{
		SKU:            "BRK-500",
		ProductName:    "Steel Bracket",
		Description:    "Galvanized, M8 bore",
		ListUnitPrice:  decimal.NewFromInt(500),
		AvailableStock: 40,
		Tiers: []models.PriceTier{
			{MinQuantity: 1, UnitPrice: decimal.NewFromInt(450), DiscountPercent: decimal.Zero},
			{MinQuantity: 5, UnitPrice: decimal.NewFromInt(428), DiscountPercent: decimal.NewFromInt(5)},
			{MinQuantity: 10, UnitPrice: decimal.NewFromInt(405), DiscountPercent: decimal.NewFromInt(10)},
		},
	}
}

func draftWithItem(t *testing.T, qty int) (*Session, models.OrderLineItem) {
	t.Helper()
	order := NewDraftOrder("CUST-7", newTestClock())
	session := Open(order, newTestClock())
	item, err := session.AddItem(buyer, bracketVariant(), qty, nil)
	require.NoError(t, err)
	return session, item
}

func TestAddItemRecalculatesAndAudits(t *testing.T) {
	session, item := draftWithItem(t, 10)

	order := session.Order()
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(4050)))
	assert.True(t, order.TotalAmount.Equal(order.Subtotal))
	assert.True(t, order.BalanceDue.Equal(order.TotalAmount))

	entries := session.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionItemAdded, entries[0].Action)
	assert.Equal(t, "d.okafor", entries[0].PerformedBy)
	assert.Equal(t, "sales", entries[0].PerformedByRole)
	assert.Equal(t, item.LineTotal.String(), entries[0].Metadata["addedAmount"])
}

func TestEveryAcceptedMutationAppendsExactlyOneEntry(t *testing.T) {
	session, item := draftWithItem(t, 10)

	require.NoError(t, session.ChangeQuantity(buyer, item.ID, 12, bracketVariant()))
	require.NoError(t, session.OverridePrice(buyer, item.ID, decimal.NewFromInt(400), bracketVariant()))
	require.NoError(t, session.SetOrderDiscount(buyer, decimal.NewFromInt(200)))
	require.NoError(t, session.ChangeStatus(buyer, models.StatusPending))

	entries := session.Entries()
	require.Len(t, entries, 5)
	for i := 1; i < len(entries); i++ {
		assert.Equal(t, entries[i-1].Sequence+1, entries[i].Sequence, "sequences are gapless")
		assert.True(t, entries[i].Timestamp.After(entries[i-1].Timestamp), "timestamps are ordered")
	}
}

func TestRejectedMutationAppendsNothing(t *testing.T) {
	session, item := draftWithItem(t, 10)
	before := session.Order()

	err := session.ChangeQuantity(buyer, item.ID, 0, bracketVariant())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidQuantity, apperr.CodeOf(err))

	after := session.Order()
	assert.True(t, before.Subtotal.Equal(after.Subtotal))
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, session.Entries(), 1, "only the original add is recorded")
}

func TestStructuralEditRejectedOnDeliveredOrder(t *testing.T) {
	order := NewDraftOrder("CUST-7", newTestClock())
	order.Status = models.StatusDelivered
	order.LineItems = []models.OrderLineItem{{Quantity: 3, SKU: "BRK-500"}}
	session := Open(order, newTestClock())

	err := session.ChangeQuantity(buyer, order.LineItems[0].ID, 5, bracketVariant())

	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
	assert.Empty(t, session.Entries(), "rejected mutation leaves the audit log unchanged")
	assert.Equal(t, 3, session.Order().LineItems[0].Quantity)
}

func TestRemoveItemRecordsReducedAmount(t *testing.T) {
	session, item := draftWithItem(t, 10)

	require.NoError(t, session.RemoveItem(buyer, item.ID))

	order := session.Order()
	assert.Empty(t, order.LineItems)
	assert.True(t, order.Subtotal.IsZero())

	entries := session.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditActionItemRemoved, entries[1].Action)
	assert.Equal(t, item.LineTotal.String(), entries[1].Metadata["reducedAmount"])
}

func TestRemoveUnknownItem(t *testing.T) {
	session, _ := draftWithItem(t, 10)

	err := session.RemoveItem(buyer, models.Order{}.ID)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestOverridePriceRecordsSavedAmount(t *testing.T) {
	session, item := draftWithItem(t, 10)

	require.NoError(t, session.OverridePrice(buyer, item.ID, decimal.NewFromInt(380), bracketVariant()))

	order := session.Order()
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(3800)))

	entries := session.Entries()
	require.Len(t, entries, 2)
	// 10 * (405 - 380)
	assert.Equal(t, "250", entries[1].Metadata["savedAmount"])
	assert.Equal(t, "405.00", *entries[1].OldValue)
	assert.Equal(t, "380.00", *entries[1].NewValue)
}

func TestOverrideAboveListIsFlagged(t *testing.T) {
	session, item := draftWithItem(t, 10)

	require.NoError(t, session.OverridePrice(buyer, item.ID, decimal.NewFromInt(520), bracketVariant()))

	order := session.Order()
	assert.True(t, order.LineItems[0].FlaggedForReview)
	assert.True(t, order.LineItems[0].DiscountAmount.IsZero())

	entries := session.Entries()
	assert.Equal(t, true, entries[1].Metadata["flaggedForReview"])
}

func TestOrderDiscountValidation(t *testing.T) {
	session, _ := draftWithItem(t, 10)

	err := session.SetOrderDiscount(buyer, decimal.NewFromInt(-1))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	err = session.SetOrderDiscount(buyer, decimal.NewFromInt(999999))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	require.NoError(t, session.SetOrderDiscount(buyer, decimal.NewFromInt(50)))
	order := session.Order()
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(4000)))
}

func TestRecordPaymentAndOverpaymentFlag(t *testing.T) {
	session, _ := draftWithItem(t, 10)

	require.NoError(t, session.RecordPayment(buyer, decimal.NewFromInt(4000), false))
	order := session.Order()
	assert.True(t, order.BalanceDue.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, models.PaymentStatusPartiallyPaid, order.PaymentStatus)

	// unacknowledged overpayment is rejected
	err := session.RecordPayment(buyer, decimal.NewFromInt(100), false)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	require.NoError(t, session.RecordPayment(buyer, decimal.NewFromInt(100), true))
	order = session.Order()
	assert.True(t, order.BalanceDue.IsNegative())
	assert.True(t, order.OverpaymentAcknowledged)
	assert.Equal(t, models.PaymentStatusOverpaid, order.PaymentStatus)
}

func TestRemoveItemRejectedWhenPaymentExceedsRemainder(t *testing.T) {
	session, item := draftWithItem(t, 10) // subtotal 4050
	require.NoError(t, session.RecordPayment(buyer, decimal.NewFromInt(4000), false))

	err := session.RemoveItem(buyer, item.ID)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	order := session.Order()
	assert.False(t, order.BalanceDue.IsNegative(), "balance stays non-negative without acknowledgement")
	assert.False(t, order.OverpaymentAcknowledged)
	require.Len(t, order.LineItems, 1)
	assert.Len(t, session.Entries(), 2, "only the add and the payment are recorded")
}

func TestQuantityReductionRejectedBelowAmountPaid(t *testing.T) {
	session, item := draftWithItem(t, 10) // subtotal 4050
	require.NoError(t, session.RecordPayment(buyer, decimal.NewFromInt(4000), false))

	// 5 x 428 = 2140, well under the 4000 already paid
	err := session.ChangeQuantity(buyer, item.ID, 5, bracketVariant())

	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Equal(t, 10, session.Order().LineItems[0].Quantity)
}

func TestPriceReductionRejectedBelowAmountPaid(t *testing.T) {
	session, item := draftWithItem(t, 10) // subtotal 4050
	require.NoError(t, session.RecordPayment(buyer, decimal.NewFromInt(4000), false))

	err := session.OverridePrice(buyer, item.ID, decimal.NewFromInt(100), bracketVariant())

	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.False(t, session.Order().BalanceDue.IsNegative())
}

func TestShrinkAllowedAfterAcknowledgedOverpayment(t *testing.T) {
	session, item := draftWithItem(t, 10) // subtotal 4050
	require.NoError(t, session.RecordPayment(buyer, decimal.NewFromInt(4100), true))
	require.True(t, session.Order().OverpaymentAcknowledged)

	require.NoError(t, session.ChangeQuantity(buyer, item.ID, 5, bracketVariant()))

	order := session.Order()
	assert.True(t, order.BalanceDue.IsNegative())
	assert.Equal(t, models.PaymentStatusOverpaid, order.PaymentStatus)
}

func TestOrderDiscountRejectedBelowAmountPaid(t *testing.T) {
	session, _ := draftWithItem(t, 10) // subtotal 4050
	require.NoError(t, session.RecordPayment(buyer, decimal.NewFromInt(4000), false))

	// total would drop to 3950, under the 4000 already paid
	err := session.SetOrderDiscount(buyer, decimal.NewFromInt(100))

	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.True(t, session.Order().OrderDiscountAmount.IsZero())
}

func TestRemoveItemRejectedWhenDiscountExceedsRemainingSubtotal(t *testing.T) {
	session, item := draftWithItem(t, 10) // 4050
	_, err := session.AddItem(buyer, bracketVariant(), 2, nil) // +900
	require.NoError(t, err)
	require.NoError(t, session.SetOrderDiscount(buyer, decimal.NewFromInt(1000)))

	// dropping the large line leaves a 900 subtotal under the 1000 discount
	err = session.RemoveItem(buyer, item.ID)

	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	order := session.Order()
	require.Len(t, order.LineItems, 2)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(3950)))
}

func TestDiscardRestoresOpeningState(t *testing.T) {
	session, item := draftWithItem(t, 10)
	opened := session.Order()

	require.NoError(t, session.ChangeQuantity(buyer, item.ID, 25, bracketVariant()))
	require.NoError(t, session.SetOrderDiscount(buyer, decimal.NewFromInt(10)))
	require.True(t, session.Dirty())

	session.Discard()

	assert.False(t, session.Dirty())
	assert.Empty(t, session.Entries(), "no audit entries for abandoned edits")
	restored := session.Order()
	assert.True(t, opened.Subtotal.Equal(restored.Subtotal))
	assert.Equal(t, opened.Version, restored.Version)
	assert.Equal(t, opened.LineItems[0].Quantity, restored.LineItems[0].Quantity)
}

func TestCommitVersionTracksMutationCount(t *testing.T) {
	order := NewDraftOrder("CUST-7", newTestClock())
	order.Version = 7
	session := Open(order, newTestClock())
	assert.Equal(t, int64(7), session.BaseVersion())

	_, err := session.AddItem(buyer, bracketVariant(), 5, nil)
	require.NoError(t, err)
	require.NoError(t, session.ChangeStatus(buyer, models.StatusPending))

	committed, entries := session.Commit()
	assert.Equal(t, int64(9), committed.Version)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(8), entries[0].Sequence)
	assert.Equal(t, int64(9), entries[1].Sequence)
}
