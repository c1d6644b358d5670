package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardTransitions(t *testing.T) {
	path := []OrderStatus{
		StatusDraft, StatusPending, StatusApproved, StatusPicking,
		StatusPacked, StatusReady, StatusScheduled, StatusInTransit,
		StatusDelivered, StatusCompleted,
	}

	for i := 0; i < len(path)-1; i++ {
		assert.True(t, path[i].CanTransition(path[i+1]),
			"%s -> %s should be legal", path[i], path[i+1])
		assert.False(t, path[i+1].CanTransition(path[i]),
			"%s -> %s must be one-directional", path[i+1], path[i])
	}
}

func TestNoStatusSkipping(t *testing.T) {
	assert.False(t, StatusDraft.CanTransition(StatusApproved))
	assert.False(t, StatusPending.CanTransition(StatusPicking))
	assert.False(t, StatusApproved.CanTransition(StatusDelivered))
	assert.False(t, StatusCompleted.CanTransition(StatusDraft))
}

func TestRejectionAndResubmission(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusRejected))
	assert.True(t, StatusRejected.CanTransition(StatusPending),
		"rejected orders may be resubmitted")
	assert.False(t, StatusApproved.CanTransition(StatusRejected),
		"rejection only happens from pending")
}

func TestEditableStatuses(t *testing.T) {
	editable := []OrderStatus{
		StatusDraft, StatusPending, StatusApproved,
		StatusPicking, StatusPacked, StatusReady,
	}
	locked := []OrderStatus{
		StatusScheduled, StatusInTransit, StatusDelivered,
		StatusCompleted, StatusRejected, StatusCancelled,
	}

	for _, s := range editable {
		assert.True(t, s.IsEditable(), "%s should allow structural edits", s)
	}
	for _, s := range locked {
		assert.False(t, s.IsEditable(), "%s should lock structural edits", s)
	}
}

func TestCancellableStatuses(t *testing.T) {
	for _, s := range []OrderStatus{StatusDraft, StatusPending, StatusApproved,
		StatusPicking, StatusPacked, StatusReady, StatusScheduled, StatusInTransit} {
		assert.True(t, s.CanCancel(), "%s should be cancellable", s)
	}
	for _, s := range []OrderStatus{StatusDelivered, StatusCompleted,
		StatusCancelled, StatusRejected} {
		assert.False(t, s.CanCancel(), "%s should not be cancellable", s)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusDelivered.IsTerminal())
	assert.False(t, StatusRejected.IsTerminal())
}

func TestPaymentAcceptance(t *testing.T) {
	assert.True(t, StatusDelivered.AcceptsPayment())
	assert.True(t, StatusDraft.AcceptsPayment())
	assert.False(t, StatusCancelled.AcceptsPayment())
	assert.False(t, StatusRejected.AcceptsPayment())
}

func TestStatusValidity(t *testing.T) {
	assert.True(t, StatusInTransit.IsValid())
	assert.False(t, OrderStatus("SHIPPED").IsValid())
	assert.False(t, OrderStatus("").IsValid())
}
