package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition_ForwardPath(t *testing.T) {
	assert.NoError(t, CanTransition(StatusPending, StatusProcessing))
	assert.NoError(t, CanTransition(StatusProcessing, StatusShipped))
	assert.NoError(t, CanTransition(StatusShipped, StatusCompleted))
}

func TestCanTransition_CancelFromNonTerminal(t *testing.T) {
	for _, from := range []OrderStatus{StatusPending, StatusProcessing, StatusShipped} {
		assert.NoError(t, CanTransition(from, StatusCancelled), "from %s", from)
	}
}

func TestCanTransition_RejectsBackwardsAndSkips(t *testing.T) {
	assert.Error(t, CanTransition(StatusCompleted, StatusPending))
	assert.Error(t, CanTransition(StatusShipped, StatusProcessing))
	assert.Error(t, CanTransition(StatusPending, StatusCompleted))
	assert.Error(t, CanTransition(StatusCompleted, StatusCancelled))
}

func TestCanTransition_DescribesTerminalState(t *testing.T) {
	err := CanTransition(StatusCancelled, StatusPending)
	assert.EqualError(t, err, "cannot change order status from cancelled to pending, allowed: none (terminal state)")
}

// Terminal statuses have no outgoing transitions
func TestProperty_TerminalStatusesHaveNoExits(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("no transition leaves a terminal status", prop.ForAll(
		func(from string, to string) bool {
			f, tt := OrderStatus(from), OrderStatus(to)
			if !f.Terminal() {
				return true
			}
			return CanTransition(f, tt) != nil
		},
		gen.OneConstOf("pending", "processing", "shipped", "completed", "cancelled"),
		gen.OneConstOf("pending", "processing", "shipped", "completed", "cancelled"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, StatusShipped.Valid())
	assert.False(t, OrderStatus("lost").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestOrderStatus_CountsAsRevenue(t *testing.T) {
	assert.False(t, StatusPending.CountsAsRevenue())
	assert.False(t, StatusCancelled.CountsAsRevenue())
	assert.True(t, StatusProcessing.CountsAsRevenue())
	assert.True(t, StatusShipped.CountsAsRevenue())
	assert.True(t, StatusCompleted.CountsAsRevenue())
}
