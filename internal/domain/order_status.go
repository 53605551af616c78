package domain

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// AllOrderStatuses lists every known status in lifecycle order
var AllOrderStatuses = []OrderStatus{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusCompleted,
	StatusCancelled,
}

// RevenueStatuses are the statuses whose totals count as revenue
var RevenueStatuses = []OrderStatus{
	StatusProcessing,
	StatusShipped,
	StatusCompleted,
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition leaves s
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CountsAsRevenue reports whether orders in s contribute to revenue
func (s OrderStatus) CountsAsRevenue() bool {
	for _, r := range RevenueStatuses {
		if s == r {
			return true
		}
	}
	return false
}

type statusTransition struct {
	From OrderStatus
	To   OrderStatus
}

// orderTransitions is the authoritative order state machine
var orderTransitions = []statusTransition{
	{From: StatusPending, To: StatusProcessing},
	{From: StatusProcessing, To: StatusShipped},
	{From: StatusShipped, To: StatusCompleted},
	{From: StatusPending, To: StatusCancelled},
	{From: StatusProcessing, To: StatusCancelled},
	{From: StatusShipped, To: StatusCancelled},
}

var transitionSet = func() map[statusTransition]bool {
	m := make(map[statusTransition]bool, len(orderTransitions))
	for _, t := range orderTransitions {
		m[t] = true
	}
	return m
}()

// ValidTransitionsFrom returns the statuses reachable from s in one step
func ValidTransitionsFrom(s OrderStatus) []OrderStatus {
	var next []OrderStatus
	for _, t := range orderTransitions {
		if t.From == s {
			next = append(next, t.To)
		}
	}
	return next
}

// CanTransition returns an error describing why from -> to is not allowed
func CanTransition(from, to OrderStatus) error {
	if transitionSet[statusTransition{From: from, To: to}] {
		return nil
	}
	return fmt.Errorf("cannot change order status from %s to %s, allowed: %s", from, to, describeTransitionsFrom(from))
}

func describeTransitionsFrom(s OrderStatus) string {
	next := ValidTransitionsFrom(s)
	if len(next) == 0 {
		return "none (terminal state)"
	}
	names := make([]string, len(next))
	for i, n := range next {
		names[i] = string(n)
	}
	return strings.Join(names, ", ")
}
