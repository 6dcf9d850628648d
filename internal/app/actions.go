package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/authprovider"
	"github.com/dnguyen/buswatch/internal/model"
	"github.com/dnguyen/buswatch/internal/retry"
)

const actionTimeout = 30 * time.Second

// bookingResultMsg reports the outcome of a booking submission.
type bookingResultMsg struct {
	status string
}

// feedbackResultMsg reports the outcome of a feedback submission.
type feedbackResultMsg struct {
	status string
}

// submitBooking creates the booking on the backend. The request carries
// a client-minted idempotency key, so retrying transient failures
// cannot double-book the seat.
func (m Model) submitBooking(req model.BookingRequest) tea.Cmd {
	backend := m.deps.API
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		booking, err := retry.Do(ctx, func(ctx context.Context) (*model.Booking, error) {
			return backend.CreateBooking(ctx, req)
		}, retry.WithRetryable(api.IsRetryable))
		if err != nil {
			return bookingResultMsg{status: "Booking failed: " + api.UserMessage(err)}
		}

		if booking.CheckoutURL != "" {
			return bookingResultMsg{
				status: fmt.Sprintf("Seat %s reserved. Pay at %s", booking.Seat, booking.CheckoutURL),
			}
		}
		return bookingResultMsg{
			status: fmt.Sprintf("Seat %s booked (%s).", booking.Seat, booking.Status),
		}
	}
}

// submitFeedback sends the rating to the backend.
func (m Model) submitFeedback(fb model.Feedback) tea.Cmd {
	backend := m.deps.API
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, backend.SubmitFeedback(ctx, fb)
		}, retry.WithRetryable(api.IsRetryable))
		if err != nil {
			return feedbackResultMsg{status: "Feedback failed: " + api.UserMessage(err)}
		}
		return feedbackResultMsg{status: "Thanks for the feedback!"}
	}
}

// discountSubscribedMsg delivers the realtime event channel once the
// websocket is up.
type discountSubscribedMsg struct {
	events <-chan authprovider.ChangeEvent
}

// discountMsg carries one promo announcement from the realtime channel.
type discountMsg struct {
	text string
}

// discountClosedMsg signals the realtime channel is gone.
type discountClosedMsg struct{}

// subscribeDiscounts opens the provider's realtime subscription for the
// discounts table. Failure is silent: the promo banner is a bonus, not
// a requirement.
func (m Model) subscribeDiscounts() tea.Cmd {
	provider := m.deps.Provider
	ctx := m.rtCtx
	log := m.deps.Log
	return func() tea.Msg {
		events, err := provider.Subscribe(ctx, "discounts", "")
		if err != nil {
			log.Warn().Err(err).Msg("discount subscription unavailable")
			return discountClosedMsg{}
		}
		return discountSubscribedMsg{events: events}
	}
}

// waitDiscount blocks on the next realtime discount event.
func (m Model) waitDiscount() tea.Cmd {
	ch := m.discountCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return discountClosedMsg{}
		}
		return discountMsg{text: formatDiscount(ev)}
	}
}

// formatDiscount renders a discounts row change as a one-line banner.
func formatDiscount(ev authprovider.ChangeEvent) string {
	title, _ := ev.Record["title"].(string)
	if title == "" {
		title, _ = ev.Record["code"].(string)
	}
	if title == "" {
		return "New discount available"
	}

	if pct, ok := ev.Record["percent"].(float64); ok && pct > 0 {
		return fmt.Sprintf("%s (%.0f%% off)", title, pct)
	}
	return title
}
