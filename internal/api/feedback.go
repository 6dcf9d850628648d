package api

import (
	"context"
	"fmt"

	"github.com/dnguyen/buswatch/internal/model"
)

// SubmitFeedback posts a rating and comment for a bus.
func (c *Client) SubmitFeedback(ctx context.Context, fb model.Feedback) error {
	if err := c.post(ctx, "/feedback", fb, nil); err != nil {
		return fmt.Errorf("submitting feedback: %w", err)
	}
	return nil
}

// ListRecentFeedback retrieves the most recent feedback entries.
func (c *Client) ListRecentFeedback(ctx context.Context) ([]model.Feedback, error) {
	var entries []model.Feedback
	if err := c.get(ctx, "/feedback/recent", &entries); err != nil {
		return nil, fmt.Errorf("listing recent feedback: %w", err)
	}
	return entries, nil
}
