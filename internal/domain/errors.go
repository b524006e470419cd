package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInsufficientBalance is returned when the quote balance cannot cover the next order.
	ErrInsufficientBalance = errors.New("insufficient quote balance")
	// ErrPositionClosed is returned when an operation targets a closed position.
	ErrPositionClosed = errors.New("position is closed")
	// ErrCampaignCompleted is returned when a fill is registered against a campaign at its order cap.
	ErrCampaignCompleted = errors.New("campaign already completed")
)

// ExchangeError carries the code and message of a rejected exchange request.
type ExchangeError struct {
	Code    int64
	Message string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange rejected request: code=%d message=%s", e.Code, e.Message)
}
