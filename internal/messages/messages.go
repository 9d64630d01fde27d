package messages

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FlowDirection says whether gas moves into or out of the store.
type FlowDirection string

const (
	// Inject adds gas to the store.
	Inject FlowDirection = "inject"
	// Withdraw removes gas from the store.
	Withdraw FlowDirection = "withdraw"
)

// Valid reports whether the direction is one of the two known values.
func (d FlowDirection) Valid() bool { return d == Inject || d == Withdraw }

// SignedDelta converts a direction plus amount into a signed quantity change.
func SignedDelta(direction FlowDirection, amount int) int {
	if direction == Withdraw {
		return -amount
	}
	return amount
}

// Request asks the plant to inject or withdraw gas for a customer.
type Request struct {
	RequestID   uuid.UUID     `json:"requestId"`
	CustomerID  uuid.UUID     `json:"customerId"`
	Direction   FlowDirection `json:"direction"`
	AmountInGWh int           `json:"amountInGWh"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Response reports the outcome of a flow request, including the plant's
// fill levels at the time of processing.
type Response struct {
	ResponseID       uuid.UUID     `json:"responseId"`
	RequestID        uuid.UUID     `json:"requestId"`
	CustomerID       uuid.UUID     `json:"customerId"`
	Direction        FlowDirection `json:"direction"`
	AmountInGWh      int           `json:"amountInGWh"`
	Success          bool          `json:"success"`
	Timestamp        time.Time     `json:"timestamp"`
	CurrentFillLevel int           `json:"currentFillLevel"`
	MaxFillLevel     int           `json:"maxFillLevel"`
}

// StatusUpdate is the customer-facing contract broadcast after an inbox item
// is applied. TotalAmountInGWh is the customer's quantity after the update
// (or the last known quantity when Success is false).
type StatusUpdate struct {
	ResponseID       uuid.UUID     `json:"responseId"`
	RequestID        uuid.UUID     `json:"requestId"`
	CustomerID       uuid.UUID     `json:"customerId"`
	Direction        FlowDirection `json:"direction"`
	AmountInGWh      int           `json:"amountInGWh"`
	Success          bool          `json:"success"`
	Timestamp        time.Time     `json:"timestamp"`
	TotalAmountInGWh int           `json:"totalAmountInGWh"`
	CurrentFillLevel int           `json:"currentFillLevel"`
}

// StatusFromResponse builds the customer contract from a plant response and
// the computed customer total.
func StatusFromResponse(resp Response, total int) StatusUpdate {
	return StatusUpdate{
		ResponseID:       resp.ResponseID,
		RequestID:        resp.RequestID,
		CustomerID:       resp.CustomerID,
		Direction:        resp.Direction,
		AmountInGWh:      resp.AmountInGWh,
		Success:          resp.Success,
		Timestamp:        resp.Timestamp,
		TotalAmountInGWh: total,
		CurrentFillLevel: resp.CurrentFillLevel,
	}
}

// ResponseForRequest builds a plant response echoing the request fields.
func ResponseForRequest(req Request, responseID uuid.UUID, success bool, currentFill, maxFill int, now time.Time) Response {
	return Response{
		ResponseID:       responseID,
		RequestID:        req.RequestID,
		CustomerID:       req.CustomerID,
		Direction:        req.Direction,
		AmountInGWh:      req.AmountInGWh,
		Success:          success,
		Timestamp:        now,
		CurrentFillLevel: currentFill,
		MaxFillLevel:     maxFill,
	}
}

// maxRequestAmount bounds a single flow request; the bound is exclusive.
const maxRequestAmount = 100

// Validate checks user input on a flow request before admission.
func (r Request) Validate() error {
	if r.RequestID == uuid.Nil {
		return fmt.Errorf("request id is required")
	}
	if !r.Direction.Valid() {
		return fmt.Errorf("unknown flow direction %q", r.Direction)
	}
	if r.AmountInGWh <= 0 || r.AmountInGWh >= maxRequestAmount {
		return fmt.Errorf("amount must be between 0 and %d exclusive, got %d", maxRequestAmount, r.AmountInGWh)
	}
	return nil
}

// Encode serializes a value as the JSON document persisted in the store and
// published on the bus.
func Encode(v any) ([]byte, error) { return json.Marshal(v) }
