package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// callDeadline bounds every outbound gRPC call (spec §5 "0.5s per-call
// deadline").
const callDeadline = 500 * time.Millisecond

const (
	circuitFailureThreshold = 10
	circuitOpenDuration     = 60 * time.Second
)

// TicketServiceClient implements ports.TicketService against the external
// ticketing service, grounded on the teacher's delegation_client.go
// connection-management pattern (grpc.Dial with insecure credentials,
// stored alongside a typed stub).
type TicketServiceClient struct {
	conn    *grpc.ClientConn
	breaker *circuitBreaker
}

// NewTicketServiceClient dials target (spec §6 GRPC_TICKET_SVC_TARGET).
func NewTicketServiceClient(target string) (*TicketServiceClient, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("ticket service: dial %s: %w", target, err)
	}
	return &TicketServiceClient{
		conn:    conn,
		breaker: newCircuitBreaker(circuitFailureThreshold, circuitOpenDuration),
	}, nil
}

type markReservationAsPaidRequest struct {
	Reference string `json:"reference"`
}

type markReservationAsPaidResponse struct{}

// MarkReservationAsPaid notifies the ticketing service that a purchase's
// funds have cleared (spec §4.5).
func (c *TicketServiceClient) MarkReservationAsPaid(ctx context.Context, reference uuid.UUID) error {
	if !c.breaker.allow() {
		return apperror.UpstreamUnavailable("ticket service circuit is open", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	var resp markReservationAsPaidResponse
	err := c.conn.Invoke(ctx, "/ticket.TicketService/MarkReservationAsPaid",
		&markReservationAsPaidRequest{Reference: reference.String()}, &resp)
	if err != nil {
		c.breaker.recordFailure()
		return apperror.UpstreamUnavailable("ticket service: mark reservation as paid failed", err)
	}
	c.breaker.recordSuccess()
	return nil
}

type getEventOrganizerRequest struct {
	Slug string `json:"slug"`
}

type getEventOrganizerResponse struct {
	OrganizerUserID string `json:"organizer_user_id"`
}

// GetEventOrganizer resolves the organizer user id for an event slug,
// needed to route the organizer's settlement share (spec §4.5).
func (c *TicketServiceClient) GetEventOrganizer(ctx context.Context, slug string) (uuid.UUID, error) {
	if !c.breaker.allow() {
		return uuid.Nil, apperror.UpstreamUnavailable("ticket service circuit is open", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	var resp getEventOrganizerResponse
	err := c.conn.Invoke(ctx, "/ticket.TicketService/GetEventOrganizer",
		&getEventOrganizerRequest{Slug: slug}, &resp)
	if err != nil {
		c.breaker.recordFailure()
		return uuid.Nil, apperror.UpstreamUnavailable("ticket service: get event organizer failed", err)
	}
	c.breaker.recordSuccess()

	id, err := uuid.Parse(resp.OrganizerUserID)
	if err != nil {
		return uuid.Nil, apperror.Malformed("ticket service returned an invalid organizer id")
	}
	return id, nil
}

// Close releases the underlying connection.
func (c *TicketServiceClient) Close() error {
	return c.conn.Close()
}
