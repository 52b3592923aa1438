package rpc

import (
	"context"
	"fmt"

	"github.com/cyphera/settlement-engine/internal/apperror"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// UserServiceClient implements ports.UserService against the identity /
// referral service (spec §4.5), same transport and breaker shape as
// TicketServiceClient.
type UserServiceClient struct {
	conn    *grpc.ClientConn
	breaker *circuitBreaker
}

// NewUserServiceClient dials target (spec §6 GRPC_USER_SVC_TARGET).
func NewUserServiceClient(target string) (*UserServiceClient, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("user service: dial %s: %w", target, err)
	}
	return &UserServiceClient{
		conn:    conn,
		breaker: newCircuitBreaker(circuitFailureThreshold, circuitOpenDuration),
	}, nil
}

type getSystemUserIDRequest struct{}

type getSystemUserIDResponse struct {
	UserID string `json:"user_id"`
}

// GetSystemUserID returns the platform's own wallet-holding user id, used
// to route the platform's settlement share (spec §4.5).
func (c *UserServiceClient) GetSystemUserID(ctx context.Context) (uuid.UUID, error) {
	if !c.breaker.allow() {
		return uuid.Nil, apperror.UpstreamUnavailable("user service circuit is open", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	var resp getSystemUserIDResponse
	err := c.conn.Invoke(ctx, "/user.UserService/GetSystemUserID", &getSystemUserIDRequest{}, &resp)
	if err != nil {
		c.breaker.recordFailure()
		return uuid.Nil, apperror.UpstreamUnavailable("user service: get system user id failed", err)
	}
	c.breaker.recordSuccess()

	id, err := uuid.Parse(resp.UserID)
	if err != nil {
		return uuid.Nil, apperror.Malformed("user service returned an invalid system user id")
	}
	return id, nil
}

type getReferralInfoRequest struct {
	UserID string `json:"user_id"`
}

type getReferralInfoResponse struct {
	ReferrerUserID string `json:"referrer_user_id"`
}

// GetReferralInfo resolves the referrer (if any) who is entitled to a
// share of a purchase's fee (spec §4.5, §8 scenario S2).
func (c *UserServiceClient) GetReferralInfo(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	if !c.breaker.allow() {
		return nil, apperror.UpstreamUnavailable("user service circuit is open", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, callDeadline)
	defer cancel()

	var resp getReferralInfoResponse
	err := c.conn.Invoke(ctx, "/user.UserService/GetReferralInfo",
		&getReferralInfoRequest{UserID: userID.String()}, &resp)
	if err != nil {
		c.breaker.recordFailure()
		return nil, apperror.UpstreamUnavailable("user service: get referral info failed", err)
	}
	c.breaker.recordSuccess()

	if resp.ReferrerUserID == "" {
		return nil, nil
	}
	referrerID, err := uuid.Parse(resp.ReferrerUserID)
	if err != nil {
		return nil, apperror.Malformed("user service returned an invalid referrer id")
	}
	return &referrerID, nil
}

// Close releases the underlying connection.
func (c *UserServiceClient) Close() error {
	return c.conn.Close()
}
