// Package chaingateway is the HTTP client for the token payment rail.
// The gateway custodies escrow: the arena asks it to verify inbound
// transfers and to execute payouts, and never signs transactions itself.
package chaingateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mverch/highnoon/go/clients"
	"github.com/mverch/highnoon/go/internal/wallet"
)

// Client talks to the chain gateway. It implements both
// wallet.PaymentVerifier and wallet.PayoutExecutor.
type Client struct {
	*clients.BaseClient
}

func NewClient(baseURL, apiKey string) *Client {
	base := clients.NewBaseClient(baseURL)
	base.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		base.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Client{BaseClient: base}
}

type verifyRequest struct {
	TxRef          string `json:"tx_ref"`
	ExpectedSender string `json:"expected_sender"`
	ExpectedAmount int64  `json:"expected_amount"`
}

type verifyResponse struct {
	Valid  bool   `json:"valid"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// VerifyPayment confirms that txRef moved expectedAmount from
// expectedSender into escrow. A reachable gateway that rejects the
// transfer is not an error; the caller gets Valid=false.
func (c *Client) VerifyPayment(ctx context.Context, txRef, expectedSender string, expectedAmount int64) (wallet.VerifiedPayment, error) {
	body, err := json.Marshal(verifyRequest{
		TxRef:          txRef,
		ExpectedSender: expectedSender,
		ExpectedAmount: expectedAmount,
	})
	if err != nil {
		return wallet.VerifiedPayment{}, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	respBody, err := c.Post(ctx, verifyTransactionEndpoint, bytes.NewReader(body))
	if err != nil {
		return wallet.VerifiedPayment{}, fmt.Errorf("failed to verify payment %s: %w", txRef, err)
	}

	var resp verifyResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return wallet.VerifiedPayment{}, fmt.Errorf("failed to decode verify response: %w", err)
	}

	if !resp.Valid {
		log.Warn().
			Str("tx_ref", txRef).
			Str("sender", expectedSender).
			Str("reason", resp.Reason).
			Msg("payment rejected by chain gateway")
	}
	return wallet.VerifiedPayment{Valid: resp.Valid, Amount: resp.Amount}, nil
}

type payoutRequest struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

type payoutResponse struct {
	TxRef string `json:"tx_ref"`
}

// ExecutePayout transfers amount from escrow to recipient and returns
// the gateway's transaction reference.
func (c *Client) ExecutePayout(ctx context.Context, recipient string, amount int64) (string, error) {
	body, err := json.Marshal(payoutRequest{Recipient: recipient, Amount: amount})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payout request: %w", err)
	}

	respBody, err := c.Post(ctx, executePayoutEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to execute payout to %s: %w", recipient, err)
	}

	var resp payoutResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to decode payout response: %w", err)
	}
	if resp.TxRef == "" {
		return "", fmt.Errorf("chain gateway returned empty tx ref for payout to %s", recipient)
	}
	return resp.TxRef, nil
}
