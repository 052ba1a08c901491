package wallet

import "context"

// VerifiedPayment is the payment rail's answer for a submitted deposit.
type VerifiedPayment struct {
	Valid  bool
	Amount int64
}

// PaymentVerifier checks that a client-signed deposit actually settled
// on chain with the expected sender and amount. Bets are never credited
// without a successful verification (fail closed).
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, txRef, expectedSender string, expectedAmount int64) (VerifiedPayment, error)
}

// PayoutExecutor transfers tokens to a recipient wallet and returns the
// transaction reference.
type PayoutExecutor interface {
	ExecutePayout(ctx context.Context, recipient string, amount int64) (string, error)
}
