package chaingateway

const (
	verifyTransactionEndpoint = "/v1/transactions/verify"
	executePayoutEndpoint     = "/v1/payouts"
)
