package payment

// ChargeSessionRequest asks the gateway to open a checkout session.
type ChargeSessionRequest struct {
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ChargeSessionResponse carries the gateway session reference and the URL
// the customer is redirected to.
type ChargeSessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// RefundRequest refunds part or all of an existing session's charge.
type RefundRequest struct {
	SessionID   string `json:"session_id"`
	AmountCents int64  `json:"amount_cents"`
}

// RefundResponse is the gateway acknowledgement.
type RefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}
