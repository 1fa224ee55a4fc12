package billing

// CheckoutRequest starts a hosted checkout for a credit pack.
type CheckoutRequest struct {
	Credits int `json:"credits" validate:"required,min=1,max=1000"`
}

// CheckoutResponse carries the gateway redirect for the started checkout.
type CheckoutResponse struct {
	TransactionID string  `json:"transaction_id"`
	CheckoutURL   string  `json:"checkout_url"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// webhookNotification is the body Mercado Pago posts to the webhook.
type webhookNotification struct {
	Topic    string `json:"topic"`
	Resource string `json:"resource"`
}
