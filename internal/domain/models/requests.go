package models

// Requests for the signal HTTP endpoints. Defined in domain for consistency and reuse.

type ExtractRequest struct {
	Text     string `json:"text" validate:"required,min=3"`
	Platform string `json:"platform" default:"telegram" validate:"oneof=telegram reddit"`
	Channel  string `json:"channel" default:"api"`
}

type ValidateRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,min=2,max=24"`
}

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
