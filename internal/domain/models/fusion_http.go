package models

// Requests for fusion HTTP endpoints. Defined in domain for consistency and reuse.

type AnalyzeRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Fresh  bool   `query:"fresh" json:"fresh"`
}

type VerdictRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
}

type TopRequest struct {
	Limit int `query:"limit" json:"limit" default:"3" validate:"gte=1,lte=10"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m 1h 4h"`
	Limit  int    `query:"limit" json:"limit" default:"10000" validate:"gte=1,lte=50000"`
}

type LevelsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"600" validate:"gte=1,lte=5000"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m 1h 4h"`
}
