package restapi

import "etfservice/pkg/types"

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type symbolInfo struct {
	ID       uint32 `json:"id"`
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	TickSize int32  `json:"tick_size"`
}

type symbolsResponse struct {
	Symbols           []symbolInfo `json:"symbols"`
	ETFSymbol         uint32       `json:"etf_symbol"`
	UnderlyingSymbols []uint32     `json:"underlying_symbols"`
}

type positionsResponse struct {
	ClientID  uint32           `json:"client_id"`
	Positions map[string]int64 `json:"positions"`
}

type positionResponse struct {
	ClientID uint32 `json:"client_id"`
	Symbol   uint32 `json:"symbol"`
	Ticker   string `json:"ticker"`
	Position int64  `json:"position"`
}

type createRedeemRequest struct {
	ClientID uint32 `json:"client_id"`
	Amount   int64  `json:"amount"`
}

type createRedeemResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	UndyBalance int64  `json:"undy_balance"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type historyResponse struct {
	History []types.HistoryRecord `json:"history"`
}
