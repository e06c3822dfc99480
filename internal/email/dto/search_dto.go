package dto

import "mailpilot-backend/pkg/chroma"

type SearchRequest struct {
	AccountID string `json:"accountId" binding:"required"`
	Query     string `json:"query" binding:"required"`
	Limit     int    `json:"limit"`
}

type SearchResponse struct {
	Hits []chroma.SearchHit `json:"hits"`
}
