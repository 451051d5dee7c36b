package api

import "github.com/mmcdole/cinesync/internal/domain"

// itemsResponse is the envelope shared by every list endpoint.
type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type ratingRequest struct {
	Value int `json:"value"`
}

// moviesResponse and friends name the concrete envelopes for readability at
// call sites.
type (
	moviesResponse  = itemsResponse[domain.Movie]
	castResponse    = itemsResponse[domain.CastMember]
	trailerResponse = itemsResponse[domain.Trailer]
	reviewResponse  = itemsResponse[domain.Review]
	genreResponse   = itemsResponse[domain.Genre]
)
