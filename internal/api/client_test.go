package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/gateway"
	"github.com/mmcdole/cinesync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

func newTestClient(t *testing.T, token string, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body)})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	tokens := store.NewMemory()
	require.NoError(t, tokens.SaveToken(token))

	gw := gateway.New(gateway.Options{BaseURL: srv.URL, Tokens: tokens})
	return NewClient(gw, nil), &calls
}

func respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func TestCollectionEndpoints(t *testing.T) {
	client, calls := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]interface{}{
			"items": []map[string]interface{}{{"id": 1, "title": "Alien", "vote_average": 8.5}},
		})
	})
	ctx := context.Background()

	movies, err := client.GetPopular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Alien", movies[0].Title)
	assert.Equal(t, 8.5, movies[0].Rating)
	assert.False(t, movies[0].FetchedAt.IsZero())

	_, err = client.GetByGenre(ctx, 28, 1)
	require.NoError(t, err)
	_, err = client.SearchMovies(ctx, "alien", 3)
	require.NoError(t, err)
	_, err = client.GetMoviesByIDs(ctx, []int{1, 2, 3})
	require.NoError(t, err)
	_, err = client.GetCast(ctx, 55, 1)
	require.NoError(t, err)

	got := *calls
	require.Len(t, got, 5)
	assert.Equal(t, "/movies/popular", got[0].path)
	assert.Equal(t, "page=2", got[0].query)
	assert.Equal(t, "/movies/genre/28", got[1].path)
	assert.Equal(t, "/movies/search", got[2].path)
	assert.Equal(t, "page=3&query=alien", got[2].query)
	assert.Equal(t, "/movies", got[3].path)
	assert.Equal(t, "ids=1%2C2%2C3", got[3].query)
	assert.Equal(t, "/movies/55/cast", got[4].path)
}

func TestGetMoviesByIDsEmptySkipsNetwork(t *testing.T) {
	client, calls := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, nil)
	})
	movies, err := client.GetMoviesByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, movies)
	assert.Empty(t, *calls)
}

func TestGetMovieNotFound(t *testing.T) {
	client, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusNotFound, nil)
	})
	_, err := client.GetMovie(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestListAndRatingMutations(t *testing.T) {
	client, calls := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, client.AddToList(ctx, domain.ListFavorites, 55))
	require.NoError(t, client.RemoveFromList(ctx, domain.ListWatchlist, 55))
	require.NoError(t, client.PutRating(ctx, 55, 7))
	require.NoError(t, client.DeleteRating(ctx, 55))

	err := client.AddToList(ctx, domain.ListKind("seen"), 55)
	assert.ErrorIs(t, err, domain.ErrUnknownList)

	got := *calls
	require.Len(t, got, 4)
	assert.Equal(t, recorded{method: http.MethodPut, path: "/me/favorites/55"}, got[0])
	assert.Equal(t, recorded{method: http.MethodDelete, path: "/me/watchlist/55"}, got[1])
	assert.Equal(t, http.MethodPut, got[2].method)
	assert.Equal(t, "/me/ratings/55", got[2].path)
	assert.JSONEq(t, `{"value":7}`, got[2].body)
	assert.Equal(t, http.MethodDelete, got[3].method)
}

func TestGetProfileDecodesAggregate(t *testing.T) {
	client, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":3,"name":"Ada","email":"ada@example.com","watchlist":[1,2],"favoriteMovies":[55],"ratings":{"2":9}}`)
	})
	user, err := client.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, []int{1, 2}, user.Watchlist)
	assert.Equal(t, []int{55}, user.FavoriteMovies)
	assert.Equal(t, map[int]int{2: 9}, user.Ratings)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      interface{}
		wantToken string
		check     func(t *testing.T, err error)
	}{
		{
			name:      "success",
			status:    http.StatusOK,
			body:      map[string]string{"token": "fresh"},
			wantToken: "fresh",
		},
		{
			name:   "bad credentials",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrAuthFailed)
			},
		},
		{
			name:   "field validation",
			status: http.StatusUnprocessableEntity,
			body:   map[string]interface{}{"errors": []map[string]string{{"field": "email", "message": "is invalid"}}},
			check: func(t *testing.T, err error) {
				var gerr *gateway.Error
				require.True(t, errors.As(err, &gerr))
				assert.Equal(t, gateway.KindValidation, gerr.Kind)
				assert.Equal(t, "is invalid", gerr.FieldErrors()["email"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				assert.Empty(t, r.Header.Get("Authorization"))
				respond(w, tt.status, tt.body)
			})

			token, err := client.Login(context.Background(), domain.Credentials{Email: "ada@example.com", Password: "pw"})
			if tt.check != nil {
				require.Error(t, err)
				tt.check(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantToken, token)
			}

			require.Len(t, *calls, 1)
			assert.JSONEq(t, `{"email":"ada@example.com","password":"pw"}`, (*calls)[0].body)
		})
	}
}
