package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/preferences"
	"github.com/spigell/joblens/internal/session"
)

const anonKey = "anon-key"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", anonKey, zap.NewNop())
	require.NoError(t, err)
	return c
}

func testSession() *session.Session {
	return &session.Session{UserID: "user-1", AccessToken: "user-token", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New("", "key", nil)
	require.Error(t, err)
	_, err = New("https://x.supabase.co", " ", nil)
	require.Error(t, err)
}

func TestSignIn(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, anonKey, r.Header.Get("apikey"))

		var body credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Password != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}

		_, _ = io.WriteString(w, `{
			"access_token": "at", "refresh_token": "rt", "expires_at": 1900000000,
			"user": {"id": "user-1", "email": "a@b.c"}
		}`)
	})

	sess, err := c.SignIn(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "a@b.c", sess.Email)
	assert.Equal(t, "at", sess.AccessToken)
	assert.Equal(t, int64(1900000000), sess.ExpiresAt.Unix())

	_, err = c.SignIn(context.Background(), "a@b.c", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_grant", apiErr.Code)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)
}

func TestRefresh(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "Bearer "+anonKey, r.Header.Get("Authorization"))

		var body refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.RefreshToken != "rt-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid Refresh Token: Already Used"}`)
			return
		}

		_, _ = io.WriteString(w, `{
			"access_token": "at-2", "refresh_token": "rt-2", "expires_in": 3600,
			"user": {"id": "user-1", "email": "a@b.c"}
		}`)
	})

	sess, err := c.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", sess.AccessToken)
	assert.Equal(t, "rt-2", sess.RefreshToken)
	assert.Equal(t, "user-1", sess.UserID)
	assert.True(t, sess.ExpiresAt.After(time.Now()))
	require.NoError(t, sess.Require())

	_, err = c.Refresh(context.Background(), "used")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, err = c.Refresh(context.Background(), " ")
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestSignUp(t *testing.T) {
	confirm := true
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)

		var body credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ada Lovelace", body.Data["full_name"])

		if confirm {
			_, _ = io.WriteString(w, `{"id":"user-2","email":"ada@example.com"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"at","expires_in":3600,"user":{"id":"user-2"}}`)
	})

	_, err := c.SignUp(context.Background(), "ada@example.com", "pw", "Ada Lovelace")
	require.ErrorIs(t, err, ErrConfirmationRequired)

	confirm = false
	sess, err := c.SignUp(context.Background(), "ada@example.com", "pw", "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "user-2", sess.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)
}

func TestUserAndSignOutSendUserToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/v1/user":
			if r.Method == http.MethodPut {
				var body map[string]map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				_ = json.NewEncoder(w).Encode(User{ID: "user-1", UserMetadata: body["data"]})
				return
			}
			_, _ = io.WriteString(w, `{"id":"user-1","email":"a@b.c","user_metadata":{"full_name":"A B"}}`)
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	user, err := c.User(context.Background(), testSession())
	require.NoError(t, err)
	assert.Equal(t, "A B", user.FullName())

	updated, err := c.UpdateUser(context.Background(), testSession(), map[string]any{"full_name": "C D"})
	require.NoError(t, err)
	assert.Equal(t, "C D", updated.FullName())

	require.NoError(t, c.SignOut(context.Background(), testSession()))

	_, err = c.User(context.Background(), nil)
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestFetchMapsMissingRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/user_preferences", r.URL.Path)
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.Fetch(context.Background(), testSession())
	require.ErrorIs(t, err, preferences.ErrNoRecord)
}

func TestFetchRejectsDuplicateRows(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusCreated)
			return
		}
		_, _ = io.WriteString(w, `[
			{"user_id": "user-1", "location_preference": "Berlin"},
			{"user_id": "user-1", "location_preference": "Paris"}
		]`)
	})

	_, err := c.Fetch(context.Background(), testSession())
	require.ErrorIs(t, err, ErrDuplicateRows)
	assert.False(t, errors.Is(err, preferences.ErrNoRecord))

	store := preferences.NewStore(c, nil, zap.NewNop())

	_, found, err := store.Get(context.Background(), testSession())
	require.ErrorIs(t, err, preferences.ErrStoreUnavailable)
	assert.False(t, found)

	rec := preferences.ToStore(preferences.Defaults())
	err = store.Upsert(context.Background(), testSession(), &rec)
	require.ErrorIs(t, err, preferences.ErrStoreUnavailable)
	require.ErrorIs(t, err, ErrDuplicateRows)

	for _, m := range methods {
		assert.Equal(t, http.MethodGet, m, "no row may be written while duplicates exist")
	}
}

func TestFetchDecodesRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{
			"user_id": "user-1",
			"location_preference": "Berlin",
			"remote_preference": "remote",
			"job_types": ["full-time"],
			"min_salary": 50000,
			"industries": null,
			"experience_level": "senior"
		}]`)
	})

	rec, err := c.Fetch(context.Background(), testSession())
	require.NoError(t, err)
	assert.Equal(t, "Berlin", rec.LocationPreference)
	assert.Equal(t, preferences.RemoteWork("remote"), rec.RemotePreference)
	assert.Equal(t, []string{"full-time"}, rec.JobTypes)
	assert.Equal(t, 50000, rec.MinSalary)
	assert.Nil(t, rec.Industries)
	assert.Equal(t, preferences.ExperienceLevel("senior"), rec.ExperienceLevel)
}

func TestFetchOtherErrorsPassThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"code":"XX000","message":"boom"}`)
	})

	_, err := c.Fetch(context.Background(), testSession())
	require.Error(t, err)
	assert.False(t, errors.Is(err, preferences.ErrNoRecord))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "XX000", apiErr.Code)
}

func TestInsertAndUpdate(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))

		var row preferences.Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
		assert.Equal(t, "user-1", row.UserID)

		if r.Method == http.MethodPatch {
			assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	rec := &preferences.Record{UserID: "someone-else", LocationPreference: "Berlin"}
	require.NoError(t, c.Insert(context.Background(), testSession(), rec))
	require.NoError(t, c.Update(context.Background(), testSession(), rec))
	assert.Equal(t, []string{http.MethodPost, http.MethodPatch}, methods)
	assert.Equal(t, "someone-else", rec.UserID, "caller record must not be mutated")
}

func TestStoreOverSupabase(t *testing.T) {
	var stored map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if stored == nil {
				_, _ = io.WriteString(w, `[]`)
				return
			}
			_ = json.NewEncoder(w).Encode([]map[string]any{stored})
		case http.MethodPost, http.MethodPatch:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&stored))
			w.WriteHeader(http.StatusNoContent)
		}
	})

	store := preferences.NewStore(c, nil, zap.NewNop())

	_, found, err := store.Get(context.Background(), testSession())
	require.NoError(t, err)
	assert.False(t, found)

	rec := preferences.ToStore(preferences.Preferences{
		Location:         "Berlin",
		RemotePreference: preferences.RemoteOnly,
		JobTypes:         []string{"full-time"},
		Industries:       []string{},
		MinSalary:        10,
		ExperienceLevel:  preferences.ExperienceSenior,
	})
	require.NoError(t, store.Upsert(context.Background(), testSession(), &rec))

	got, found, err := store.Get(context.Background(), testSession())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Berlin", got.LocationPreference)
	assert.Equal(t, 10, got.MinSalary)
}
