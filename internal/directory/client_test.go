package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/internal/tokens/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer svc-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Token != "tok-good" {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"account": map[string]any{
				"id": "user-2", "name": "B", "role": "user", "status": "approved",
			},
		})
	})

	mux.HandleFunc("/internal/accounts/user-2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"account": map[string]any{
				"id": "user-2", "name": "B", "role": "user", "status": "approved",
			},
		})
	})
	mux.HandleFunc("/internal/accounts/user-9", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"account": map[string]any{
				"id": "user-9", "name": "P", "role": "user", "status": "pending",
			},
		})
	})

	mux.HandleFunc("/internal/files/resolve", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Token != "upl-1" {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"file": map[string]any{
				"fileName": "notes.txt", "fileSize": 42, "fileUrl": "https://files.example/notes.txt",
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthenticate(t *testing.T) {
	srv := newAccountService(t)
	client := NewClient(srv.URL, "svc-secret")

	account, err := client.Authenticate(context.Background(), "tok-good")
	require.NoError(t, err)
	assert.Equal(t, "user-2", account.ID)
	assert.Equal(t, "approved", account.Status)

	_, err = client.Authenticate(context.Background(), "tok-bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateWrongServiceToken(t *testing.T) {
	srv := newAccountService(t)
	client := NewClient(srv.URL, "wrong")

	_, err := client.Authenticate(context.Background(), "tok-good")
	assert.Error(t, err)
}

func TestIsParticipantAuthorized(t *testing.T) {
	srv := newAccountService(t)
	client := NewClient(srv.URL, "svc-secret")

	ok, err := client.IsParticipantAuthorized(context.Background(), "user-2")
	require.NoError(t, err)
	assert.True(t, ok)

	// Pending accounts stay outside the messaging surface.
	ok, err = client.IsParticipantAuthorized(context.Background(), "user-9")
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown accounts are a clean "no", not an error.
	ok, err = client.IsParticipantAuthorized(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveFileReference(t *testing.T) {
	srv := newAccountService(t)
	client := NewClient(srv.URL, "svc-secret")

	file, err := client.ResolveFileReference(context.Background(), "upl-1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", file.FileName)
	assert.EqualValues(t, 42, file.FileSize)

	_, err = client.ResolveFileReference(context.Background(), "upl-unknown")
	assert.ErrorIs(t, err, ErrUnknownUpload)
}
