package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://collab.example.com/", "wss://collab.example.com/ws"},
		{"http://gateway/api", "ws://gateway/api/ws"},
	}
	for _, tt := range tests {
		serverAddr = tt.server
		got, err := channelURL()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestIdentity_LogsInWithCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test@example.com", body["email"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc","user":{"id":42,"name":"Test User","email":"test@example.com"}}`))
	}))
	defer srv.Close()

	serverAddr, token, userID, userName = srv.URL, "", "", ""
	email, password = "test@example.com", "password"
	defer func() { email, password, token, userID, userName = "", "", "", "", "" }()

	id, err := identity()
	require.NoError(t, err)
	assert.Equal(t, "42", id.UserID)
	assert.Equal(t, "abc", id.Token)
	assert.Equal(t, "Test User", id.DisplayName)
}

func TestIdentity_RequiresCredentials(t *testing.T) {
	token, userID, email = "", "", ""
	_, err := identity()
	assert.Error(t, err)
}

func TestLogin_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid email or password"}`))
	}))
	defer srv.Close()

	_, err := login(srv.URL, "a@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}
