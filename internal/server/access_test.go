package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"banledger/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingAccess(t *testing.T) {
	tests := []struct {
		name       string
		flags      string
		auth       bool
		wantStatus int
	}{
		{"public by flag", "public_listings=on", false, http.StatusOK},
		{"private without token", "public_listings=off", false, http.StatusUnauthorized},
		{"private with token", "public_listings=off", true, http.StatusOK},
		{"unset means private", "", false, http.StatusUnauthorized},
		{"guild on allow list", "public_listings=" + testGuild, false, http.StatusOK},
		{"other guild on allow list", "public_listings=100000000000000007", false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := setupTestAppWith(t, tt.flags, nil)
			for _, path := range []string{bansPath, bansPath + "/all", userBansPath} {
				status, body := doRequest(t, app, http.MethodGet, path, nil, tt.auth)
				assert.Equal(t, tt.wantStatus, status, "%s: %s", path, body)
			}
		})
	}

	t.Run("bad guild id", func(t *testing.T) {
		app, _ := setupTestAppWith(t, "public_listings=off", nil)
		status, _ := doRequest(t, app, http.MethodGet, "/api/guilds/abc/bans", nil, false)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestBanEventsPublished(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan notifications.BanEvent, 4)
	require.NoError(t, notifications.NewNotifier(rdb).StartGuildSubscriber(ctx,
		func(_ string, ev notifications.BanEvent) { events <- ev }))

	app, _ := setupTestAppWith(t, "public_listings=on", rdb)
	registerPlayer(t, app, registerUserPath, "alice")

	status, body := doRequest(t, app, http.MethodPost, bansPath, CreateBanRequest{UserID: testUser, Length: "2h"}, true)
	require.Equal(t, http.StatusCreated, status, string(body))
	status, body = doRequest(t, app, http.MethodDelete, userBansPath, nil, true)
	require.Equal(t, http.StatusOK, status, string(body))

	var got []string
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("only received %v", got)
		}
	}
	assert.Equal(t, []string{notifications.EventBanCreated, notifications.EventUnbanned}, got)
}

func TestGetGuildFlags(t *testing.T) {
	app, _ := setupTestAppWith(t, "public_listings="+testGuild+",ban_events=on", nil)

	status, body := doRequest(t, app, http.MethodGet, "/api/guilds/"+testGuild+"/flags", nil, false)
	require.Equal(t, http.StatusOK, status)
	var payload struct {
		Flags map[string]bool `json:"flags"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, map[string]bool{"public_listings": true, "ban_events": true}, payload.Flags)

	status, body = doRequest(t, app, http.MethodGet, "/api/guilds/100000000000000007/flags", nil, false)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.False(t, payload.Flags["public_listings"])
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := doRequest(t, app, http.MethodGet, "/api/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decodeError(t, body).Code)
}
