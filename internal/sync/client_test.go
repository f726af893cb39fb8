// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/finscope/finscope/internal/models"
)

func TestGetPlayedItemsRequest(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	var gotToken string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Emby-Token")
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		_ = json.NewEncoder(w).Encode(models.JellyfinItemsPage{
			Items: []models.JellyfinItem{
				{ID: "item-1", Name: "The Movie", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
			},
			TotalRecordCount: 1,
		})
	}))
	defer srv.Close()

	client := NewJellyfinClient(srv.URL, "secret-key", ClientOptions{})
	page, err := client.GetPlayedItems(context.Background(), "user-1", 500, 250)
	checkNoError(t, "GetPlayedItems", err)

	checkStringEqual(t, "path", gotPath, "/Users/user-1/Items")
	checkStringEqual(t, "token header", gotToken, "secret-key")
	checkStringEqual(t, "SortBy", gotQuery["SortBy"], "DatePlayed")
	checkStringEqual(t, "SortOrder", gotQuery["SortOrder"], "Descending")
	checkStringEqual(t, "Filters", gotQuery["Filters"], "IsPlayed")
	checkStringEqual(t, "IncludeItemTypes", gotQuery["IncludeItemTypes"], "Movie,Episode,Audio,MusicAlbum")
	checkStringEqual(t, "Fields", gotQuery["Fields"], "DatePlayed")
	checkStringEqual(t, "Recursive", gotQuery["Recursive"], "true")
	checkStringEqual(t, "StartIndex", gotQuery["StartIndex"], "500")
	checkStringEqual(t, "Limit", gotQuery["Limit"], "250")

	checkIntEqual(t, "item count", len(page.Items), 1)
	checkStringEqual(t, "item id", page.Items[0].ID, "item-1")
	checkIntEqual(t, "total record count", page.TotalRecordCount, 1)
}

func TestGetPlayedItemsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewJellyfinClient(srv.URL, "key", ClientOptions{})
	_, err := client.GetPlayedItems(context.Background(), "user-1", 0, 500)
	checkError(t, "GetPlayedItems against failing upstream", err)
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status code in error, got: %v", err)
	}
}

func TestGetUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]models.JellyfinUser{
			{ID: "u1", Name: "Alice"},
			{ID: "u2", Name: "Bob"},
		})
	}))
	defer srv.Close()

	client := NewJellyfinClient(srv.URL, "key", ClientOptions{})
	users, err := client.GetUsers(context.Background())
	checkNoError(t, "GetUsers", err)
	checkIntEqual(t, "user count", len(users), 2)
	checkStringEqual(t, "first user", users[0].Name, "Alice")
}

func TestGetActiveSessionsFiltersIdle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.JellyfinSession{
			{ID: "s1", UserID: "u1", UserName: "Alice", NowPlayingItem: &models.JellyfinNowPlayingItem{
				ID: "item-1", Name: "The Movie", Type: "Movie",
			}},
			{ID: "s2", UserID: "u2", UserName: "Bob"}, // idle, nothing playing
		})
	}))
	defer srv.Close()

	client := NewJellyfinClient(srv.URL, "key", ClientOptions{})
	sessions, err := client.GetActiveSessions(context.Background())
	checkNoError(t, "GetActiveSessions", err)
	checkIntEqual(t, "active session count", len(sessions), 1)
	checkStringEqual(t, "session id", sessions[0].ID, "s1")
}

func TestGetLibraryItemsWithGenres(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte(`{"Items":[
			{"Id":"m1","Name":"Heat","Genres":["Crime","Thriller"]},
			{"Id":"m2","Name":"Alien","Genres":["Horror"]}
		]}`))
	}))
	defer srv.Close()

	client := NewJellyfinClient(srv.URL, "key", ClientOptions{})
	items, err := client.GetLibraryItemsWithGenres(context.Background(), "user-1")
	checkNoError(t, "GetLibraryItemsWithGenres", err)

	checkStringEqual(t, "IncludeItemTypes", gotQuery["IncludeItemTypes"], "Movie,Series")
	checkStringEqual(t, "Fields", gotQuery["Fields"], "Genres")
	checkIntEqual(t, "item count", len(items), 2)
	checkIntEqual(t, "first item genres", len(items[0].Genres), 2)
}

func TestProxyGetNormalizesEndpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewJellyfinClient(srv.URL, "key", ClientOptions{})
	resp, err := client.ProxyGet(context.Background(), "System/Info/Public")
	checkNoError(t, "ProxyGet", err)
	defer func() { _ = resp.Body.Close() }()

	checkStringEqual(t, "path", gotPath, "/System/Info/Public")
}

func TestImageURL(t *testing.T) {
	client := NewJellyfinClient("http://jf.local:8096/", "key", ClientOptions{})

	checkStringEqual(t, "default type",
		client.ImageURL("abc123", ""), "http://jf.local:8096/Items/abc123/Images/Primary")
	checkStringEqual(t, "explicit type",
		client.ImageURL("abc123", "Backdrop"), "http://jf.local:8096/Items/abc123/Images/Backdrop")
}

func TestBaseURLTrimsTrailingSlash(t *testing.T) {
	client := NewJellyfinClient("http://jf.local:8096/", "key", ClientOptions{})
	checkStringEqual(t, "base url", client.BaseURL(), "http://jf.local:8096")
}
