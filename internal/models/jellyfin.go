// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package models

// JellyfinItem is one library item as returned by the Jellyfin /Items API.
// DatePlayed is empty when the server never recorded a play timestamp for
// the item (common after library imports).
type JellyfinItem struct {
	ID         string `json:"Id"`
	Name       string `json:"Name"`
	Type       string `json:"Type"`
	DatePlayed string `json:"DatePlayed,omitempty"`
}

// JellyfinItemsPage is one page of a paginated /Items response.
type JellyfinItemsPage struct {
	Items            []JellyfinItem `json:"Items"`
	TotalRecordCount int            `json:"TotalRecordCount"`
	StartIndex       int            `json:"StartIndex"`
}

// JellyfinUser is a user account as returned by the Jellyfin /Users API.
type JellyfinUser struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// JellyfinSystemInfo is the response of /System/Info used to validate an
// endpoint at registration time.
type JellyfinSystemInfo struct {
	ServerName      string `json:"ServerName"`
	Version         string `json:"Version"`
	ID              string `json:"Id"`
	OperatingSystem string `json:"OperatingSystem"`
}

// JellyfinNowPlayingItem is the item currently playing in a session.
type JellyfinNowPlayingItem struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Type string `json:"Type"`
}

// JellyfinSession is one active session as returned by /Sessions.
// NowPlayingItem is nil for idle sessions.
type JellyfinSession struct {
	ID             string                  `json:"Id"`
	UserID         string                  `json:"UserId"`
	UserName       string                  `json:"UserName"`
	Client         string                  `json:"Client"`
	DeviceName     string                  `json:"DeviceName"`
	NowPlayingItem *JellyfinNowPlayingItem `json:"NowPlayingItem,omitempty"`
}

// JellyfinLibraryItem is a library item fetched with its genre list for
// the genre aggregation endpoint.
type JellyfinLibraryItem struct {
	ID     string   `json:"Id"`
	Name   string   `json:"Name"`
	Genres []string `json:"Genres,omitempty"`
}
