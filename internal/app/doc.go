// Package app provides the application service layer.
//
// Orchestrates use cases: host accounts, playlists, song queueing, vote
// casting, playback overrides, room lookups and dashboard stats. Sits
// between HTTP handlers and domain repositories. Depends on domain
// interfaces, not concrete implementations.
package app
