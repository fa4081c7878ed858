// Package server implements the HTTP server using Echo framework.
//
// Routes: auth (session login), host dashboard API (playlists, songs, stats,
// share link), public voter API (room info, queue) and the voting WebSocket.
// Handlers split by concern: handlers_auth.go, handlers_api.go,
// handlers_ws.go, handlers_health.go.
package server
