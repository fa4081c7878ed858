package domain

import "errors"

var (
	ErrHostNotFound       = errors.New("host not found")
	ErrPlaylistNotFound   = errors.New("playlist not found")
	ErrSongNotFound       = errors.New("song not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNoActivePlaylist   = errors.New("no active playlist")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
