package domain

import "github.com/google/uuid"

// Event kinds delivered over the live connection. The wire shape is stable:
// clients switch on the "type" field.
const (
	EventVoteUpdate = "vote_update"
	EventSongAdded  = "song_added"
	EventNowPlaying = "now_playing"
	EventError      = "error"
)

// Event is an outbound broadcast payload. Error events are only ever sent
// to the connection whose action was rejected, never broadcast.
type Event struct {
	Type      string    `json:"type"`
	SongID    uuid.UUID `json:"songId,omitempty"`
	VoteCount int       `json:"voteCount,omitempty"`
	Song      *Song     `json:"song,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func VoteUpdateEvent(songID uuid.UUID, voteCount int) Event {
	return Event{Type: EventVoteUpdate, SongID: songID, VoteCount: voteCount}
}

func SongAddedEvent(song *Song) Event {
	return Event{Type: EventSongAdded, Song: song}
}

func NowPlayingEvent(song *Song) Event {
	return Event{Type: EventNowPlaying, Song: song}
}

func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}
