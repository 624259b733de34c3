package domain

import "time"

// EventType names a sync-channel message.
type EventType string

const (
	EventState        EventType = "state"
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventPlayerKicked EventType = "player_kicked"
	EventAnswerCount  EventType = "answer_count"
	EventLeaderboard  EventType = "leaderboard"
	EventGameDeleted  EventType = "game_deleted"
)

// GameEvent is published to every subscriber of a game. Version is the
// session version the event was produced against; state events are
// delivered to a subscriber in strictly increasing Version order.
type GameEvent struct {
	Type        EventType    `json:"type"`
	Code        string       `json:"code"`
	Version     int64        `json:"version"`
	Session     *GameSession `json:"session,omitempty"`
	Player      *Player      `json:"player,omitempty"`
	Leaderboard *Leaderboard `json:"leaderboard,omitempty"`
	AnswerCount *AnswerCount `json:"answerCount,omitempty"`
	At          time.Time    `json:"at"`
}

// AnswerCount tells the host how many players answered the open question.
type AnswerCount struct {
	QuestionIndex int `json:"questionIndex"`
	Answered      int `json:"answered"`
	Players       int `json:"players"`
}

// StateEvent builds a state event for s.
func StateEvent(s GameSession, now time.Time) GameEvent {
	snapshot := s
	return GameEvent{
		Type:    EventState,
		Code:    s.Code,
		Version: s.Version,
		Session: &snapshot,
		At:      now,
	}
}
