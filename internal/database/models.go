package database

import "time"

type Room struct {
	Id              string    `json:"id"`
	Title           string    `json:"title"`
	CreatorId       string    `json:"creator_id"`
	Category        string    `json:"category"`
	MaxParticipants int       `json:"max_participants"`
	BannedUsers     []string  `json:"banned_users"`
	CreatedAt       time.Time `json:"created_at"`
}

type Participant struct {
	RoomId     string    `json:"room_id"`
	UserId     string    `json:"user_id"`
	Nickname   string    `json:"nickname"`
	AssignedAt time.Time `json:"assigned_at"`
}

type Message struct {
	Id        int64     `json:"id"`
	RoomId    string    `json:"room_id"`
	UserId    string    `json:"user_id"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRoomParams struct {
	Id              string
	Title           string
	CreatorId       string
	Category        string
	MaxParticipants int
}

type CreateParticipantParams struct {
	RoomId   string
	UserId   string
	Nickname string
}

type CreateMessageParams struct {
	RoomId   string
	UserId   string
	Nickname string
	Content  string
}
