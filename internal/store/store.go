// ABOUTME: Store interface and data types for campus-chat persistence
// ABOUTME: Defines User, Room, Message, AIConversation, AIMessage and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when a username is already taken
var ErrDuplicateUser = errors.New("username already exists")

// ErrUnknownRole is returned when an AI message carries a role outside the
// closed set {system, user, assistant}
var ErrUnknownRole = errors.New("unknown message role")

// UserType classifies an account
type UserType string

// UserType values
const (
	UserTypeOwner   UserType = "owner"
	UserTypeStudent UserType = "student"
	UserTypeStaff   UserType = "staff"
)

// Valid reports whether t is one of the known user types
func (t UserType) Valid() bool {
	switch t {
	case UserTypeOwner, UserTypeStudent, UserTypeStaff:
		return true
	}
	return false
}

// User is an account that can participate in rooms and own AI conversations
type User struct {
	ID           int64
	Username     string
	Email        string
	UserType     UserType
	PasswordHash string
	CreatedAt    time.Time
}

// Room is a named multi-party chat group with a persistent member set
type Room struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Message is a single room message. Immutable once created; the ID and
// timestamp are assigned by the store on append.
type Message struct {
	ID        int64
	RoomID    int64
	Sender    *User
	Content   string
	Timestamp time.Time
}

// Role tags who authored an AI message
type Role string

// Role values
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// AIConversation is a single-owner chat whose other participant is the
// completion service. RelatedRoomID is a weak reference: deleting the room
// nulls the link rather than cascading into the conversation.
type AIConversation struct {
	ID            int64
	UserID        int64
	RelatedRoomID *int64
	Title         string
	SystemPrompt  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UsageTotals aggregates token counters across a conversation's assistant
// messages
type UsageTotals struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIMessage is a single entry in an AI conversation. Token counters are
// populated only on assistant entries produced via the completion gateway.
type AIMessage struct {
	ID               int64
	ConversationID   int64
	Role             Role
	Content          string
	Timestamp        time.Time
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
}

// Store defines the persistence interface for campus-chat
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)

	// Rooms and membership. IsMember queries live state on every call so
	// admission decisions always reflect current membership.
	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id int64) (*Room, error)
	ListRoomsForUser(ctx context.Context, userID int64) ([]*Room, error)
	DeleteRoom(ctx context.Context, id int64) error
	AddMember(ctx context.Context, roomID, userID int64) error
	RemoveMember(ctx context.Context, roomID, userID int64) error
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	ListMembers(ctx context.Context, roomID int64) ([]*User, error)

	// Room messages. AppendMessage assigns the ID and server timestamp and
	// never fails silently. RecentMessages returns at most limit messages,
	// chronological order, most recent last.
	AppendMessage(ctx context.Context, roomID, senderID int64, content string) (*Message, error)
	RoomMessages(ctx context.Context, roomID int64) ([]*Message, error)
	RecentMessages(ctx context.Context, roomID int64, limit int) ([]*Message, error)

	// AI conversations
	CreateConversation(ctx context.Context, conv *AIConversation) error
	GetConversation(ctx context.Context, id int64) (*AIConversation, error)
	ListConversationsForUser(ctx context.Context, userID int64) ([]*AIConversation, error)
	DeleteConversation(ctx context.Context, id int64) error
	UpdateSystemPrompt(ctx context.Context, id int64, prompt string) error

	// AI messages. AppendAIMessage assigns the ID and timestamp and rejects
	// roles outside the closed set at the storage boundary.
	AppendAIMessage(ctx context.Context, msg *AIMessage) error
	ConversationMessages(ctx context.Context, conversationID int64) ([]*AIMessage, error)
	ConversationUsage(ctx context.Context, conversationID int64) (*UsageTotals, error)

	// Close releases any resources held by the store
	Close() error
}
