// ABOUTME: Tests for the REST API handlers
// ABOUTME: Full mux with auth middleware, real store, fake completion gateway

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/campus-chat/internal/assistant"
	"github.com/2389/campus-chat/internal/auth"
	"github.com/2389/campus-chat/internal/hub"
	"github.com/2389/campus-chat/internal/store"
)

// fakeGateway returns a canned completion or error
type fakeGateway struct {
	completion *assistant.Completion
	err        error
}

func (f *fakeGateway) Complete(_ context.Context, _ []assistant.PromptMessage) (*assistant.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

type fixture struct {
	store    *store.SQLiteStore
	verifier *auth.JWTVerifier
	server   *httptest.Server
}

func newFixture(t *testing.T, gateway assistant.CompletionGateway) *fixture {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := hub.New(nil)
	t.Cleanup(h.Close)

	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	svc := assistant.NewService(st, gateway, nil)
	api := NewServer(st, h, svc, verifier, time.Hour, nil)

	protected := http.NewServeMux()
	api.RegisterRoutes(protected)

	mux := http.NewServeMux()
	api.RegisterPublicRoutes(mux)
	mux.Handle("/", auth.Middleware(st, verifier)(protected))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &fixture{store: st, verifier: verifier, server: srv}
}

func (f *fixture) seedUser(t *testing.T, username string) (*store.User, string) {
	t.Helper()
	user := &store.User{Username: username, PasswordHash: "hash"}
	require.NoError(t, f.store.CreateUser(context.Background(), user))
	token, err := f.verifier.Generate(user.ID, time.Hour)
	require.NoError(t, err)
	return user, token
}

// do issues a JSON request and decodes the response body into out (when
// non-nil). Returns the status code.
func (f *fixture) do(t *testing.T, method, path, token string, body, out interface{}) int {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, f.server.URL+path, reqBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, &fakeGateway{})

	var created UserResponse
	status := f.do(t, http.MethodPost, "/api/register", "", RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, "student", created.UserType) // default

	var login LoginResponse
	status = f.do(t, http.MethodPost, "/api/login", "", LoginRequest{
		Username: "alice",
		Password: "hunter2hunter2",
	}, &login)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, login.Token)

	// The token works against a protected route
	var me UserResponse
	status = f.do(t, http.MethodGet, "/api/me", login.Token, nil, &me)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.ID, me.ID)
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	f.seedUser(t, "alice")

	status := f.do(t, http.MethodPost, "/api/register", "", RegisterRequest{
		Username: "alice", Password: "pw",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestRegister_InvalidUserType(t *testing.T) {
	f := newFixture(t, &fakeGateway{})

	status := f.do(t, http.MethodPost, "/api/register", "", RegisterRequest{
		Username: "eve", Password: "pw", UserType: "superuser",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t, &fakeGateway{})

	status := f.do(t, http.MethodPost, "/api/register", "", RegisterRequest{
		Username: "alice", Password: "correct",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	status = f.do(t, http.MethodPost, "/api/login", "", LoginRequest{
		Username: "alice", Password: "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Unknown username gets the same answer
	status = f.do(t, http.MethodPost, "/api/login", "", LoginRequest{
		Username: "nobody", Password: "whatever",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	f := newFixture(t, &fakeGateway{})

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/rooms", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/me", "", nil, nil))
}

func TestRooms_CreateListDelete(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	_, token := f.seedUser(t, "alice")

	var room RoomResponse
	status := f.do(t, http.MethodPost, "/api/rooms", token, CreateRoomRequest{Name: "general"}, &room)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "general", room.Name)

	// The creator is a member, so the room lists and resolves
	var rooms []RoomResponse
	status = f.do(t, http.MethodGet, "/api/rooms", token, nil, &rooms)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, rooms, 1)

	path := fmt.Sprintf("/api/rooms/%d", room.ID)
	var got RoomResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, token, nil, &got))

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path, token, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, token, nil, nil))
}

func TestRooms_NonMemberForbidden(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	_, aliceToken := f.seedUser(t, "alice")
	_, outsiderToken := f.seedUser(t, "outsider")

	var room RoomResponse
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/rooms", aliceToken, CreateRoomRequest{Name: "private"}, &room))

	path := fmt.Sprintf("/api/rooms/%d", room.ID)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path, outsiderToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path+"/messages", outsiderToken, nil, nil))
	assert.Equal(t, http.StatusForbidden,
		f.do(t, http.MethodPost, path+"/messages", outsiderToken, SendMessageRequest{Content: "let me in"}, nil))
}

func TestRooms_Messages(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	_, token := f.seedUser(t, "alice")

	var room RoomResponse
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/rooms", token, CreateRoomRequest{Name: "general"}, &room))

	path := fmt.Sprintf("/api/rooms/%d/messages", room.ID)
	for _, content := range []string{"one", "two", "three"} {
		var msg MessageResponse
		status := f.do(t, http.MethodPost, path, token, SendMessageRequest{Content: content}, &msg)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, content, msg.Content)
		assert.Equal(t, "alice", msg.Sender.Username)
	}

	var msgs []MessageResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, token, nil, &msgs))
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)

	// Recent window
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path+"?limit=2", token, nil, &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "three", msgs[1].Content)

	// Empty content refused
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, path, token, SendMessageRequest{Content: ""}, nil))
}

func TestRooms_Membership(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	_, aliceToken := f.seedUser(t, "alice")
	bob, bobToken := f.seedUser(t, "bob")

	var room RoomResponse
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/rooms", aliceToken, CreateRoomRequest{Name: "general"}, &room))

	base := fmt.Sprintf("/api/rooms/%d", room.ID)

	// Bob can't see the room until added
	require.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, base, bobToken, nil, nil))

	require.Equal(t, http.StatusNoContent,
		f.do(t, http.MethodPost, base+"/members", aliceToken, AddMemberRequest{UserID: bob.ID}, nil))
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, base, bobToken, nil, nil))

	var members []UserResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, base+"/members", aliceToken, nil, &members))
	assert.Len(t, members, 2)

	// Removal is immediate
	require.Equal(t, http.StatusNoContent,
		f.do(t, http.MethodDelete, fmt.Sprintf("%s/members/%d", base, bob.ID), aliceToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, base, bobToken, nil, nil))

	// Unknown users can't be added
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, base+"/members", aliceToken, AddMemberRequest{UserID: 999}, nil))
}

func TestConversations_Lifecycle(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	_, token := f.seedUser(t, "alice")

	var conv ConversationResponse
	status := f.do(t, http.MethodPost, "/api/ai/conversations", token, CreateConversationRequest{Title: "homework"}, &conv)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "You are a helpful assistant.", conv.SystemPrompt)
	assert.Nil(t, conv.RelatedChatID)

	path := fmt.Sprintf("/api/ai/conversations/%d", conv.ID)

	newPrompt := "Answer briefly."
	var updated ConversationResponse
	status = f.do(t, http.MethodPatch, path, token, UpdateConversationRequest{SystemPrompt: &newPrompt}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, newPrompt, updated.SystemPrompt)

	var convs []ConversationResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/ai/conversations", token, nil, &convs))
	require.Len(t, convs, 1)

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path, token, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, token, nil, nil))
}

func TestConversations_OwnershipEnforced(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	_, aliceToken := f.seedUser(t, "alice")
	_, malloryToken := f.seedUser(t, "mallory")

	var conv ConversationResponse
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/ai/conversations", aliceToken, CreateConversationRequest{}, &conv))

	path := fmt.Sprintf("/api/ai/conversations/%d", conv.ID)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path, malloryToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path+"/messages", malloryToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, path, malloryToken, nil, nil))
}

func TestConversations_RelatedRoomRequiresMembership(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	alice, aliceToken := f.seedUser(t, "alice")
	_, bobToken := f.seedUser(t, "bob")

	room := &store.Room{Name: "study"}
	require.NoError(t, f.store.CreateRoom(context.Background(), room))
	require.NoError(t, f.store.AddMember(context.Background(), room.ID, alice.ID))

	// Member may link
	var conv ConversationResponse
	status := f.do(t, http.MethodPost, "/api/ai/conversations", aliceToken,
		CreateConversationRequest{RelatedChatID: &room.ID}, &conv)
	require.Equal(t, http.StatusCreated, status)
	require.NotNil(t, conv.RelatedChatID)

	// Non-member may not
	status = f.do(t, http.MethodPost, "/api/ai/conversations", bobToken,
		CreateConversationRequest{RelatedChatID: &room.ID}, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestConversations_SendMessage(t *testing.T) {
	f := newFixture(t, &fakeGateway{completion: &assistant.Completion{
		Content: "42",
		Usage:   assistant.Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
	}})
	_, token := f.seedUser(t, "alice")

	var conv ConversationResponse
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/ai/conversations", token, CreateConversationRequest{}, &conv))

	path := fmt.Sprintf("/api/ai/conversations/%d/messages", conv.ID)

	var sent SendAIMessageResponse
	status := f.do(t, http.MethodPost, path, token, SendAIMessageRequest{Content: "  the question  "}, &sent)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "the question", sent.UserMessage.Content) // trimmed
	assert.Equal(t, "42", sent.AssistantMessage.Content)
	require.NotNil(t, sent.AssistantMessage.Usage)
	assert.Equal(t, 4, sent.AssistantMessage.Usage.TotalTokens)

	var msgs []AIMessageResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, token, nil, &msgs))
	require.Len(t, msgs, 2)

	// The conversation fetch sums usage across assistant messages
	var got ConversationResponse
	convPath := fmt.Sprintf("/api/ai/conversations/%d", conv.ID)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, convPath, token, nil, &got))
	require.NotNil(t, got.Usage)
	assert.Equal(t, 4, got.Usage.TotalTokens)
}

func TestConversations_SendFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t, &fakeGateway{err: errors.New("upstream down")})
	_, token := f.seedUser(t, "alice")

	var conv ConversationResponse
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/ai/conversations", token, CreateConversationRequest{}, &conv))

	path := fmt.Sprintf("/api/ai/conversations/%d/messages", conv.ID)
	status := f.do(t, http.MethodPost, path, token, SendAIMessageRequest{Content: "hello?"}, nil)
	assert.Equal(t, http.StatusBadGateway, status)

	var msgs []AIMessageResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, token, nil, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestConversations_ContextPreview(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	alice, token := f.seedUser(t, "alice")
	ctx := context.Background()

	room := &store.Room{Name: "study"}
	require.NoError(t, f.store.CreateRoom(ctx, room))
	require.NoError(t, f.store.AddMember(ctx, room.ID, alice.ID))
	_, err := f.store.AppendMessage(ctx, room.ID, alice.ID, "first")
	require.NoError(t, err)
	_, err = f.store.AppendMessage(ctx, room.ID, alice.ID, "second")
	require.NoError(t, err)

	var conv ConversationResponse
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/ai/conversations", token,
			CreateConversationRequest{RelatedChatID: &room.ID}, &conv))

	path := fmt.Sprintf("/api/ai/conversations/%d/context?limit=1", conv.ID)
	var preview ContextPreviewResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, token, nil, &preview))
	assert.Equal(t, "\n\nContext from related chat:\nalice: second\n", preview.Context)

	// Without a link the preview is empty
	var unlinked ConversationResponse
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/ai/conversations", token, CreateConversationRequest{}, &unlinked))
	emptyPath := fmt.Sprintf("/api/ai/conversations/%d/context", unlinked.ID)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, emptyPath, token, nil, &preview))
	assert.Empty(t, preview.Context)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t, &fakeGateway{})
	_, token := f.seedUser(t, "alice")
	f.seedUser(t, "bob")

	var users []UserResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/users", token, nil, &users))
	assert.Len(t, users, 2)
}
