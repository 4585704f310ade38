// ABOUTME: Tests for SQLite store setup and user persistence
// ABOUTME: Covers schema creation, account CRUD, and duplicate handling

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store
}

func createTestUser(t *testing.T, store *SQLiteStore, username string) *User {
	t.Helper()
	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%q) failed: %v", username, err)
	}
	return user
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := &User{
		Username:     "alice",
		Email:        "alice@example.com",
		UserType:     UserTypeStaff,
		PasswordHash: "bcrypt-hash",
	}

	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 {
		t.Error("expected assigned user ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("expected assigned CreatedAt")
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username mismatch: got %q, want %q", got.Username, "alice")
	}
	if got.UserType != UserTypeStaff {
		t.Errorf("UserType mismatch: got %q, want %q", got.UserType, UserTypeStaff)
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", got.CreatedAt, user.CreatedAt)
	}
}

func TestCreateUser_DefaultsToStudent(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	user := createTestUser(t, store, "bob")
	if user.UserType != UserTypeStudent {
		t.Errorf("UserType = %q, want %q", user.UserType, UserTypeStudent)
	}
}

func TestCreateUser_InvalidType(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	user := &User{Username: "eve", UserType: "superuser", PasswordHash: "hash"}
	if err := store.CreateUser(context.Background(), user); err == nil {
		t.Error("expected error for invalid user type")
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	createTestUser(t, store, "alice")

	dup := &User{Username: "alice", PasswordHash: "other"}
	err := store.CreateUser(context.Background(), dup)
	if !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetUser(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	user := createTestUser(t, store, "carol")

	got, err := store.GetUserByUsername(context.Background(), "carol")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID mismatch: got %d, want %d", got.ID, user.ID)
	}

	if _, err := store.GetUserByUsername(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	for _, name := range []string{"carol", "alice", "bob"} {
		createTestUser(t, store, name)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}

	// Ordered by username
	want := []string{"alice", "bob", "carol"}
	for i, u := range users {
		if u.Username != want[i] {
			t.Errorf("users[%d].Username = %q, want %q", i, u.Username, want[i])
		}
	}
}

func TestStore_ManyUsers(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	for i := 0; i < 20; i++ {
		createTestUser(t, store, fmt.Sprintf("user-%02d", i))
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 20 {
		t.Errorf("expected 20 users, got %d", len(users))
	}
}
