package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func seedClient(t *testing.T, repo Repository, ownerID, name string, createdAt time.Time) *Client {
	t.Helper()
	client := &Client{
		PsychologistID: ownerID,
		Name:           name,
		CreatedAt:      createdAt,
	}
	if err := repo.CreateClient(client); err != nil {
		t.Fatalf("CreateClient(%q) failed: %v", name, err)
	}
	return client
}

func seedSession(t *testing.T, repo Repository, clientID, platform, date, clock string) *Session {
	t.Helper()
	session := &Session{
		ClientID:    clientID,
		Platform:    platform,
		SessionDate: date,
		SessionTime: clock,
	}
	if err := repo.CreateSession(session); err != nil {
		t.Fatalf("CreateSession(%s %s) failed: %v", date, clock, err)
	}
	return session
}

func TestListClientsPaginationWindows(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	// 25 clients for the owner, newest last; plus noise under another owner.
	for i := 0; i < 25; i++ {
		seedClient(t, repo, "owner-a", fmt.Sprintf("Client %02d", i), base.Add(time.Duration(i)*time.Minute))
	}
	for i := 0; i < 5; i++ {
		seedClient(t, repo, "owner-b", fmt.Sprintf("Other %d", i), base)
	}

	var union []string
	seen := make(map[string]bool)
	for page := 1; page <= 3; page++ {
		result, err := repo.ListClients("owner-a", "", page, 10)
		if err != nil {
			t.Fatalf("ListClients page %d failed: %v", page, err)
		}
		if result.TotalCount != 25 {
			t.Errorf("page %d: TotalCount = %d, want 25", page, result.TotalCount)
		}
		if len(result.Clients) > 10 {
			t.Errorf("page %d: got %d rows, want at most 10", page, len(result.Clients))
		}
		for _, c := range result.Clients {
			if seen[c.ID] {
				t.Errorf("client %s appeared on more than one page", c.ID)
			}
			seen[c.ID] = true
			union = append(union, c.Name)
		}
	}

	if len(union) != 25 {
		t.Fatalf("union of pages has %d rows, want 25", len(union))
	}
	// Newest first across the whole union, no gaps.
	for i, name := range union {
		want := fmt.Sprintf("Client %02d", 24-i)
		if name != want {
			t.Errorf("union[%d] = %q, want %q", i, name, want)
		}
	}

	last, err := repo.ListClients("owner-a", "", 3, 10)
	if err != nil {
		t.Fatalf("ListClients last page failed: %v", err)
	}
	if len(last.Clients) != 5 {
		t.Errorf("last page has %d rows, want 5", len(last.Clients))
	}
}

func TestListClientsSearchIsCaseInsensitiveSubstring(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	seedClient(t, repo, "owner-a", "Ana Silva", base)
	seedClient(t, repo, "owner-a", "DIANA", base.Add(time.Minute))
	seedClient(t, repo, "owner-a", "Bob", base.Add(2*time.Minute))

	result, err := repo.ListClients("owner-a", "ana", 1, 10)
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if result.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2", result.TotalCount)
	}
	if len(result.Clients) != 2 {
		t.Fatalf("got %d rows, want 2", len(result.Clients))
	}
	if result.Clients[0].Name != "DIANA" || result.Clients[1].Name != "Ana Silva" {
		t.Errorf("rows = [%q, %q], want newest-first [DIANA, Ana Silva]",
			result.Clients[0].Name, result.Clients[1].Name)
	}
}

func TestListClientsPageBeyondDataIsEmptyNotError(t *testing.T) {
	repo := NewMemoryRepository()
	seedClient(t, repo, "owner-a", "Only One", time.Now())

	result, err := repo.ListClients("owner-a", "", 99, 10)
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if len(result.Clients) != 0 {
		t.Errorf("got %d rows, want 0", len(result.Clients))
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", result.TotalCount)
	}
}

func TestListClientsScopedByOwner(t *testing.T) {
	repo := NewMemoryRepository()
	seedClient(t, repo, "owner-a", "Mine", time.Now())
	seedClient(t, repo, "owner-b", "Theirs", time.Now())

	result, err := repo.ListClients("owner-a", "", 1, 10)
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if result.TotalCount != 1 || len(result.Clients) != 1 || result.Clients[0].Name != "Mine" {
		t.Errorf("owner scope leaked: got %+v", result)
	}
}

func TestListSessionsPlatformFilterIsExactMatch(t *testing.T) {
	repo := NewMemoryRepository()
	client := seedClient(t, repo, "owner-a", "Jane Doe", time.Now())
	seedSession(t, repo, client.ID, "koott", "2024-01-10", "10:00:00")
	seedSession(t, repo, client.ID, "koott-pro", "2024-01-11", "10:00:00")
	seedSession(t, repo, client.ID, "zoom", "2024-01-12", "10:00:00")

	result, err := repo.ListSessions(client.ID, "koott", 1, 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1 (exact match only)", result.TotalCount)
	}
	for _, s := range result.Sessions {
		if s.Platform != "koott" {
			t.Errorf("row platform = %q, want exactly koott", s.Platform)
		}
	}

	// The selector set covers all sessions regardless of the active filter.
	platforms, err := repo.ListPlatforms(client.ID)
	if err != nil {
		t.Fatalf("ListPlatforms failed: %v", err)
	}
	want := []string{"koott", "koott-pro", "zoom"}
	if len(platforms) != len(want) {
		t.Fatalf("platforms = %v, want %v", platforms, want)
	}
	for i := range want {
		if platforms[i] != want[i] {
			t.Errorf("platforms[%d] = %q, want %q (sorted)", i, platforms[i], want[i])
		}
	}
}

func TestListSessionsOrderedByDateThenTimeDescending(t *testing.T) {
	repo := NewMemoryRepository()
	client := seedClient(t, repo, "owner-a", "Jane Doe", time.Now())
	seedSession(t, repo, client.ID, "zoom", "2024-01-10", "09:00:00")
	seedSession(t, repo, client.ID, "zoom", "2024-01-10", "17:30:00")
	seedSession(t, repo, client.ID, "zoom", "2024-02-01", "08:00:00")

	result, err := repo.ListSessions(client.ID, "", 1, 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(result.Sessions) != 3 {
		t.Fatalf("got %d rows, want 3", len(result.Sessions))
	}

	got := make([]string, len(result.Sessions))
	for i, s := range result.Sessions {
		got[i] = s.SessionDate + " " + s.SessionTime
	}
	want := []string{
		"2024-02-01 08:00:00",
		"2024-01-10 17:30:00",
		"2024-01-10 09:00:00",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeleteClientCascadesToSessions(t *testing.T) {
	repo := NewMemoryRepository()
	client := seedClient(t, repo, "owner-a", "Jane Doe", time.Now())
	other := seedClient(t, repo, "owner-a", "John Roe", time.Now())
	seedSession(t, repo, client.ID, "koott", "2024-01-10", "10:00:00")
	seedSession(t, repo, client.ID, "zoom", "2024-01-11", "10:00:00")
	kept := seedSession(t, repo, other.ID, "zoom", "2024-01-12", "10:00:00")

	if err := repo.DeleteClient(client.ID, "owner-a"); err != nil {
		t.Fatalf("DeleteClient failed: %v", err)
	}

	sessions, err := repo.ListSessions(client.ID, "", 1, 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions.Sessions) != 0 || sessions.TotalCount != 0 {
		t.Errorf("sessions survived cascade: %+v", sessions)
	}

	clients, err := repo.ListClients("owner-a", "", 1, 10)
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if clients.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1 after delete", clients.TotalCount)
	}

	if _, err := repo.GetSession(kept.ID, other.ID); err != nil {
		t.Errorf("unrelated client's session was deleted: %v", err)
	}
}

func TestUpdateClientAcrossOwnersSurfacesMismatch(t *testing.T) {
	repo := NewMemoryRepository()
	client := seedClient(t, repo, "owner-a", "Jane Doe", time.Now())

	stolen := &Client{ID: client.ID, PsychologistID: "owner-b", Name: "Hijacked"}
	err := repo.UpdateClient(stolen, "owner-b")
	if !errors.Is(err, ErrOwnershipMismatch) {
		t.Fatalf("UpdateClient as wrong owner = %v, want ErrOwnershipMismatch", err)
	}

	unchanged, err := repo.GetClient(client.ID, "owner-a")
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if unchanged.Name != "Jane Doe" {
		t.Errorf("record was mutated across owners: name = %q", unchanged.Name)
	}
}

func TestDeleteSessionTwiceIsNotAStoreError(t *testing.T) {
	repo := NewMemoryRepository()
	client := seedClient(t, repo, "owner-a", "Jane Doe", time.Now())
	session := seedSession(t, repo, client.ID, "zoom", "2024-01-10", "10:00:00")

	if err := repo.DeleteSession(session.ID, client.ID); err != nil {
		t.Fatalf("first DeleteSession failed: %v", err)
	}
	// Second delete affects zero rows; it reports the mismatch sentinel,
	// never a store failure.
	if err := repo.DeleteSession(session.ID, client.ID); !errors.Is(err, ErrOwnershipMismatch) {
		t.Errorf("second DeleteSession = %v, want ErrOwnershipMismatch", err)
	}
}

func TestCreateSessionDefaultsToMidnightSentinel(t *testing.T) {
	repo := NewMemoryRepository()
	client := seedClient(t, repo, "owner-a", "Jane Doe", time.Now())

	session := &Session{ClientID: client.ID, Platform: "koott", SessionDate: "2024-01-10"}
	if err := repo.CreateSession(session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.SessionTime != DefaultSessionTime {
		t.Errorf("SessionTime = %q, want %q", session.SessionTime, DefaultSessionTime)
	}
}

func TestCreateAndListScenario(t *testing.T) {
	repo := NewMemoryRepository()
	client := seedClient(t, repo, "owner-a", "Jane Doe", time.Now())

	clients, err := repo.ListClients("owner-a", "", 1, 10)
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if clients.TotalCount != 1 || clients.Clients[0].Name != "Jane Doe" {
		t.Fatalf("unexpected list result: %+v", clients)
	}

	seedSession(t, repo, client.ID, "koott", "2024-01-10", "")
	sessions, err := repo.ListSessions(client.ID, "", 1, 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if sessions.TotalCount != 1 || sessions.Sessions[0].Platform != "koott" {
		t.Fatalf("unexpected session list: %+v", sessions)
	}

	platforms, err := repo.ListPlatforms(client.ID)
	if err != nil {
		t.Fatalf("ListPlatforms failed: %v", err)
	}
	if len(platforms) != 1 || platforms[0] != "koott" {
		t.Errorf("platforms = %v, want [koott]", platforms)
	}

	if err := repo.DeleteClient(client.ID, "owner-a"); err != nil {
		t.Fatalf("DeleteClient failed: %v", err)
	}
	clients, _ = repo.ListClients("owner-a", "", 1, 10)
	if clients.TotalCount != 0 {
		t.Errorf("TotalCount = %d after delete, want 0", clients.TotalCount)
	}
	sessions, _ = repo.ListSessions(client.ID, "", 1, 10)
	if sessions.TotalCount != 0 {
		t.Errorf("session TotalCount = %d after cascade, want 0", sessions.TotalCount)
	}
}
