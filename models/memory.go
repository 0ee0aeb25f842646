package models

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps all records in process memory. It implements the
// same scoping, filtering, ordering and counting contract as the Postgres
// repository and backs tests plus database-less development runs.
type MemoryRepository struct {
	mu            sync.RWMutex
	psychologists map[string]Psychologist
	clients       map[string]Client
	sessions      map[string]Session
	seq           int64
	clientSeq     map[string]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		psychologists: make(map[string]Psychologist),
		clients:       make(map[string]Client),
		sessions:      make(map[string]Session),
		clientSeq:     make(map[string]int64),
	}
}

func (r *MemoryRepository) CreatePsychologist(p *Psychologist) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.psychologists {
		if existing.Email == p.Email {
			return ErrEmailTaken
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.psychologists[p.ID] = *p
	return nil
}

func (r *MemoryRepository) GetPsychologistByEmail(email string) (*Psychologist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.psychologists {
		if p.Email == email {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) GetPsychologistByID(id string) (*Psychologist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.psychologists[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListClients(ownerID, search string, page, pageSize int) (*ClientPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(search)
	var matched []Client
	for _, c := range r.clients {
		if c.PsychologistID != ownerID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		matched = append(matched, c)
	}

	// Newest first; insertion order breaks timestamp ties so windows stay
	// stable across pages.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return r.clientSeq[matched[i].ID] > r.clientSeq[matched[j].ID]
	})

	total := int64(len(matched))
	return &ClientPage{Clients: window(matched, page, pageSize), TotalCount: total}, nil
}

func (r *MemoryRepository) GetClient(clientID, ownerID string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[clientID]
	if !ok || c.PsychologistID != ownerID {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) CreateClient(client *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	r.seq++
	r.clientSeq[client.ID] = r.seq
	r.clients[client.ID] = *client
	return nil
}

func (r *MemoryRepository) UpdateClient(client *Client, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.clients[client.ID]
	if !ok || existing.PsychologistID != ownerID {
		return ErrOwnershipMismatch
	}
	existing.Name = client.Name
	existing.Email = client.Email
	existing.Age = client.Age
	existing.Gender = client.Gender
	existing.Place = client.Place
	r.clients[client.ID] = existing
	return nil
}

func (r *MemoryRepository) DeleteClient(clientID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The relational implementation rolls the session deletes back when
	// the owner predicate matches nothing; here the owner check has to
	// come first to get the same outcome.
	c, ok := r.clients[clientID]
	if !ok || c.PsychologistID != ownerID {
		return ErrOwnershipMismatch
	}
	// Children before parent.
	for id, s := range r.sessions {
		if s.ClientID == clientID {
			delete(r.sessions, id)
		}
	}
	delete(r.clients, clientID)
	delete(r.clientSeq, clientID)
	return nil
}

func (r *MemoryRepository) ListSessions(clientID, platform string, page, pageSize int) (*SessionPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Session
	for _, s := range r.sessions {
		if s.ClientID != clientID {
			continue
		}
		if platform != "" && s.Platform != platform {
			continue
		}
		matched = append(matched, s)
	}

	// Two-key descending order; the ISO strings sort lexically.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SessionDate != matched[j].SessionDate {
			return matched[i].SessionDate > matched[j].SessionDate
		}
		if matched[i].SessionTime != matched[j].SessionTime {
			return matched[i].SessionTime > matched[j].SessionTime
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	return &SessionPage{Sessions: window(matched, page, pageSize), TotalCount: total}, nil
}

func (r *MemoryRepository) ListPlatforms(clientID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, s := range r.sessions {
		if s.ClientID == clientID {
			seen[s.Platform] = struct{}{}
		}
	}
	platforms := make([]string, 0, len(seen))
	for p := range seen {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms, nil
}

func (r *MemoryRepository) GetSession(sessionID, clientID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.ClientID != clientID {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) CreateSession(session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.SessionTime == "" {
		session.SessionTime = DefaultSessionTime
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *MemoryRepository) UpdateSession(session *Session, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[session.ID]
	if !ok || existing.ClientID != clientID {
		return ErrOwnershipMismatch
	}
	existing.Platform = session.Platform
	existing.SessionDate = session.SessionDate
	existing.SessionTime = session.SessionTime
	existing.Summary = session.Summary
	existing.Conditions = session.Conditions
	r.sessions[session.ID] = existing
	return nil
}

func (r *MemoryRepository) DeleteSession(sessionID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.ClientID != clientID {
		return ErrOwnershipMismatch
	}
	delete(r.sessions, sessionID)
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

// window slices the page [offset, offset+pageSize-1]; a window past the end
// of the data is an empty result, not an error.
func window[T any](rows []T, page, pageSize int) []T {
	offset := (page - 1) * pageSize
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
