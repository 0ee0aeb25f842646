package models

import (
	"errors"
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrEmailTaken = errors.New("email already registered")

	// ErrOwnershipMismatch is returned when a write predicate scoped by
	// owner matched zero rows. The store itself reports no error in that
	// case, so it must be surfaced here instead of read as success.
	ErrOwnershipMismatch = errors.New("record not owned by caller")
)

// ClientPage is one pagination window plus the exact count of all rows
// matching the filter, independent of the window.
type ClientPage struct {
	Clients    []Client
	TotalCount int64
}

type SessionPage struct {
	Sessions   []Session
	TotalCount int64
}

// Repository is the single substitution point over the relational store.
// Implementations must scope every client operation by the owning
// psychologist and re-state that predicate on every write rather than
// trusting an earlier read.
type Repository interface {
	CreatePsychologist(p *Psychologist) error
	GetPsychologistByEmail(email string) (*Psychologist, error)
	GetPsychologistByID(id string) (*Psychologist, error)

	// ListClients filters by owner, optionally by a case-insensitive
	// substring of the name, orders newest first and returns the window
	// [offset, offset+pageSize-1] with the total filtered count.
	ListClients(ownerID, search string, page, pageSize int) (*ClientPage, error)
	GetClient(clientID, ownerID string) (*Client, error)
	CreateClient(client *Client) error
	UpdateClient(client *Client, ownerID string) error
	// DeleteClient removes the client's sessions first, then the client
	// row under the owner predicate. Children-before-parent ordering is
	// guaranteed; implementations with transactions run both in one.
	DeleteClient(clientID, ownerID string) error

	// ListSessions filters by client and optionally by exact platform,
	// ordered by session date then time, both descending.
	ListSessions(clientID, platform string, page, pageSize int) (*SessionPage, error)
	// ListPlatforms returns the distinct, alphabetically sorted platform
	// values across all of the client's sessions, regardless of any
	// platform filter or pagination in effect elsewhere.
	ListPlatforms(clientID string) ([]string, error)
	GetSession(sessionID, clientID string) (*Session, error)
	CreateSession(session *Session) error
	UpdateSession(session *Session, clientID string) error
	DeleteSession(sessionID, clientID string) error

	Close() error
}

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository() (*PostgresRepository, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Psychologist{}, &Client{}, &Session{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) CreatePsychologist(p *Psychologist) error {
	return r.db.Create(p).Error
}

func (r *PostgresRepository) GetPsychologistByEmail(email string) (*Psychologist, error) {
	var p Psychologist
	if err := r.db.Where("email = ?", email).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) GetPsychologistByID(id string) (*Psychologist, error) {
	var p Psychologist
	if err := r.db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) ListClients(ownerID, search string, page, pageSize int) (*ClientPage, error) {
	query := r.db.Model(&Client{}).Where("psychologist_id = ?", ownerID)
	if search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}

	// Count over the filtered set, not the pagination window.
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	var clients []Client
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&clients).Error; err != nil {
		return nil, err
	}

	return &ClientPage{Clients: clients, TotalCount: total}, nil
}

func (r *PostgresRepository) GetClient(clientID, ownerID string) (*Client, error) {
	var client Client
	err := r.db.Where("id = ? AND psychologist_id = ?", clientID, ownerID).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (r *PostgresRepository) CreateClient(client *Client) error {
	return r.db.Create(client).Error
}

func (r *PostgresRepository) UpdateClient(client *Client, ownerID string) error {
	res := r.db.Model(&Client{}).
		Where("id = ? AND psychologist_id = ?", client.ID, ownerID).
		Select("name", "email", "age", "gender", "place").
		Updates(client)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOwnershipMismatch
	}
	return nil
}

func (r *PostgresRepository) DeleteClient(clientID, ownerID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", clientID).Delete(&Session{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND psychologist_id = ?", clientID, ownerID).Delete(&Client{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOwnershipMismatch
		}
		return nil
	})
}

func (r *PostgresRepository) ListSessions(clientID, platform string, page, pageSize int) (*SessionPage, error) {
	query := r.db.Model(&Session{}).Where("client_id = ?", clientID)
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	var sessions []Session
	err := query.Order("session_date DESC").Order("session_time DESC").
		Offset(offset).Limit(pageSize).Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	return &SessionPage{Sessions: sessions, TotalCount: total}, nil
}

func (r *PostgresRepository) ListPlatforms(clientID string) ([]string, error) {
	var platforms []string
	err := r.db.Model(&Session{}).
		Where("client_id = ?", clientID).
		Distinct("platform").
		Order("platform ASC").
		Pluck("platform", &platforms).Error
	if err != nil {
		return nil, err
	}
	return platforms, nil
}

func (r *PostgresRepository) GetSession(sessionID, clientID string) (*Session, error) {
	var session Session
	err := r.db.Where("id = ? AND client_id = ?", sessionID, clientID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *PostgresRepository) CreateSession(session *Session) error {
	return r.db.Create(session).Error
}

func (r *PostgresRepository) UpdateSession(session *Session, clientID string) error {
	res := r.db.Model(&Session{}).
		Where("id = ? AND client_id = ?", session.ID, clientID).
		Select("platform", "session_date", "session_time", "summary", "conditions").
		Updates(session)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOwnershipMismatch
	}
	return nil
}

func (r *PostgresRepository) DeleteSession(sessionID, clientID string) error {
	res := r.db.Where("id = ? AND client_id = ?", sessionID, clientID).Delete(&Session{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOwnershipMismatch
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
