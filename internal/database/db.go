package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"discord-persona-bot/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DB struct {
	*gorm.DB
}

func NewDB(host, user, password, dbname string, port int) (*DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		host, user, password, dbname, port)

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Enable pgvector extension
	if err := gormDB.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, err
	}

	// Auto migrate
	if err := gormDB.AutoMigrate(
		&models.Persona{},
		&models.ChannelAssignment{},
		&models.KnowledgeEntry{},
		&models.ViolationRecord{},
		&models.ConversationLog{},
	); err != nil {
		return nil, err
	}

	return &DB{gormDB}, nil
}

// ActivePersonas returns every persona that should hold a live Discord
// session.
func (db *DB) ActivePersonas() ([]models.Persona, error) {
	var personas []models.Persona
	err := db.Where("is_active = ?", true).Find(&personas).Error
	return personas, err
}

// GetPersona looks up a single persona by id.
func (db *DB) GetPersona(id string) (*models.Persona, error) {
	var p models.Persona
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// AssignedPersonaID returns the persona assigned to a channel, or "" when the
// channel is unassigned or inactive.
func (db *DB) AssignedPersonaID(channelID string) (string, error) {
	var assignment models.ChannelAssignment
	err := db.Where("channel_id = ? AND is_active = ?", channelID, true).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return assignment.PersonaID, nil
}

// IncrementViolation bumps the violation counter for a user and returns the
// new count. The read-modify-write runs in a transaction holding a row lock,
// so two concurrent violations from the same user cannot observe the same
// prior count. decay == 0 means violations never expire; a positive decay
// restarts the count at 1 when the previous violation is older than the
// window.
func (db *DB) IncrementViolation(ctx context.Context, userID string, decay time.Duration) (int, error) {
	var newCount int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.ViolationRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&rec, "user_id = ?", userID).Error
		now := time.Now()
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = models.ViolationRecord{UserID: userID, Count: 1, LastViolationAt: now}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if decay > 0 && now.Sub(rec.LastViolationAt) > decay {
				rec.Count = 1
			} else {
				rec.Count++
			}
			rec.LastViolationAt = now
			if err := tx.Save(&rec).Error; err != nil {
				return err
			}
		}
		newCount = rec.Count
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newCount, nil
}

// GetViolationCount returns the current counter for a user, 0 if absent.
func (db *DB) GetViolationCount(userID string) (int, error) {
	var rec models.ViolationRecord
	err := db.First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// LogConversation appends one exchange to the audit trail.
func (db *DB) LogConversation(entry *models.ConversationLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return db.Create(entry).Error
}
