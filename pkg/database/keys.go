package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultRateLimit is applied to keys created without an explicit limit
const DefaultRateLimit = 10000

// KeyPreview masks a key down to its first three and last four characters
func KeyPreview(key string) string {
	if len(key) > 8 {
		return key[:3] + "..." + key[len(key)-4:]
	}
	return "****"
}

// FindOrCreateKey returns the record of key, creating it under name on first use,
// and stamps its last use.
func (s *Store) FindOrCreateKey(ctx context.Context, key, name string) (*APIKey, error) {
	var apiKey APIKey
	err := s.db.WithContext(ctx).Where(APIKey{Key: key}).FirstOrCreate(&apiKey, APIKey{
		Key:        key,
		KeyPreview: KeyPreview(key),
		Name:       name,
		RateLimit:  DefaultRateLimit,
	}).Error
	if err != nil {
		return nil, err
	}
	now := time.Now()
	apiKey.LastUsed = &now
	if err := s.db.WithContext(ctx).Model(&apiKey).Update("last_used", now).Error; err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// CreateKey stores a new key
func (s *Store) CreateKey(ctx context.Context, key, name string, rateLimit int) (*APIKey, error) {
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}
	apiKey := APIKey{Key: key, KeyPreview: KeyPreview(key), Name: name, RateLimit: rateLimit}
	if err := s.db.WithContext(ctx).Create(&apiKey).Error; err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// Keys returns every key
func (s *Store) Keys(ctx context.Context) ([]APIKey, error) {
	var keys []APIKey
	err := s.db.WithContext(ctx).Order("id").Find(&keys).Error
	return keys, err
}

// DeleteKey removes a key by id
func (s *Store) DeleteKey(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&APIKey{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateKeyLimit changes the rate limit of a key
func (s *Store) UpdateKeyLimit(ctx context.Context, id uint, rateLimit int) error {
	res := s.db.WithContext(ctx).Model(&APIKey{}).Where("id = ?", id).Update("rate_limit", rateLimit)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordUsage adds one request to today's usage row for keyID
func (s *Store) RecordUsage(ctx context.Context, keyID uint, shiftCount, peopleCount int) error {
	today := time.Now().Format("2006-01-02")

	// single-query upsert, supported by both postgres and sqlite
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count": gorm.Expr("request_count + ?", 1),
			"total_shifts":  gorm.Expr("total_shifts + ?", shiftCount),
			"total_people":  gorm.Expr("total_people + ?", peopleCount),
		}),
	}).Create(&APIUsage{
		KeyID:        keyID,
		Date:         today,
		RequestCount: 1,
		TotalShifts:  shiftCount,
		TotalPeople:  peopleCount,
	}).Error
}

// Usage returns the most recent usage rows of keyID, newest first
func (s *Store) Usage(ctx context.Context, keyID uint, limit int) ([]APIUsage, error) {
	var usage []APIUsage
	err := s.db.WithContext(ctx).Where("key_id = ?", keyID).Order("date desc").Limit(limit).Find(&usage).Error
	return usage, err
}

// User returns an admin user by name
func (s *Store) User(ctx context.Context, username string) (*MasterUser, error) {
	var user MasterUser
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CountUsers returns the number of admin users
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&MasterUser{}).Count(&count).Error
	return count, err
}

// CreateUser stores an admin user
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) error {
	return s.db.WithContext(ctx).Create(&MasterUser{Username: username, PasswordHash: passwordHash}).Error
}
