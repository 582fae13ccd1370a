// Package sqlite is the embedded ledger backend built on gorm.
package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Huaoe/ElurcFleet/internal/domain"
)

// IdentityRow is the member_identities table.
type IdentityRow struct {
	ID              string `gorm:"primaryKey"`
	LinkedAccountID *string
	WalletAddress   string `gorm:"not null"`
	Status          string `gorm:"column:membership_status;not null;index"`
	VerifiedAt      *time.Time
	LastVerifiedAt  *time.Time
	NFTTokenAccount string `gorm:"column:nft_token_account;not null;default:''"`
	Metadata        string `gorm:"not null;default:'{}'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

func (IdentityRow) TableName() string { return "member_identities" }

// ProfileRow is the member_profiles table.
type ProfileRow struct {
	ID          string `gorm:"primaryKey"`
	IdentityID  string `gorm:"not null"`
	DisplayName string `gorm:"not null;uniqueIndex"`
	AvatarURL   *string
	Bio         *string
	Metadata    string `gorm:"not null;default:'{}'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time

	Identity *IdentityRow `gorm:"foreignKey:IdentityID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ProfileRow) TableName() string { return "member_profiles" }

// Open opens (or creates) the database at path and migrates it. Use ":memory:"
// for a throwaway ledger.
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	if !strings.Contains(dsn, "foreign_keys") {
		dsn += "&_pragma=foreign_keys(1)"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" one database.
	sqlDB.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&IdentityRow{}, &ProfileRow{}); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS member_identities_wallet_active
			ON member_identities (wallet_address) WHERE deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS member_profiles_identity_active
			ON member_profiles (identity_id) WHERE deleted_at IS NULL`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a UNIQUE failure on table.column.
func IsUniqueViolation(err error, table, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), table+"."+column)
}

func UTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func EncodeMetadata(m domain.Metadata) (string, error) {
	if m == nil {
		m = domain.Metadata{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func DecodeMetadata(s string) (domain.Metadata, error) {
	m := domain.Metadata{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}
