package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tune a [Directory].
type Options struct {
	// UpgradeOnLogin rehashes a stored password with the current argon2
	// parameters after a successful credential check.
	UpgradeOnLogin bool
}

// Directory stores accounts in a SQL database through gorm.
type Directory struct {
	db     *gorm.DB
	hasher *password.Argon2
	opts   Options
}

// Open connects to dsn and migrates the users table.
func Open(dsn string, hasher *password.Argon2, opts Options) (*Directory, error) {
	db, err := gorm.Open(dialectorFor(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// A second connection to ":memory:" would see an empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	return New(db, hasher, opts)
}

// New wraps an existing gorm handle and migrates the users table.
func New(db *gorm.DB, hasher *password.Argon2, opts Options) (*Directory, error) {
	if db == nil || hasher == nil {
		return nil, errors.New("directory: db and hasher are required")
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	return &Directory{db: db, hasher: hasher, opts: opts}, nil
}

func dialectorFor(dsn string) gorm.Dialector {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// DB exposes the underlying handle.
func (d *Directory) DB() *gorm.DB {
	return d.db
}

// Close releases the connection pool.
func (d *Directory) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity.
func (d *Directory) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", goSession.ErrDirectoryUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", goSession.ErrDirectoryUnavailable, err)
	}
	return nil
}

// Register creates an active, non-staff account.
func (d *Directory) Register(ctx context.Context, username, email, plain string) (goSession.UserRecord, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return goSession.UserRecord{}, errors.New("username and email are required")
	}

	hash, err := d.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return goSession.UserRecord{}, fmt.Errorf("%w: %v", goSession.ErrPasswordPolicy, err)
		}
		return goSession.UserRecord{}, err
	}

	user := User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}

	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).
			Where("username = ? OR email = ?", username, email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return goSession.ErrAccountExists
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if errors.Is(err, goSession.ErrAccountExists) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return goSession.UserRecord{}, goSession.ErrAccountExists
		}
		return goSession.UserRecord{}, unavailable(err)
	}

	return user.record(), nil
}

// SetStaff flips the staff flag. It is an operator action with no HTTP route.
func (d *Directory) SetStaff(ctx context.Context, userID string, staff bool) error {
	return d.update(ctx, userID, map[string]any{"is_staff": staff})
}

// SetActive enables or disables an account.
func (d *Directory) SetActive(ctx context.Context, userID string, active bool) error {
	return d.update(ctx, userID, map[string]any{"is_active": active})
}

// VerifyCredentials checks username and password. Unknown users and wrong
// passwords both return ErrInvalidCredentials.
func (d *Directory) VerifyCredentials(ctx context.Context, username, plain string) (goSession.UserRecord, error) {
	user, err := d.first(ctx, "username = ?", strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, goSession.ErrUserNotFound) {
			// Match the timing of the wrong-password path.
			_, _ = d.hasher.Hash(plain)
			return goSession.UserRecord{}, goSession.ErrInvalidCredentials
		}
		return goSession.UserRecord{}, err
	}

	ok, err := d.hasher.Verify(plain, user.PasswordHash)
	if err != nil || !ok {
		return goSession.UserRecord{}, goSession.ErrInvalidCredentials
	}

	if d.opts.UpgradeOnLogin {
		if stale, err := d.hasher.NeedsUpgrade(user.PasswordHash); err == nil && stale {
			if hash, err := d.hasher.Hash(plain); err == nil {
				_ = d.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error
			}
		}
	}

	return user.record(), nil
}

func (d *Directory) UserByID(ctx context.Context, userID string) (goSession.UserRecord, error) {
	id, ok := parseID(userID)
	if !ok {
		return goSession.UserRecord{}, goSession.ErrUserNotFound
	}
	user, err := d.first(ctx, "id = ?", id)
	if err != nil {
		return goSession.UserRecord{}, err
	}
	return user.record(), nil
}

func (d *Directory) UserByEmail(ctx context.Context, email string) (goSession.UserRecord, error) {
	user, err := d.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return goSession.UserRecord{}, err
	}
	return user.record(), nil
}

func (d *Directory) UserByUsername(ctx context.Context, username string) (goSession.UserRecord, error) {
	user, err := d.first(ctx, "username = ?", strings.TrimSpace(username))
	if err != nil {
		return goSession.UserRecord{}, err
	}
	return user.record(), nil
}

// SetPasswordHash stores an already hashed password.
func (d *Directory) SetPasswordHash(ctx context.Context, userID, hash string) error {
	return d.update(ctx, userID, map[string]any{"password_hash": hash})
}

// TouchLogin records a successful login.
func (d *Directory) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	return d.update(ctx, userID, map[string]any{"last_login": at.UTC()})
}

// UpdateProfile applies upd to userID and returns the stored account.
// Username and email must stay non-empty and unique.
func (d *Directory) UpdateProfile(ctx context.Context, userID string, upd goSession.ProfileUpdate) (goSession.UserRecord, error) {
	id, ok := parseID(userID)
	if !ok {
		return goSession.UserRecord{}, goSession.ErrUserNotFound
	}

	fields := profileColumns(upd)
	for _, column := range []string{"username", "email"} {
		if v, ok := fields[column]; ok && v == "" {
			return goSession.UserRecord{}, fmt.Errorf("%w: %s cannot be empty", goSession.ErrInvalidProfile, column)
		}
	}
	if len(fields) == 0 {
		return d.UserByID(ctx, userID)
	}

	var user User
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, column := range []string{"username", "email"} {
			v, ok := fields[column]
			if !ok {
				continue
			}
			var count int64
			if err := tx.Model(&User{}).
				Where(column+" = ? AND id <> ?", v, id).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return goSession.ErrAccountExists
			}
		}

		res := tx.Model(&User{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return goSession.ErrUserNotFound
		}
		return tx.First(&user, id).Error
	})
	switch {
	case err == nil:
		return user.record(), nil
	case errors.Is(err, goSession.ErrAccountExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return goSession.UserRecord{}, goSession.ErrAccountExists
	case errors.Is(err, goSession.ErrUserNotFound):
		return goSession.UserRecord{}, err
	default:
		return goSession.UserRecord{}, unavailable(err)
	}
}

// Delete removes the account row.
func (d *Directory) Delete(ctx context.Context, userID string) error {
	id, ok := parseID(userID)
	if !ok {
		return goSession.ErrUserNotFound
	}
	res := d.db.WithContext(ctx).Delete(&User{}, id)
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return goSession.ErrUserNotFound
	}
	return nil
}

func (d *Directory) first(ctx context.Context, query string, args ...any) (*User, error) {
	var user User
	if err := d.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goSession.ErrUserNotFound
		}
		return nil, unavailable(err)
	}
	return &user, nil
}

func (d *Directory) update(ctx context.Context, userID string, fields map[string]any) error {
	id, ok := parseID(userID)
	if !ok {
		return goSession.ErrUserNotFound
	}
	res := d.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return goSession.ErrUserNotFound
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", goSession.ErrDirectoryUnavailable, err)
}
