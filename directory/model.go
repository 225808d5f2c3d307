package directory

import (
	"strconv"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// User is the persisted account row.
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;not null;size:150"`
	Email        string `gorm:"uniqueIndex;not null;size:254"`
	PasswordHash string `gorm:"not null"`
	IsActive     bool   `gorm:"not null;default:true"`
	IsStaff      bool   `gorm:"not null;default:false"`
	FirstName    string `gorm:"size:150"`
	LastName     string `gorm:"size:150"`
	Phone        string `gorm:"size:32"`
	Country      string `gorm:"size:64"`
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) record() goSession.UserRecord {
	rec := goSession.UserRecord{
		UserID:    strconv.FormatUint(uint64(u.ID), 10),
		Username:  u.Username,
		Email:     u.Email,
		IsActive:  u.IsActive,
		IsStaff:   u.IsStaff,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Country:   u.Country,
	}
	if u.LastLogin != nil {
		rec.LastLogin = *u.LastLogin
	}
	return rec
}

// profileColumns maps the set fields of upd to column updates.
func profileColumns(upd goSession.ProfileUpdate) map[string]any {
	fields := map[string]any{}
	set := func(column string, v *string) {
		if v != nil {
			fields[column] = strings.TrimSpace(*v)
		}
	}
	set("username", upd.Username)
	set("first_name", upd.FirstName)
	set("last_name", upd.LastName)
	set("phone", upd.Phone)
	set("country", upd.Country)
	if upd.Email != nil {
		fields["email"] = strings.ToLower(strings.TrimSpace(*upd.Email))
	}
	return fields
}

func parseID(userID string) (uint, bool) {
	id, err := strconv.ParseUint(userID, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
