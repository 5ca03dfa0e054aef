// Package gorm provides the Postgres-backed store implementations.
//
// Open the database with gorm's TranslateError enabled so unique-index
// violations surface as gorm.ErrDuplicatedKey; the stores translate those
// into the domain's duplicate errors.
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/periziapp/perizia"
)

// PhotoList stores the photo array as a JSON column.
type PhotoList []perizia.Photo

func (l PhotoList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]perizia.Photo{})
	}
	return json.Marshal(l)
}

func (l *PhotoList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unexpected photo column type %T", value)
	}
	return json.Unmarshal(bytes, l)
}

// ReviewColumn stores the admin review snapshot as a JSON column.
type ReviewColumn perizia.AdminReview

func (r ReviewColumn) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *ReviewColumn) Scan(value any) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unexpected review column type %T", value)
	}
	return json.Unmarshal(bytes, r)
}

// UserModel is the gorm model for users. GoogleID is a pointer so that
// password-only accounts store NULL and never collide on the unique index.
type UserModel struct {
	ID             string  `gorm:"primaryKey;size:36"`
	Email          string  `gorm:"uniqueIndex;size:255;not null"`
	Username       string  `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash   string  `gorm:"size:72"`
	GoogleID       *string `gorm:"uniqueIndex;size:64"`
	ProfilePicture string  `gorm:"size:512"`
	Phone          string  `gorm:"size:32"`
	Role           string  `gorm:"size:16;not null;default:user"`
	LastSeen       *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *perizia.User {
	u := &perizia.User{
		ID:             m.ID,
		Email:          m.Email,
		Username:       m.Username,
		PasswordHash:   m.PasswordHash,
		ProfilePicture: m.ProfilePicture,
		Phone:          m.Phone,
		Role:           perizia.Role(m.Role),
		LastSeen:       m.LastSeen,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.GoogleID != nil {
		u.GoogleID = *m.GoogleID
	}
	return u
}

func UserToModel(u *perizia.User) *UserModel {
	m := &UserModel{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		PasswordHash:   u.PasswordHash,
		ProfilePicture: u.ProfilePicture,
		Phone:          u.Phone,
		Role:           string(u.Role),
		LastSeen:       u.LastSeen,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if u.GoogleID != "" {
		id := u.GoogleID
		m.GoogleID = &id
	}
	return m
}

// PeriziaModel is the gorm model for surveys.
type PeriziaModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	Code        string `gorm:"uniqueIndex;size:16;not null"`
	OperatorID  string `gorm:"index;size:36;not null"`
	TakenAt     time.Time
	Latitude    float64
	Longitude   float64
	Address     string        `gorm:"size:512;not null"`
	Description string        `gorm:"type:text;not null"`
	Photos      PhotoList     `gorm:"type:jsonb"`
	Status      string        `gorm:"size:16;not null;default:in_corso"`
	Review      *ReviewColumn `gorm:"type:jsonb"`
	ReviewedAt  *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (PeriziaModel) TableName() string {
	return "perizie"
}

func (m *PeriziaModel) ToPerizia() *perizia.Perizia {
	p := &perizia.Perizia{
		ID:         m.ID,
		Code:       m.Code,
		OperatorID: m.OperatorID,
		TakenAt:    m.TakenAt,
		Coordinates: perizia.Coordinates{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
		},
		Address:     m.Address,
		Description: m.Description,
		Photos:      []perizia.Photo(m.Photos),
		Status:      perizia.PeriziaStatus(m.Status),
		ReviewedAt:  m.ReviewedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if p.Photos == nil {
		p.Photos = []perizia.Photo{}
	}
	if m.Review != nil {
		review := perizia.AdminReview(*m.Review)
		p.Review = &review
	}
	return p
}

func PeriziaToModel(p *perizia.Perizia) *PeriziaModel {
	m := &PeriziaModel{
		ID:          p.ID,
		Code:        p.Code,
		OperatorID:  p.OperatorID,
		TakenAt:     p.TakenAt,
		Latitude:    p.Coordinates.Latitude,
		Longitude:   p.Coordinates.Longitude,
		Address:     p.Address,
		Description: p.Description,
		Photos:      PhotoList(p.Photos),
		Status:      string(p.Status),
		ReviewedAt:  p.ReviewedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Review != nil {
		review := ReviewColumn(*p.Review)
		m.Review = &review
	}
	return m
}
