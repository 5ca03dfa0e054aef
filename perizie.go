package perizia

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// PeriziaStatus is the workflow state of a survey. Wire values match the
// original Italian data set.
type PeriziaStatus string

const (
	StatusInProgress PeriziaStatus = "in_corso"
	StatusCompleted  PeriziaStatus = "completata"
	StatusCancelled  PeriziaStatus = "annullata"
)

func (s PeriziaStatus) Valid() bool {
	return s == StatusInProgress || s == StatusCompleted || s == StatusCancelled
}

// Photo is one entry of a perizia's photo array.
type Photo struct {
	URL     string `json:"url"`
	Comment string `json:"comment,omitempty"`
}

// Coordinates is the survey location.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AdminReview is the snapshot of the reviewing admin attached to a perizia.
type AdminReview struct {
	AdminID        string `json:"adminId"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Comment        string `json:"comment,omitempty"`
}

// Perizia is a field survey record.
type Perizia struct {
	ID          string        `json:"id"`
	Code        string        `json:"code"`
	OperatorID  string        `json:"operatorId"`
	TakenAt     time.Time     `json:"takenAt"`
	Coordinates Coordinates   `json:"coordinates"`
	Address     string        `json:"address"`
	Description string        `json:"description"`
	Photos      []Photo       `json:"photos"`
	Status      PeriziaStatus `json:"status"`
	Review      *AdminReview  `json:"adminReview,omitempty"`
	ReviewedAt  *time.Time    `json:"reviewedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// PeriziaStore is the persistence port for surveys. Code uniqueness is a
// storage-layer constraint; Create reports a collision as ErrDuplicateCode
// and lookup misses as ErrPeriziaNotFound.
type PeriziaStore interface {
	Create(ctx context.Context, p *Perizia) error
	GetByID(ctx context.Context, id string) (*Perizia, error)
	GetByCode(ctx context.Context, code string) (*Perizia, error)
	ListByOperator(ctx context.Context, operatorID string) ([]*Perizia, error)
	ListAll(ctx context.Context) ([]*Perizia, error)
	CountByOperatorStatus(ctx context.Context, operatorID string, status PeriziaStatus) (int64, error)
	Save(ctx context.Context, p *Perizia) error
	Delete(ctx context.Context, id string) error
}

const codeAttempts = 100

// GeneratePeriziaCode produces a unique survey code of the form P<yy><nnn>.
// The space is small, so collisions are expected and resolved by
// regenerating until the store reports the code free; Create can still
// lose a race, in which case the caller retries through ErrDuplicateCode.
func GeneratePeriziaCode(ctx context.Context, store PeriziaStore) (string, error) {
	year := time.Now().Format("06")
	for i := 0; i < codeAttempts; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1000))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		code := fmt.Sprintf("P%s%03d", year, n.Int64())
		_, err = store.GetByCode(ctx, code)
		if err == ErrPeriziaNotFound {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("code lookup failed: %w", err)
		}
	}
	return "", fmt.Errorf("could not find a free perizia code after %d attempts", codeAttempts)
}
