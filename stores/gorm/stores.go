package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/periziapp/perizia"
)

// AutoMigrate runs database migrations for all backend tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&PeriziaModel{},
	)
}

// UserStore implements perizia.UserStore on Postgres.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*perizia.User, error) {
	return s.getOne(ctx, "email = ?", email)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*perizia.User, error) {
	return s.getOne(ctx, "id = ?", id)
}

func (s *UserStore) GetByGoogleID(ctx context.Context, googleID string) (*perizia.User, error) {
	return s.getOne(ctx, "google_id = ?", googleID)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*perizia.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, perizia.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) Create(ctx context.Context, user *perizia.User) error {
	model := UserToModel(user)
	err := s.db.WithContext(ctx).Create(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return perizia.ErrDuplicateIdentity
	}
	if err != nil {
		return err
	}
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *UserStore) Save(ctx context.Context, user *perizia.User) error {
	model := UserToModel(user)
	err := s.db.WithContext(ctx).Save(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return perizia.ErrDuplicateIdentity
	}
	if err != nil {
		return err
	}
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *UserStore) List(ctx context.Context) ([]*perizia.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).Order("created_at").Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]*perizia.User, len(models))
	for i := range models {
		users[i] = models[i].ToUser()
	}
	return users, nil
}

func (s *UserStore) ListByRole(ctx context.Context, role perizia.Role) ([]*perizia.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).Where("role = ?", string(role)).Order("created_at").Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]*perizia.User, len(models))
	for i := range models {
		users[i] = models[i].ToUser()
	}
	return users, nil
}

// PeriziaStore implements perizia.PeriziaStore on Postgres.
type PeriziaStore struct {
	db *gorm.DB
}

func NewPeriziaStore(db *gorm.DB) *PeriziaStore {
	return &PeriziaStore{db: db}
}

func (s *PeriziaStore) Create(ctx context.Context, p *perizia.Perizia) error {
	model := PeriziaToModel(p)
	err := s.db.WithContext(ctx).Create(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return perizia.ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	p.CreatedAt = model.CreatedAt
	p.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *PeriziaStore) GetByID(ctx context.Context, id string) (*perizia.Perizia, error) {
	return s.getOne(ctx, "id = ?", id)
}

func (s *PeriziaStore) GetByCode(ctx context.Context, code string) (*perizia.Perizia, error) {
	return s.getOne(ctx, "code = ?", code)
}

func (s *PeriziaStore) getOne(ctx context.Context, query string, arg any) (*perizia.Perizia, error) {
	var model PeriziaModel
	err := s.db.WithContext(ctx).First(&model, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, perizia.ErrPeriziaNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToPerizia(), nil
}

func (s *PeriziaStore) ListByOperator(ctx context.Context, operatorID string) ([]*perizia.Perizia, error) {
	var models []PeriziaModel
	if err := s.db.WithContext(ctx).Where("operator_id = ?", operatorID).Order("taken_at desc").Find(&models).Error; err != nil {
		return nil, err
	}
	return toPerizie(models), nil
}

func (s *PeriziaStore) ListAll(ctx context.Context) ([]*perizia.Perizia, error) {
	var models []PeriziaModel
	if err := s.db.WithContext(ctx).Order("taken_at desc").Find(&models).Error; err != nil {
		return nil, err
	}
	return toPerizie(models), nil
}

func (s *PeriziaStore) CountByOperatorStatus(ctx context.Context, operatorID string, status perizia.PeriziaStatus) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&PeriziaModel{}).
		Where("operator_id = ? AND status = ?", operatorID, string(status)).
		Count(&count).Error
	return count, err
}

func (s *PeriziaStore) Save(ctx context.Context, p *perizia.Perizia) error {
	model := PeriziaToModel(p)
	err := s.db.WithContext(ctx).Save(model).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return perizia.ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	p.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *PeriziaStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&PeriziaModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return perizia.ErrPeriziaNotFound
	}
	return nil
}

func toPerizie(models []PeriziaModel) []*perizia.Perizia {
	out := make([]*perizia.Perizia, len(models))
	for i := range models {
		out[i] = models[i].ToPerizia()
	}
	return out
}
