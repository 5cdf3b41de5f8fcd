package user

import (
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *User) error
	CreateTeam(team *Team) error
	FindByID(id uint64) (*User, error)
	FindByEmail(email string) (*User, error)
	Deactivate(id uint64) error
}

type UserRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new user repository
func NewRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) Create(user *User) error {
	return r.db.Create(user).Error
}

func (r *UserRepositoryImpl) CreateTeam(team *Team) error {
	return r.db.Create(team).Error
}

func (r *UserRepositoryImpl) FindByID(id uint64) (*User, error) {
	var user User
	err := r.db.First(&user, id).Error
	return &user, err
}

func (r *UserRepositoryImpl) FindByEmail(email string) (*User, error) {
	var user User
	err := r.db.Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepositoryImpl) Deactivate(id uint64) error {
	return r.db.Model(&User{}).Where("id = ?", id).Update("is_active", false).Error
}
