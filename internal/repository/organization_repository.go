package repository

import (
	"context"
	"errors"
	"strings"
	"sync"

	"gorm.io/gorm"

	"intellidocs/internal/model"
)

// OrganizationRepository 管理租户记录。
type OrganizationRepository interface {
	Create(ctx context.Context, org *model.Organization) error
	GetByID(ctx context.Context, id uint) (*model.Organization, error)
	List(ctx context.Context) ([]model.Organization, error)
}

type organizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) error {
	if strings.TrimSpace(org.Name) == "" {
		return model.ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *organizationRepository) GetByID(ctx context.Context, id uint) (*model.Organization, error) {
	var org model.Organization
	err := r.db.WithContext(ctx).First(&org, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) List(ctx context.Context) ([]model.Organization, error) {
	var orgs []model.Organization
	err := r.db.WithContext(ctx).Order("id").Find(&orgs).Error
	return orgs, err
}

type memoryOrganizationRepository struct {
	mu     sync.RWMutex
	orgs   []model.Organization
	nextID uint
}

// NewMemoryOrganizationRepository 返回仅保存在内存中的实现。
func NewMemoryOrganizationRepository() OrganizationRepository {
	return &memoryOrganizationRepository{}
}

func (r *memoryOrganizationRepository) Create(_ context.Context, org *model.Organization) error {
	if strings.TrimSpace(org.Name) == "" {
		return model.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orgs {
		if o.Name == org.Name {
			return model.ErrInvalidInput
		}
	}
	r.nextID++
	org.ID = r.nextID
	r.orgs = append(r.orgs, *org)
	return nil
}

func (r *memoryOrganizationRepository) GetByID(_ context.Context, id uint) (*model.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orgs {
		if o.ID == id {
			org := o
			return &org, nil
		}
	}
	return nil, model.ErrNotFound
}

func (r *memoryOrganizationRepository) List(_ context.Context) ([]model.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Organization(nil), r.orgs...), nil
}
