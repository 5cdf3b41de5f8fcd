package prompt

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type PromptRepository interface {
	Create(ctx context.Context, prompt *SharedPrompt) error
	FindByID(ctx context.Context, id uint64) (*SharedPrompt, error)
	ListByTeam(ctx context.Context, teamID uint64, page, pageSize int) ([]SharedPrompt, PromptsMeta, error)
	UpdateContent(ctx context.Context, id uint64, content string) error
	SetOptimized(ctx context.Context, id uint64, optimized string) error
	SetStatus(ctx context.Context, id uint64, status string) error
	SetLock(ctx context.Context, id uint64, userID uint64, at time.Time) (bool, error)
	ClearLock(ctx context.Context, id uint64, userID *uint64) (bool, error)
	AddComment(ctx context.Context, comment *PromptComment) error
	ListComments(ctx context.Context, promptID uint64) ([]PromptComment, error)
}

type PromptRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new prompt repository
func NewRepository(db *gorm.DB) PromptRepository {
	return &PromptRepositoryImpl{db: db}
}

func (r *PromptRepositoryImpl) Create(ctx context.Context, prompt *SharedPrompt) error {
	prompt.CreatedAt = time.Now().UTC() // Use UTC for consistency
	prompt.UpdatedAt = time.Now().UTC()
	if prompt.Status == "" {
		prompt.Status = StatusDraft
	}
	return r.db.WithContext(ctx).Create(prompt).Error
}

type PromptsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func (r *PromptRepositoryImpl) ListByTeam(ctx context.Context, teamID uint64, page, pageSize int) ([]SharedPrompt, PromptsMeta, error) {
	var prompts []SharedPrompt
	var totalRecords int64

	// Count total records
	if err := r.db.WithContext(ctx).Model(&SharedPrompt{}).Where("team_id = ?", teamID).Count(&totalRecords).Error; err != nil {
		return prompts, PromptsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).Where("team_id = ?", teamID).
		Order("updated_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&prompts).Error

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return prompts, PromptsMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, err
}

func (r *PromptRepositoryImpl) FindByID(ctx context.Context, id uint64) (*SharedPrompt, error) {
	var p SharedPrompt
	err := r.db.WithContext(ctx).First(&p, id).Error
	return &p, err
}

func (r *PromptRepositoryImpl) UpdateContent(ctx context.Context, id uint64, content string) error {
	return r.db.WithContext(ctx).Model(&SharedPrompt{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    content,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *PromptRepositoryImpl) SetOptimized(ctx context.Context, id uint64, optimized string) error {
	return r.db.WithContext(ctx).Model(&SharedPrompt{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"optimized_content": optimized,
			"status":            StatusOptimized,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *PromptRepositoryImpl) SetStatus(ctx context.Context, id uint64, status string) error {
	return r.db.WithContext(ctx).Model(&SharedPrompt{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

// SetLock acquires the edit lock with a single conditional UPDATE so two
// concurrent acquires can never both observe "unlocked". Succeeds when the
// prompt is unlocked or already held by the same user (re-entrant).
func (r *PromptRepositoryImpl) SetLock(ctx context.Context, id uint64, userID uint64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&SharedPrompt{}).
		Where("id = ? AND (is_locked = ? OR locked_by_id = ?)", id, false, userID).
		Updates(map[string]interface{}{
			"is_locked":    true,
			"locked_by_id": userID,
			"locked_at":    at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearLock releases the lock. When userID is given the release only applies
// if that user is the current holder, so a stale client can't unlock someone
// else's edit. A nil userID unlocks unconditionally (cleanup path).
func (r *PromptRepositoryImpl) ClearLock(ctx context.Context, id uint64, userID *uint64) (bool, error) {
	query := r.db.WithContext(ctx).Model(&SharedPrompt{}).
		Where("id = ? AND is_locked = ?", id, true)
	if userID != nil {
		query = query.Where("locked_by_id = ?", *userID)
	}
	result := query.Updates(map[string]interface{}{
		"is_locked":    false,
		"locked_by_id": nil,
		"locked_at":    nil,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PromptRepositoryImpl) AddComment(ctx context.Context, comment *PromptComment) error {
	comment.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *PromptRepositoryImpl) ListComments(ctx context.Context, promptID uint64) ([]PromptComment, error) {
	var comments []PromptComment
	err := r.db.WithContext(ctx).Where("prompt_id = ?", promptID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}
