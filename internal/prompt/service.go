package prompt

import (
	"context"
	defError "errors"
	"fmt"
	"log"
	"time"

	"prompt-mastare/internal/errors"
	"prompt-mastare/internal/optimize"
	"prompt-mastare/internal/worker"
	"prompt-mastare/redis"

	"gorm.io/gorm"
)

type Service interface {
	CreatePrompt(ctx context.Context, userID uint64, teamID uint64, prompt *SharedPrompt) error
	GetPrompt(ctx context.Context, promptID uint64) (*PromptResponse, error)
	ListTeamPrompts(ctx context.Context, teamID uint64, page, pageSize int) (*PaginatedPrompts, error)
	UpdateContent(ctx context.Context, promptID uint64, userID uint64, content string) error
	SetStatus(ctx context.Context, promptID uint64, status string) error
	AcquireLock(ctx context.Context, promptID uint64, userID uint64) (*PromptResponse, error)
	ReleaseLock(ctx context.Context, promptID uint64, userID *uint64) error
	AddComment(ctx context.Context, promptID uint64, userID uint64, content string) (*PromptComment, error)
	ListComments(ctx context.Context, promptID uint64) ([]PromptComment, error)
	OptimizePrompt(ctx context.Context, promptID uint64, userID uint64) (*PromptResponse, error)
}

// NameResolver resolves a user id to a display name, best-effort. Keeps the
// service decoupled from the user package.
type NameResolver func(id uint64) string

type DefaultService struct {
	repository PromptRepository
	cache      *redis.Cache
	pool       *worker.WorkerPool
	optimizer  optimize.Client
	resolve    NameResolver
}

func NewService(
	repository PromptRepository,
	cache *redis.Cache,
	pool *worker.WorkerPool,
	optimizer optimize.Client,
	resolve NameResolver,
) Service {
	if resolve == nil {
		resolve = func(uint64) string { return "" }
	}
	return &DefaultService{
		repository: repository,
		cache:      cache,
		pool:       pool,
		optimizer:  optimizer,
		resolve:    resolve,
	}
}

type PromptResponse struct {
	ID               uint64     `json:"id"`
	TeamID           uint64     `json:"team_id"`
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	OptimizedContent *string    `json:"optimized_content,omitempty"`
	Status           string     `json:"status"`
	IsLocked         bool       `json:"is_locked"`
	LockedBy         *uint64    `json:"locked_by,omitempty"`
	LockedByName     string     `json:"locked_by_name,omitempty"`
	LockedAt         *time.Time `json:"locked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (s *DefaultService) toResponse(p *SharedPrompt) *PromptResponse {
	resp := &PromptResponse{
		ID:               p.ID,
		TeamID:           p.TeamID,
		Title:            p.Title,
		Content:          p.Content,
		OptimizedContent: p.OptimizedContent,
		Status:           p.Status,
		IsLocked:         p.IsLocked,
		LockedBy:         p.LockedByID,
		LockedAt:         p.LockedAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.IsLocked && p.LockedByID != nil {
		resp.LockedByName = s.resolve(*p.LockedByID)
	}
	return resp
}

func (s *DefaultService) CreatePrompt(ctx context.Context, userID uint64, teamID uint64, prompt *SharedPrompt) error {
	if prompt.Title == "" {
		return errors.BadRequest("Title cannot be empty", nil)
	}
	prompt.TeamID = teamID
	prompt.CreatedByID = userID

	err := s.repository.Create(ctx, prompt)
	if err == nil {
		s.bumpTeamVersion(ctx, teamID)
	}
	return err
}

type PaginatedPrompts struct {
	Data []PromptResponse `json:"data"`
	Meta PromptsMeta      `json:"meta"`
}

func (s *DefaultService) ListTeamPrompts(ctx context.Context, teamID uint64, page, pageSize int) (*PaginatedPrompts, error) {
	// Get the current data version for this team's prompts
	versionKey := fmt.Sprintf("team:%d:prompts:version", teamID)
	v := s.cache.GetVersion(ctx, versionKey)

	cacheKey := fmt.Sprintf("prompts:t:%d:v:%d:p:%d:ps:%d", teamID, v, page, pageSize)

	var result PaginatedPrompts
	// get data from cache
	found, _ := s.cache.Get(ctx, cacheKey, &result)
	if found {
		return &result, nil
	}

	prompts, meta, err := s.repository.ListByTeam(ctx, teamID, page, pageSize)
	if err != nil {
		return nil, err
	}
	data := make([]PromptResponse, 0, len(prompts))
	for i := range prompts {
		data = append(data, *s.toResponse(&prompts[i]))
	}
	result = PaginatedPrompts{Data: data, Meta: meta}

	// populate cache off the request path
	s.pool.Submit(func(ctx context.Context) error {
		return s.cache.Set(ctx, cacheKey, result, 24*time.Hour)
	})

	return &result, nil
}

func (s *DefaultService) GetPrompt(ctx context.Context, promptID uint64) (*PromptResponse, error) {
	p, err := s.repository.FindByID(ctx, promptID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Prompt not found", err)
		}
		return nil, err
	}
	return s.toResponse(p), nil
}

// UpdateContent persists a content edit. Edits are rejected while another
// user holds the lock; an unlocked prompt accepts edits from anyone.
func (s *DefaultService) UpdateContent(ctx context.Context, promptID uint64, userID uint64, content string) error {
	p, err := s.repository.FindByID(ctx, promptID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Prompt not found", err)
		}
		return err
	}

	if p.IsLocked && p.LockedByID != nil && *p.LockedByID != userID {
		return errors.LockConflict(promptID, *p.LockedByID, s.resolve(*p.LockedByID))
	}

	if err := s.repository.UpdateContent(ctx, promptID, content); err != nil {
		return err
	}
	s.bumpTeamVersion(ctx, p.TeamID)
	return nil
}

func (s *DefaultService) SetStatus(ctx context.Context, promptID uint64, status string) error {
	if !ValidStatus(status) {
		return errors.BadRequest("Invalid prompt status", nil)
	}
	p, err := s.repository.FindByID(ctx, promptID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Prompt not found", err)
		}
		return err
	}
	if err := s.repository.SetStatus(ctx, promptID, status); err != nil {
		return err
	}
	s.bumpTeamVersion(ctx, p.TeamID)
	return nil
}

// AcquireLock grants the exclusive edit lock. Re-entrant for the holder;
// any other holder yields a LockConflictError naming them.
func (s *DefaultService) AcquireLock(ctx context.Context, promptID uint64, userID uint64) (*PromptResponse, error) {
	for attempt := 0; ; attempt++ {
		acquired, err := s.repository.SetLock(ctx, promptID, userID, time.Now().UTC())
		if err != nil {
			return nil, err
		}

		p, err := s.repository.FindByID(ctx, promptID)
		if err != nil {
			if defError.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.NotFound("Prompt not found", err)
			}
			return nil, err
		}

		if acquired {
			return s.toResponse(p), nil
		}

		// lost the conditional update, but the holder released before the
		// follow-up read: try once more instead of reporting a stale holder
		if !p.IsLocked && attempt == 0 {
			continue
		}

		var holder uint64
		if p.LockedByID != nil {
			holder = *p.LockedByID
		}
		return nil, errors.LockConflict(promptID, holder, s.resolve(holder))
	}
}

// ReleaseLock transitions the prompt to unlocked. When userID is given the
// caller must be the current holder. Releasing an already-unlocked prompt is
// a no-op success.
func (s *DefaultService) ReleaseLock(ctx context.Context, promptID uint64, userID *uint64) error {
	released, err := s.repository.ClearLock(ctx, promptID, userID)
	if err != nil {
		return err
	}
	if released {
		return nil
	}

	p, err := s.repository.FindByID(ctx, promptID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Prompt not found", err)
		}
		return err
	}
	if !p.IsLocked {
		return nil // nothing to release
	}

	var holder uint64
	if p.LockedByID != nil {
		holder = *p.LockedByID
	}
	return errors.LockConflict(promptID, holder, s.resolve(holder))
}

func (s *DefaultService) AddComment(ctx context.Context, promptID uint64, userID uint64, content string) (*PromptComment, error) {
	if content == "" {
		return nil, errors.BadRequest("Comment cannot be empty", nil)
	}
	if _, err := s.repository.FindByID(ctx, promptID); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Prompt not found", err)
		}
		return nil, err
	}

	comment := &PromptComment{
		PromptID: promptID,
		UserID:   userID,
		Content:  content,
	}
	if err := s.repository.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *DefaultService) ListComments(ctx context.Context, promptID uint64) ([]PromptComment, error) {
	return s.repository.ListComments(ctx, promptID)
}

// OptimizePrompt sends the current content to the optimizer service and
// stores the returned copy. The lock rules for edits apply here too.
func (s *DefaultService) OptimizePrompt(ctx context.Context, promptID uint64, userID uint64) (*PromptResponse, error) {
	p, err := s.repository.FindByID(ctx, promptID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Prompt not found", err)
		}
		return nil, err
	}

	if p.IsLocked && p.LockedByID != nil && *p.LockedByID != userID {
		return nil, errors.LockConflict(promptID, *p.LockedByID, s.resolve(*p.LockedByID))
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	optimized, err := s.optimizer.Optimize(ctx, p.Title, p.Content)
	if err != nil {
		log.Printf("optimizer call failed for prompt %d: %v", promptID, err)
		return nil, errors.New(502, "Optimizer unavailable", err)
	}

	if err := s.repository.SetOptimized(ctx, promptID, optimized); err != nil {
		return nil, err
	}
	s.bumpTeamVersion(ctx, p.TeamID)

	return s.GetPrompt(ctx, promptID)
}

// bumpTeamVersion invalidates the team's cached prompt lists.
func (s *DefaultService) bumpTeamVersion(ctx context.Context, teamID uint64) {
	versionKey := fmt.Sprintf("team:%d:prompts:version", teamID)
	s.cache.IncrementVersion(ctx, versionKey)
}
