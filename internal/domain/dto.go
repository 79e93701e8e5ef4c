package domain

import (
	"github.com/google/uuid"
)

type BrandDTO struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Color     string     `json:"color"`
	LogoURL   string     `json:"logoUrl,omitempty"`
	IsActive  bool       `json:"isActive"`
	OwnerID   *uuid.UUID `json:"ownerId,omitempty"`
	CreatedAt string     `json:"createdAt"` // ISO 8601
	UpdatedAt string     `json:"updatedAt"` // ISO 8601
}

type FunnelDTO struct {
	ID              uuid.UUID `json:"id"`
	BrandID         uuid.UUID `json:"brandId"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	IsActive        bool      `json:"isActive"`
	IsDefault       bool      `json:"isDefault"`
	TotalLeadsCount int       `json:"totalLeadsCount"`
	CreatedAt       string    `json:"createdAt"`
	UpdatedAt       string    `json:"updatedAt"`
}

type StageDTO struct {
	ID          uuid.UUID       `json:"id"`
	FunnelType  FunnelType      `json:"funnelType"`
	StageNumber int             `json:"stageNumber"`
	Name        string          `json:"name"`
	Script      *StageScriptDTO `json:"script,omitempty"`
}

type StageScriptDTO struct {
	Content   string `json:"content,omitempty"`
	MediaPath string `json:"mediaPath,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

type LeadDTO struct {
	ID             uuid.UUID  `json:"id"`
	BrandID        uuid.UUID  `json:"brandId"`
	FunnelID       *uuid.UUID `json:"funnelId,omitempty"`
	Phone          string     `json:"phone"`
	Name           string     `json:"name,omitempty"`
	Email          string     `json:"email,omitempty"`
	CurrentStageID uuid.UUID  `json:"currentStageId"`
	CurrentStage   string     `json:"currentStage,omitempty"`
	CurrentFunnel  FunnelType `json:"currentFunnel"`
	Status         LeadStatus `json:"status"`
	CreatedAt      string     `json:"createdAt"`
	UpdatedAt      string     `json:"updatedAt"`
}

type LeadStageHistoryDTO struct {
	ID          uuid.UUID   `json:"id"`
	LeadID      uuid.UUID   `json:"leadId"`
	FromStageID *uuid.UUID  `json:"fromStageId,omitempty"`
	ToStageID   uuid.UUID   `json:"toStageId"`
	FromFunnel  *FunnelType `json:"fromFunnel,omitempty"`
	ToFunnel    FunnelType  `json:"toFunnel"`
	Reason      string      `json:"reason,omitempty"`
	MovedBy     *uuid.UUID  `json:"movedBy,omitempty"`
	MovedAt     string      `json:"movedAt"`
}

type LeadActivityDTO struct {
	ID         uuid.UUID    `json:"id"`
	LeadID     uuid.UUID    `json:"leadId"`
	Type       ActivityType `json:"type"`
	Title      string       `json:"title"`
	Notes      string       `json:"notes,omitempty"`
	CreatedBy  *uuid.UUID   `json:"createdBy,omitempty"`
	OccurredAt string       `json:"occurredAt"`
}

// ProfileDTO never exposes the password hash
type ProfileDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName,omitempty"`
	Role      UserRole  `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
}

// PaginatedResponse wraps a page of results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

type CreateBrandRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Color   string `json:"color" validate:"omitempty,max=20"`
	LogoURL string `json:"logoUrl,omitempty" validate:"omitempty,url,max=500"`
}

type UpdateBrandRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Color    string `json:"color" validate:"omitempty,max=20"`
	LogoURL  string `json:"logoUrl,omitempty" validate:"omitempty,url,max=500"`
	IsActive *bool  `json:"isActive,omitempty"`
}

type CreateFunnelRequest struct {
	BrandID     uuid.UUID `json:"brandId" validate:"required"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"isDefault,omitempty"`
}

type UpdateFunnelRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

type CreateStageRequest struct {
	FunnelType  FunnelType `json:"funnelType" validate:"required,oneof=follow_up broadcast"`
	StageNumber int        `json:"stageNumber" validate:"required,min=1"`
	Name        string     `json:"name" validate:"required,max=200"`
}

type UpdateStageRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type UpdateStageScriptRequest struct {
	Content string `json:"content" validate:"max=20000"`
}

type CreateLeadRequest struct {
	BrandID    uuid.UUID  `json:"brandId" validate:"required"`
	FunnelID   *uuid.UUID `json:"funnelId,omitempty"`
	Phone      string     `json:"phone" validate:"required,max=50"`
	Name       string     `json:"name,omitempty" validate:"max=200"`
	Email      string     `json:"email,omitempty" validate:"omitempty,email"`
	FunnelType FunnelType `json:"funnelType,omitempty" validate:"omitempty,oneof=follow_up broadcast"`
}

type MoveLeadStageRequest struct {
	StageID uuid.UUID `json:"stageId" validate:"required"`
	Reason  string    `json:"reason,omitempty" validate:"max=500"`
}

type UpdateLeadStatusRequest struct {
	Status LeadStatus `json:"status" validate:"required,oneof=active deal lost"`
}

type CreateActivityRequest struct {
	Type       ActivityType `json:"type" validate:"required,oneof=call email whatsapp meeting note"`
	Title      string       `json:"title" validate:"required,max=200"`
	Notes      string       `json:"notes,omitempty"`
	OccurredAt *string      `json:"occurredAt,omitempty"`
}

type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email,max=255"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	FullName string   `json:"fullName,omitempty" validate:"max=200"`
	Role     UserRole `json:"role" validate:"required,oneof=admin manager sales viewer"`
}

type UpdateUserRequest struct {
	FullName *string   `json:"fullName,omitempty" validate:"omitempty,max=200"`
	Role     *UserRole `json:"role,omitempty" validate:"omitempty,oneof=admin manager sales viewer"`
	IsActive *bool     `json:"isActive,omitempty"`
}

// LeadFilters narrows lead listings
type LeadFilters struct {
	BrandID  *uuid.UUID
	FunnelID *uuid.UUID
	Status   *LeadStatus
	StageID  *uuid.UUID
	Search   string
}
