package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel carries the identity and timestamps shared by every table
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns a UUID when the caller has not set one
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// FunnelType partitions stages into the two parallel pipelines
type FunnelType string

const (
	FunnelTypeFollowUp  FunnelType = "follow_up"
	FunnelTypeBroadcast FunnelType = "broadcast"
)

// IsValid reports whether t names a known pipeline
func (t FunnelType) IsValid() bool {
	return t == FunnelTypeFollowUp || t == FunnelTypeBroadcast
}

// LeadStatus is the lifecycle state of a lead
type LeadStatus string

const (
	LeadStatusActive LeadStatus = "active"
	LeadStatusDeal   LeadStatus = "deal"
	LeadStatusLost   LeadStatus = "lost"
)

func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusActive, LeadStatusDeal, LeadStatusLost:
		return true
	}
	return false
}

// ActivityType classifies an entry in the lead interaction log
type ActivityType string

const (
	ActivityTypeCall     ActivityType = "call"
	ActivityTypeEmail    ActivityType = "email"
	ActivityTypeWhatsApp ActivityType = "whatsapp"
	ActivityTypeMeeting  ActivityType = "meeting"
	ActivityTypeNote     ActivityType = "note"
)

// UserRole is the role stored on a profile. Only the stored value is ever trusted.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleSales   UserRole = "sales"
	RoleViewer  UserRole = "viewer"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSales, RoleViewer:
		return true
	}
	return false
}

// Brand is a tenant-like grouping that owns funnels and leads
type Brand struct {
	BaseModel
	Name     string     `gorm:"type:varchar(200);not null"`
	Color    string     `gorm:"type:varchar(20);not null"`
	LogoURL  string     `gorm:"type:varchar(500);column:logo_url"`
	IsActive bool       `gorm:"not null;column:is_active"`
	OwnerID  *uuid.UUID `gorm:"type:uuid;column:owner_id;index"`
}

// Funnel is a named pipeline belonging to one brand
type Funnel struct {
	BaseModel
	BrandID         uuid.UUID `gorm:"type:uuid;not null;index;column:brand_id"`
	Brand           *Brand    `gorm:"foreignKey:BrandID"`
	Name            string    `gorm:"type:varchar(200);not null"`
	Description     string    `gorm:"type:text"`
	IsActive        bool      `gorm:"not null;column:is_active"`
	IsDefault       bool      `gorm:"not null;column:is_default"`
	TotalLeadsCount int       `gorm:"not null;column:total_leads_count"`
}

// Stage is one ordered step of a pipeline. StageNumber is unique within FunnelType.
type Stage struct {
	BaseModel
	FunnelType  FunnelType   `gorm:"type:varchar(20);not null;uniqueIndex:idx_stage_type_number;column:funnel_type"`
	StageNumber int          `gorm:"not null;uniqueIndex:idx_stage_type_number;column:stage_number"`
	Name        string       `gorm:"type:varchar(200);not null"`
	Script      *StageScript `gorm:"foreignKey:StageID"`
}

// StageScript is the optional talk track and media attached to a stage
type StageScript struct {
	BaseModel
	StageID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;column:stage_id"`
	Content   string    `gorm:"type:text"`
	MediaPath string    `gorm:"type:varchar(500);column:media_path"`
	MediaType string    `gorm:"type:varchar(100);column:media_type"`
}

// Lead is the unit tracked through the funnel. CurrentStageID and CurrentFunnel are a
// denormalized pointer kept in step with the last LeadStageHistory row.
type Lead struct {
	BaseModel
	BrandID        uuid.UUID  `gorm:"type:uuid;not null;index;column:brand_id"`
	FunnelID       *uuid.UUID `gorm:"type:uuid;index;column:funnel_id"`
	Phone          string     `gorm:"type:varchar(50);not null"`
	Name           string     `gorm:"type:varchar(200)"`
	Email          string     `gorm:"type:varchar(255)"`
	CurrentStageID uuid.UUID  `gorm:"type:uuid;not null;column:current_stage_id"`
	CurrentStage   *Stage     `gorm:"foreignKey:CurrentStageID"`
	CurrentFunnel  FunnelType `gorm:"type:varchar(20);not null;column:current_funnel"`
	Status         LeadStatus `gorm:"type:varchar(20);not null;index"`
}

// LeadStageHistory is one immutable ledger row. FromStageID is nil only for the first assignment.
type LeadStageHistory struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey"`
	LeadID      uuid.UUID   `gorm:"type:uuid;not null;index:idx_lsh_lead_moved;column:lead_id"`
	FromStageID *uuid.UUID  `gorm:"type:uuid;column:from_stage_id"`
	ToStageID   uuid.UUID   `gorm:"type:uuid;not null;column:to_stage_id"`
	FromFunnel  *FunnelType `gorm:"type:varchar(20);column:from_funnel"`
	ToFunnel    FunnelType  `gorm:"type:varchar(20);not null;column:to_funnel"`
	Reason      string      `gorm:"type:text"`
	MovedBy     *uuid.UUID  `gorm:"type:uuid;column:moved_by"`
	MovedAt     time.Time   `gorm:"not null;index:idx_lsh_lead_moved;index;column:moved_at"`
}

// TableName overrides the default table name to match the migration
func (LeadStageHistory) TableName() string {
	return "lead_stage_history"
}

func (h *LeadStageHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// LeadActivity is a free-form interaction log entry
type LeadActivity struct {
	BaseModel
	LeadID     uuid.UUID    `gorm:"type:uuid;not null;index;column:lead_id"`
	Type       ActivityType `gorm:"type:varchar(20);not null"`
	Title      string       `gorm:"type:varchar(200);not null"`
	Notes      string       `gorm:"type:text"`
	CreatedBy  *uuid.UUID   `gorm:"type:uuid;column:created_by"`
	OccurredAt time.Time    `gorm:"not null;index;column:occurred_at"`
}

// Profile is an application user. Role is authoritative for authorization decisions.
type Profile struct {
	BaseModel
	Email        string   `gorm:"type:varchar(255);not null;uniqueIndex"`
	FullName     string   `gorm:"type:varchar(200);column:full_name"`
	Role         UserRole `gorm:"type:varchar(20);not null"`
	PasswordHash string   `gorm:"type:varchar(100);column:password_hash"`
	IsActive     bool     `gorm:"not null;column:is_active"`
}

// AuditAction names an audited mutation
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

// AuditLog records privileged mutations
type AuditLog struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey"`
	ActorID    uuid.UUID   `gorm:"type:uuid;not null;index;column:actor_id"`
	Action     AuditAction `gorm:"type:varchar(20);not null"`
	EntityType string      `gorm:"type:varchar(50);not null;column:entity_type"`
	EntityID   uuid.UUID   `gorm:"type:uuid;not null;column:entity_id"`
	Details    string      `gorm:"type:text"`
	CreatedAt  time.Time   `gorm:"not null;index"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
