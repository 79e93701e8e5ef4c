package mapper

import (
	"time"

	"github.com/straye-as/funnel-api/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ToBrandDTO converts Brand to BrandDTO
func ToBrandDTO(brand *domain.Brand) domain.BrandDTO {
	return domain.BrandDTO{
		ID:        brand.ID,
		Name:      brand.Name,
		Color:     brand.Color,
		LogoURL:   brand.LogoURL,
		IsActive:  brand.IsActive,
		OwnerID:   brand.OwnerID,
		CreatedAt: formatTime(brand.CreatedAt),
		UpdatedAt: formatTime(brand.UpdatedAt),
	}
}

// ToFunnelDTO converts Funnel to FunnelDTO
func ToFunnelDTO(funnel *domain.Funnel) domain.FunnelDTO {
	return domain.FunnelDTO{
		ID:              funnel.ID,
		BrandID:         funnel.BrandID,
		Name:            funnel.Name,
		Description:     funnel.Description,
		IsActive:        funnel.IsActive,
		IsDefault:       funnel.IsDefault,
		TotalLeadsCount: funnel.TotalLeadsCount,
		CreatedAt:       formatTime(funnel.CreatedAt),
		UpdatedAt:       formatTime(funnel.UpdatedAt),
	}
}

// ToStageDTO converts Stage to StageDTO, including the script when loaded
func ToStageDTO(stage *domain.Stage) domain.StageDTO {
	dto := domain.StageDTO{
		ID:          stage.ID,
		FunnelType:  stage.FunnelType,
		StageNumber: stage.StageNumber,
		Name:        stage.Name,
	}
	if stage.Script != nil {
		script := ToStageScriptDTO(stage.Script)
		dto.Script = &script
	}
	return dto
}

func ToStageScriptDTO(script *domain.StageScript) domain.StageScriptDTO {
	return domain.StageScriptDTO{
		Content:   script.Content,
		MediaPath: script.MediaPath,
		MediaType: script.MediaType,
		UpdatedAt: formatTime(script.UpdatedAt),
	}
}

// ToLeadDTO converts Lead to LeadDTO
func ToLeadDTO(lead *domain.Lead) domain.LeadDTO {
	dto := domain.LeadDTO{
		ID:             lead.ID,
		BrandID:        lead.BrandID,
		FunnelID:       lead.FunnelID,
		Phone:          lead.Phone,
		Name:           lead.Name,
		Email:          lead.Email,
		CurrentStageID: lead.CurrentStageID,
		CurrentFunnel:  lead.CurrentFunnel,
		Status:         lead.Status,
		CreatedAt:      formatTime(lead.CreatedAt),
		UpdatedAt:      formatTime(lead.UpdatedAt),
	}
	if lead.CurrentStage != nil {
		dto.CurrentStage = lead.CurrentStage.Name
	}
	return dto
}

// ToLeadStageHistoryDTO converts a ledger row
func ToLeadStageHistoryDTO(entry *domain.LeadStageHistory) domain.LeadStageHistoryDTO {
	return domain.LeadStageHistoryDTO{
		ID:          entry.ID,
		LeadID:      entry.LeadID,
		FromStageID: entry.FromStageID,
		ToStageID:   entry.ToStageID,
		FromFunnel:  entry.FromFunnel,
		ToFunnel:    entry.ToFunnel,
		Reason:      entry.Reason,
		MovedBy:     entry.MovedBy,
		MovedAt:     formatTime(entry.MovedAt),
	}
}

func ToLeadActivityDTO(activity *domain.LeadActivity) domain.LeadActivityDTO {
	return domain.LeadActivityDTO{
		ID:         activity.ID,
		LeadID:     activity.LeadID,
		Type:       activity.Type,
		Title:      activity.Title,
		Notes:      activity.Notes,
		CreatedBy:  activity.CreatedBy,
		OccurredAt: formatTime(activity.OccurredAt),
	}
}

// ToProfileDTO converts Profile to ProfileDTO. The password hash is dropped.
func ToProfileDTO(profile *domain.Profile) domain.ProfileDTO {
	return domain.ProfileDTO{
		ID:        profile.ID,
		Email:     profile.Email,
		FullName:  profile.FullName,
		Role:      profile.Role,
		IsActive:  profile.IsActive,
		CreatedAt: formatTime(profile.CreatedAt),
		UpdatedAt: formatTime(profile.UpdatedAt),
	}
}
