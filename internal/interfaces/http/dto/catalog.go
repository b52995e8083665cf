package dto

import (
	"gorm.io/datatypes"

	"roleplay-coach-api/internal/domain/entity"
)

// PersonaResponse 角色定义响应
type PersonaResponse struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Gender        string               `json:"gender"`
	MBTI          string               `json:"mbti,omitempty"`
	Traits        []string             `json:"traits,omitempty"`
	SpeakingStyle string               `json:"speaking_style,omitempty"`
	Background    string               `json:"background,omitempty"`
	Images        entity.PersonaImages `json:"images"`
	ProfileImage  string               `json:"profile_image,omitempty"`
}

func ToPersonaResponse(p *entity.Persona) *PersonaResponse {
	if p == nil {
		return nil
	}
	return &PersonaResponse{
		ID:            p.ID,
		Name:          p.Name,
		Gender:        string(p.Gender),
		MBTI:          p.MBTI,
		Traits:        []string(p.Traits),
		SpeakingStyle: p.SpeakingStyle,
		Background:    p.Background,
		Images:        p.Images.Data(),
		ProfileImage:  p.ProfileImage,
	}
}

// PersonaListResponse 角色列表响应
type PersonaListResponse struct {
	Personas []*PersonaResponse `json:"personas"`
}

func ToPersonaListResponse(items []*entity.Persona) *PersonaListResponse {
	out := make([]*PersonaResponse, 0, len(items))
	for _, p := range items {
		out = append(out, ToPersonaResponse(p))
	}
	return &PersonaListResponse{Personas: out}
}

// ScenarioResponse 场景定义响应
type ScenarioResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Objectives  []string `json:"objectives,omitempty"`
	Timeline    string   `json:"timeline,omitempty"`
	PersonaIDs  []string `json:"persona_ids"`
	MaxTurns    int      `json:"max_turns"`
}

func ToScenarioResponse(s *entity.Scenario) *ScenarioResponse {
	if s == nil {
		return nil
	}
	personaIDs := []string(s.PersonaIDs)
	if personaIDs == nil {
		personaIDs = []string{}
	}
	return &ScenarioResponse{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Objectives:  []string(s.Objectives),
		Timeline:    s.Timeline,
		PersonaIDs:  personaIDs,
		MaxTurns:    s.MaxTurns,
	}
}

// ScenarioListResponse 场景列表响应
type ScenarioListResponse struct {
	Scenarios []*ScenarioResponse `json:"scenarios"`
}

func ToScenarioListResponse(items []*entity.Scenario) *ScenarioListResponse {
	out := make([]*ScenarioResponse, 0, len(items))
	for _, s := range items {
		out = append(out, ToScenarioResponse(s))
	}
	return &ScenarioListResponse{Scenarios: out}
}

// CreatePersonaRequest 创建角色请求
type CreatePersonaRequest struct {
	Name          string               `json:"name" binding:"required"`
	Gender        string               `json:"gender" binding:"required,oneof=male female"`
	MBTI          string               `json:"mbti,omitempty"`
	Traits        []string             `json:"traits,omitempty"`
	SpeakingStyle string               `json:"speaking_style,omitempty"`
	Background    string               `json:"background,omitempty"`
	Images        entity.PersonaImages `json:"images"`
	ProfileImage  string               `json:"profile_image,omitempty"`
}

func (r *CreatePersonaRequest) ToPersonaEntity() *entity.Persona {
	return &entity.Persona{
		Name:          r.Name,
		Gender:        entity.Gender(r.Gender),
		MBTI:          r.MBTI,
		Traits:        datatypes.JSONSlice[string](r.Traits),
		SpeakingStyle: r.SpeakingStyle,
		Background:    r.Background,
		Images:        datatypes.NewJSONType(r.Images),
		ProfileImage:  r.ProfileImage,
	}
}

// CreateScenarioRequest 创建场景请求，PersonaIDs 为推荐对话顺序
type CreateScenarioRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description,omitempty"`
	Objectives  []string `json:"objectives,omitempty"`
	Timeline    string   `json:"timeline,omitempty"`
	PersonaIDs  []string `json:"persona_ids" binding:"required,min=1"`
	MaxTurns    int      `json:"max_turns,omitempty" binding:"omitempty,min=1,max=100"`
}

func (r *CreateScenarioRequest) ToScenarioEntity() *entity.Scenario {
	return &entity.Scenario{
		Title:       r.Title,
		Description: r.Description,
		Objectives:  datatypes.JSONSlice[string](r.Objectives),
		Timeline:    r.Timeline,
		PersonaIDs:  datatypes.JSONSlice[string](r.PersonaIDs),
		MaxTurns:    r.MaxTurns,
	}
}
