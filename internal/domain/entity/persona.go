// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Gender 角色性别
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// PersonaImages 角色形象图集合
type PersonaImages struct {
	Base          string            `json:"base,omitempty"`
	NeutralMale   string            `json:"neutral_male,omitempty"`
	NeutralFemale string            `json:"neutral_female,omitempty"`
	Expressions   map[string]string `json:"expressions,omitempty"`
}

// Persona AI 对话角色定义
type Persona struct {
	ID            string                            `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string                            `json:"name" gorm:"type:varchar(128);not null"`
	Gender        Gender                            `json:"gender" gorm:"type:varchar(16);not null;default:'female'"`
	MBTI          string                            `json:"mbti,omitempty" gorm:"type:varchar(8)"`
	Traits        datatypes.JSONSlice[string]       `json:"traits,omitempty"`
	SpeakingStyle string                            `json:"speaking_style,omitempty" gorm:"type:text"`
	Background    string                            `json:"background,omitempty" gorm:"type:text"`
	Images        datatypes.JSONType[PersonaImages] `json:"images"`
	ProfileImage  string                            `json:"profile_image,omitempty" gorm:"type:varchar(512)"`
	CreatedAt     time.Time                         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time                         `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Persona) TableName() string {
	return "personas"
}

func (p *Persona) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Snapshot 复制当前角色定义，供会话创建时固化
func (p *Persona) Snapshot() PersonaSnapshot {
	images := p.Images.Data()
	if images.Expressions != nil {
		cp := make(map[string]string, len(images.Expressions))
		for k, v := range images.Expressions {
			cp[k] = v
		}
		images.Expressions = cp
	}
	return PersonaSnapshot{
		PersonaID:     p.ID,
		Name:          p.Name,
		Gender:        p.Gender,
		MBTI:          p.MBTI,
		Traits:        append([]string(nil), p.Traits...),
		SpeakingStyle: p.SpeakingStyle,
		Background:    p.Background,
		Images:        images,
		ProfileImage:  p.ProfileImage,
	}
}

// PersonaSnapshot 会话创建时固化的角色副本，之后不再与角色定义同步
type PersonaSnapshot struct {
	PersonaID     string        `json:"persona_id"`
	Name          string        `json:"name"`
	Gender        Gender        `json:"gender"`
	MBTI          string        `json:"mbti,omitempty"`
	Traits        []string      `json:"traits,omitempty"`
	SpeakingStyle string        `json:"speaking_style,omitempty"`
	Background    string        `json:"background,omitempty"`
	Images        PersonaImages `json:"images"`
	ProfileImage  string        `json:"profile_image,omitempty"`
}
