package port

import (
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
)

type EnergySequenceLogic interface {
	State() domain.EnergySystemState
	// Stages returns the activation stages with their offsets from the start request.
	Stages() []StageAt
	ApplyStage(stage domain.BootStage) bool
	SetInverterActive(active bool) bool
	SetSwitchActive(active bool) bool
	SetSwitchEnabled(enabled bool) bool
	SetPowerFlowActive(active bool) bool
	SetShowHeroSection(show bool) bool
	SetShowTagSection(show bool) bool
	DeactivateFullSystem() bool
	ToggleAnimations() bool
}

type StageAt struct {
	Stage domain.BootStage
	After time.Duration
}
