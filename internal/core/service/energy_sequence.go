package service

import (
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/core/port"

	"go.uber.org/zap"
)

const (
	DEFAULT_ACTIVATE_AFTER      = 2000 * time.Millisecond
	DEFAULT_POWER_FLOW_AFTER    = 3000 * time.Millisecond
	DEFAULT_ENABLE_SWITCH_AFTER = 3500 * time.Millisecond
)

// DefaultEnergySequence is the energy system store. Every mutator returns
// whether the state changed.
type DefaultEnergySequence struct {
	ActivateAfter     time.Duration
	PowerFlowAfter    time.Duration
	EnableSwitchAfter time.Duration
	Logger            *zap.Logger

	state domain.EnergySystemState
}

var _ port.EnergySequenceLogic = (*DefaultEnergySequence)(nil)

func NewDefaultEnergySequence(logger *zap.Logger) *DefaultEnergySequence {
	return &DefaultEnergySequence{
		ActivateAfter:     DEFAULT_ACTIVATE_AFTER,
		PowerFlowAfter:    DEFAULT_POWER_FLOW_AFTER,
		EnableSwitchAfter: DEFAULT_ENABLE_SWITCH_AFTER,
		Logger:            logger,
	}
}

func (s *DefaultEnergySequence) State() domain.EnergySystemState {
	return s.state
}

func (s *DefaultEnergySequence) Stages() []port.StageAt {
	return []port.StageAt{
		{Stage: domain.BootStageBoot, After: 0},
		{Stage: domain.BootStageActivate, After: s.ActivateAfter},
		{Stage: domain.BootStagePowerFlow, After: s.PowerFlowAfter},
		{Stage: domain.BootStageEnableSwitch, After: s.EnableSwitchAfter},
	}
}

func (s *DefaultEnergySequence) ApplyStage(stage domain.BootStage) bool {
	return s.mutate(func(st *domain.EnergySystemState) {
		switch stage {
		case domain.BootStageBoot:
			st.Booting = true
		case domain.BootStageActivate:
			st.Booting = false
			s.setInverterActive(st, true)
		case domain.BootStagePowerFlow:
			if st.InverterActive {
				st.PowerFlowActive = true
			}
		case domain.BootStageEnableSwitch:
			if st.InverterActive {
				st.SwitchEnabled = true
			}
		}
	})
}

func (s *DefaultEnergySequence) SetInverterActive(active bool) bool {
	return s.mutate(func(st *domain.EnergySystemState) {
		s.setInverterActive(st, active)
	})
}

func (s *DefaultEnergySequence) setInverterActive(st *domain.EnergySystemState, active bool) {
	st.InverterActive = active
	if !active {
		st.SwitchActive = false
		st.SwitchEnabled = false
		st.PowerFlowActive = false
		st.ShowHeroSection = false
		st.ShowTagSection = false
	}
}

// SetSwitchActive ignores an activation while the switch is disabled.
func (s *DefaultEnergySequence) SetSwitchActive(active bool) bool {
	if active && !s.state.SwitchEnabled {
		if s.Logger != nil {
			s.Logger.Debug("energy_system: switch is disabled, ignoring activation")
		}
		return false
	}
	return s.mutate(func(st *domain.EnergySystemState) {
		st.SwitchActive = active
	})
}

func (s *DefaultEnergySequence) SetSwitchEnabled(enabled bool) bool {
	return s.mutate(func(st *domain.EnergySystemState) {
		st.SwitchEnabled = enabled
		if !enabled {
			st.SwitchActive = false
		}
	})
}

// SetPowerFlowActive ignores an activation while the inverter is off.
func (s *DefaultEnergySequence) SetPowerFlowActive(active bool) bool {
	if active && !s.state.InverterActive {
		if s.Logger != nil {
			s.Logger.Debug("energy_system: inverter is off, ignoring power flow activation")
		}
		return false
	}
	return s.mutate(func(st *domain.EnergySystemState) {
		st.PowerFlowActive = active
	})
}

func (s *DefaultEnergySequence) SetShowHeroSection(show bool) bool {
	return s.mutate(func(st *domain.EnergySystemState) {
		st.ShowHeroSection = show
	})
}

func (s *DefaultEnergySequence) SetShowTagSection(show bool) bool {
	return s.mutate(func(st *domain.EnergySystemState) {
		st.ShowTagSection = show
	})
}

func (s *DefaultEnergySequence) DeactivateFullSystem() bool {
	return s.mutate(func(st *domain.EnergySystemState) {
		st.InverterActive = false
		st.SwitchActive = false
		st.SwitchEnabled = false
		st.Booting = false
		st.PowerFlowActive = false
		st.ShowHeroSection = false
		st.ShowTagSection = false
	})
}

func (s *DefaultEnergySequence) ToggleAnimations() bool {
	return s.mutate(func(st *domain.EnergySystemState) {
		st.AnimationsPaused = !st.AnimationsPaused
	})
}

func (s *DefaultEnergySequence) mutate(fn func(*domain.EnergySystemState)) bool {
	next := s.state
	fn(&next)
	changed := next != s.state
	s.state = next
	return changed
}
