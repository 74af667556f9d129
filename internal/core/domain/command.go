package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownInverter   = errors.New("unknown inverter")
	ErrDiscoveryDisabled = errors.New("home assistant discovery disabled")
)

// EnergySystemRequest

type EnergySystemRequest interface {
	ActorRequest
	EnergySystemCommand() string
}

type EnergySystemRequestMixIn struct {
	ActorRequestMixIn
}

func (r EnergySystemRequestMixIn) EnergySystemCommand() string {
	return fmt.Sprintf("%T", r)
}

// EnergySystem commands

type StartEnergySystemRequest struct {
	EnergySystemRequestMixIn
}

const (
	START_REJECTED_BOOTING = "already_booting"
	START_REJECTED_ACTIVE  = "already_active"
)

type StartEnergySystemResponse struct {
	ActorResponseMixIn
	Started bool
	Reason  string
	State   EnergySystemState
}

type SetInverterActiveRequest struct {
	EnergySystemRequestMixIn
	Active bool
}

type SetSwitchActiveRequest struct {
	EnergySystemRequestMixIn
	Active bool
}

type SetSwitchEnabledRequest struct {
	EnergySystemRequestMixIn
	Enabled bool
}

type SetPowerFlowActiveRequest struct {
	EnergySystemRequestMixIn
	Active bool
}

type SetShowHeroSectionRequest struct {
	EnergySystemRequestMixIn
	Show bool
}

type SetShowTagSectionRequest struct {
	EnergySystemRequestMixIn
	Show bool
}

type DeactivateFullSystemRequest struct {
	EnergySystemRequestMixIn
}

type ToggleAnimationsRequest struct {
	EnergySystemRequestMixIn
}

// SetAnimationsPausedRequest toggles animations only when they differ from Paused.
type SetAnimationsPausedRequest struct {
	EnergySystemRequestMixIn
	Paused bool
}

// EnergySystemCommandResponse answers every command but the start request.
// Applied is false when a guard ignored the command or nothing changed.
type EnergySystemCommandResponse struct {
	ActorResponseMixIn
	Applied bool
	State   EnergySystemState
}

// InverterRequest

type InverterRequest interface {
	ActorRequest
	InverterId() string
}

type InverterRequestMixIn struct {
	ActorRequestMixIn
	Id string
}

func (r InverterRequestMixIn) InverterId() string {
	return r.Id
}

// Inverter commands

type CycleModeRequest struct {
	InverterRequestMixIn
}

type CycleDisplayOptionRequest struct {
	InverterRequestMixIn
}

type SetLoadPercentageRequest struct {
	InverterRequestMixIn
	Percentage float64
}

type InverterCommandResponse struct {
	ActorResponseMixIn
	Snapshot InverterSnapshot
}

// ensure interface compliance
var _ EnergySystemRequest = (*StartEnergySystemRequest)(nil)
var _ InverterRequest = (*CycleModeRequest)(nil)
var _ InverterRequest = (*GetInverterSnapshotRequest)(nil)
