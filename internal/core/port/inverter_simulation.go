package port

import "github.com/worldgrean1/grean-world-sub001/internal/core/domain"

// RandomSource yields uniformly distributed values in [0, 1).
type RandomSource interface {
	Float64() float64
}

type InverterSimulationLogic interface {
	CoolDownTick(t *domain.InverterTelemetry)
	HeatTick(t *domain.InverterTelemetry) domain.TickResult
	DeriveConnections(t *domain.InverterTelemetry, inverterOn bool)
	CycleMode(t *domain.InverterTelemetry, inverterOn bool)
	CycleDisplayOption(t *domain.InverterTelemetry)
	SetLoadPercentage(t *domain.InverterTelemetry, percentage float64)
}
