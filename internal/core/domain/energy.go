package domain

// Phase names the meaningful combinations of the energy system flags.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseBooting       Phase = "booting"
	PhaseActiveNoFlow  Phase = "active_no_flow"
	PhaseActiveFlowing Phase = "active_flowing"
	PhaseActiveReady   Phase = "active_ready"
	PhaseSwitchOn      Phase = "switch_on"
)

type BootStage int

const (
	BootStageBoot BootStage = iota
	BootStageActivate
	BootStagePowerFlow
	BootStageEnableSwitch
)

func (s BootStage) String() string {
	switch s {
	case BootStageBoot:
		return "boot"
	case BootStageActivate:
		return "activate"
	case BootStagePowerFlow:
		return "power_flow"
	case BootStageEnableSwitch:
		return "enable_switch"
	default:
		return "unknown"
	}
}

type EnergySystemState struct {
	InverterActive   bool `json:"inverterActive"`
	SwitchActive     bool `json:"switchActive"`
	SwitchEnabled    bool `json:"switchEnabled"`
	Booting          bool `json:"booting"`
	PowerFlowActive  bool `json:"powerFlowActive"`
	ShowHeroSection  bool `json:"showHeroSection"`
	ShowTagSection   bool `json:"showTagSection"`
	AnimationsPaused bool `json:"animationsPaused"`
}

// Phase derives the named state from the flags.
func (s EnergySystemState) Phase() Phase {
	switch {
	case s.Booting:
		return PhaseBooting
	case !s.InverterActive:
		return PhaseIdle
	case s.SwitchActive:
		return PhaseSwitchOn
	case s.PowerFlowActive && s.SwitchEnabled:
		return PhaseActiveReady
	case s.PowerFlowActive:
		return PhaseActiveFlowing
	default:
		return PhaseActiveNoFlow
	}
}

type EnergySystemSnapshot struct {
	EnergySystemState
	Phase Phase `json:"phase"`
}

func (s EnergySystemState) Snapshot() EnergySystemSnapshot {
	return EnergySystemSnapshot{
		EnergySystemState: s,
		Phase:             s.Phase(),
	}
}
