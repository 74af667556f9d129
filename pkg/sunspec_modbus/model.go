package sunspec_modbus

import (
	"fmt"
)

const (
	SUNSPEC_BASE_ADDR  uint16 = 40000
	SUNSPEC_FIRST_ADDR uint16 = 40002

	SUNSPEC_WK_COMMON     = 1
	SUNSPEC_WK_INVERTER   = 103
	SUNSPEC_WK_STORAGE    = 124
	SUNSPEC_WK_END        = 0xFFFF
	SUNSPEC_LEN_COMMON    = 66
	SUNSPEC_LEN_INVERTER  = 50
	SUNSPEC_LEN_STORAGE   = 24
	SUNSPEC_NOT_AVAILABLE = 0xFFFF
)

// register offsets, relative to the block id register
const (
	commonManufacturer = 2
	commonModel        = 18
	commonOptions      = 34
	commonVersion      = 42
	commonSerial       = 50
	commonDeviceAddr   = 66

	inverterW      = 14
	inverterWSF    = 15
	inverterHz     = 16
	inverterHzSF   = 17
	inverterWH     = 24
	inverterWHSF   = 26
	inverterTmpCab = 33
	inverterTmpSF  = 37
	inverterSt     = 38

	storageWChaMax    = 2
	storageChaState   = 8
	storageChaSt      = 11
	storageWChaMaxSF  = 18
	storageChaStateSF = 22
)

// storage states
const (
	StorageChargeStatusOff         = 1
	StorageChargeStatusEmpty       = 2
	StorageChargeStatusDischarging = 3
	StorageChargeStatusCharging    = 4
	StorageChargeStatusFull        = 5
	StorageChargeStatusHolding     = 6
)

// storage state strings
const (
	StorageChargeStatusOffStr         = "off"
	StorageChargeStatusEmptyStr       = "empty"
	StorageChargeStatusDischargingStr = "discharging"
	StorageChargeStatusChargingStr    = "charging"
	StorageChargeStatusFullStr        = "full"
	StorageChargeStatusHoldingStr     = "holding"
	StorageChargeStatusUnknownStr     = "unknown"
)

func StorageChargeStatusToString(storage uint16) string {
	switch storage {
	case StorageChargeStatusOff:
		return StorageChargeStatusOffStr
	case StorageChargeStatusEmpty:
		return StorageChargeStatusEmptyStr
	case StorageChargeStatusDischarging:
		return StorageChargeStatusDischargingStr
	case StorageChargeStatusCharging:
		return StorageChargeStatusChargingStr
	case StorageChargeStatusFull:
		return StorageChargeStatusFullStr
	case StorageChargeStatusHolding:
		return StorageChargeStatusHoldingStr
	default:
		return fmt.Sprintf("%s(%d)", StorageChargeStatusUnknownStr, storage)
	}
}

const (
	InverterStatusOff   = 1
	InverterStatusMPPT  = 4
	InverterStatusFault = 7
)

const (
	InverterStatusOffStr   = "off"
	InverterStatusMPPTStr  = "mppt_tracking"
	InverterStatusFaultStr = "fault"
	InverterStatusUnknown  = "unknown"
)

func InverterStatusToString(state uint16) string {
	switch state {
	case InverterStatusOff:
		return InverterStatusOffStr
	case InverterStatusMPPT:
		return InverterStatusMPPTStr
	case InverterStatusFault:
		return InverterStatusFaultStr
	default:
		return fmt.Sprintf("%s(%d)", InverterStatusUnknown, state)
	}
}

type InverterInfo struct {
	Manufacturer      string
	Model             string
	Version           string
	Serial            string
	MaxRatedPowerWatt uint32
	UnitId            uint8
}

// InverterValues is the live part of the register image.
type InverterValues struct {
	On                 bool
	Fault              bool
	CabinetTemperature float64
	OutputFrequency    float64
	ACPowerWatt        float64
	EnergyWh           uint32
	BatteryConnected   bool
	BatteryCharging    bool
	StateOfCharge      float64
}

type InverterState struct {
	CabinetTemperature float64
	OperatingState     uint16
	OperatingStateStr  string
	OutputFrequency    float64
	ACPowerWatt        float64
	EnergyWh           uint32
}

type StorageState struct {
	StateOfCharge   float64
	MaxChargeWatt   uint32
	ChargeStatus    uint16
	ChargeStatusStr string
}
