package sunspec_modbus

import (
	"math"
)

const (
	commonAddr   = SUNSPEC_FIRST_ADDR
	inverterAddr = commonAddr + 2 + SUNSPEC_LEN_COMMON
	storageAddr  = inverterAddr + 2 + SUNSPEC_LEN_INVERTER
	endAddr      = storageAddr + 2 + SUNSPEC_LEN_STORAGE

	// IMAGE_SIZE is the number of registers from SUNSPEC_BASE_ADDR to the end block.
	IMAGE_SIZE = int(endAddr-SUNSPEC_BASE_ADDR) + 2
)

// EncodeInverterImage lays out the common, inverter (model 103) and storage
// blocks of one inverter, starting at SUNSPEC_BASE_ADDR.
func EncodeInverterImage(info InverterInfo, values InverterValues) []uint16 {
	regs := make([]uint16, IMAGE_SIZE)
	at := func(addr uint16) int {
		return int(addr - SUNSPEC_BASE_ADDR)
	}

	putString(regs[at(SUNSPEC_BASE_ADDR):], "SunS", 2)

	// common
	c := at(commonAddr)
	regs[c] = SUNSPEC_WK_COMMON
	regs[c+1] = SUNSPEC_LEN_COMMON
	putString(regs[c+commonManufacturer:], info.Manufacturer, 16)
	putString(regs[c+commonModel:], info.Model, 16)
	putString(regs[c+commonOptions:], "", 8)
	putString(regs[c+commonVersion:], info.Version, 8)
	putString(regs[c+commonSerial:], info.Serial, 16)
	regs[c+commonDeviceAddr] = uint16(info.UnitId)

	// inverter
	i := at(inverterAddr)
	regs[i] = SUNSPEC_WK_INVERTER
	regs[i+1] = SUNSPEC_LEN_INVERTER
	regs[i+inverterW] = uint16(int16(math.Round(values.ACPowerWatt)))
	regs[i+inverterWSF] = sf(0)
	regs[i+inverterHz] = uint16(math.Round(values.OutputFrequency * 100))
	regs[i+inverterHzSF] = sf(-2)
	regs[i+inverterWH] = uint16(values.EnergyWh >> 16)
	regs[i+inverterWH+1] = uint16(values.EnergyWh)
	regs[i+inverterWHSF] = sf(0)
	regs[i+inverterTmpCab] = uint16(int16(math.Round(values.CabinetTemperature * 10)))
	regs[i+inverterTmpSF] = sf(-1)
	regs[i+inverterSt] = operatingState(values)

	// storage
	s := at(storageAddr)
	regs[s] = SUNSPEC_WK_STORAGE
	regs[s+1] = SUNSPEC_LEN_STORAGE
	regs[s+storageWChaMax] = uint16(min(info.MaxRatedPowerWatt, math.MaxUint16))
	regs[s+storageWChaMaxSF] = sf(0)
	regs[s+storageChaState] = uint16(math.Round(values.StateOfCharge * 10))
	regs[s+storageChaStateSF] = sf(-1)
	regs[s+storageChaSt] = chargeStatus(values)

	// end
	e := at(endAddr)
	regs[e] = SUNSPEC_WK_END
	regs[e+1] = 0

	return regs
}

func operatingState(values InverterValues) uint16 {
	switch {
	case values.Fault:
		return InverterStatusFault
	case values.On:
		return InverterStatusMPPT
	default:
		return InverterStatusOff
	}
}

func chargeStatus(values InverterValues) uint16 {
	switch {
	case !values.BatteryConnected:
		return StorageChargeStatusOff
	case values.BatteryCharging && values.StateOfCharge >= 100:
		return StorageChargeStatusFull
	case values.BatteryCharging:
		return StorageChargeStatusCharging
	case values.StateOfCharge <= 0:
		return StorageChargeStatusEmpty
	default:
		return StorageChargeStatusDischarging
	}
}

// putString writes text as big endian byte pairs, zero padded to size registers.
func putString(regs []uint16, text string, size int) {
	b := []byte(text)
	for r := 0; r < size; r++ {
		var hi, lo byte
		if 2*r < len(b) {
			hi = b[2*r]
		}
		if 2*r+1 < len(b) {
			lo = b[2*r+1]
		}
		regs[r] = uint16(hi)<<8 | uint16(lo)
	}
}

func sf(exp int16) uint16 {
	return uint16(exp)
}
