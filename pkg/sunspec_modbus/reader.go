package sunspec_modbus

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/simonvetter/modbus"
)

// InverterReader reads back a register image served by RegisterServer.
type InverterReader struct {
	client *modbus.ModbusClient
	blocks inverterBlocks
}

type inverterBlocks struct {
	common   uint16
	inverter uint16
	storage  uint16
}

type modbusBlock struct {
	id       uint16
	baseAddr uint16
	length   uint16
}

func (block *modbusBlock) isEndBlock() bool {
	return block.id == SUNSPEC_WK_END
}

func CreateInverterReader(host string, port uint, unitId uint8, timeout time.Duration) (*InverterReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if err = client.SetUnitId(unitId); err != nil {
		return nil, err
	}
	return &InverterReader{client: client}, nil
}

func (inv *InverterReader) Open() error {
	if err := inv.client.Open(); err != nil {
		return err
	}
	return inv.survey()
}

func (inv *InverterReader) Close() error {
	return inv.client.Close()
}

func (inv *InverterReader) GetInfo() (*InverterInfo, error) {
	manufacturer, err := inv.readString(inv.blocks.common+commonManufacturer, 32)
	if err != nil {
		return nil, err
	}
	model, err := inv.readString(inv.blocks.common+commonModel, 32)
	if err != nil {
		return nil, err
	}
	version, err := inv.readString(inv.blocks.common+commonVersion, 16)
	if err != nil {
		return nil, err
	}
	serial, err := inv.readString(inv.blocks.common+commonSerial, 32)
	if err != nil {
		return nil, err
	}
	unitId, err := inv.client.ReadRegister(inv.blocks.common+commonDeviceAddr, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	maxPower, err := inv.client.ReadRegister(inv.blocks.storage+storageWChaMax, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return &InverterInfo{
		Manufacturer:      manufacturer,
		Model:             model,
		Version:           version,
		Serial:            serial,
		UnitId:            uint8(unitId),
		MaxRatedPowerWatt: uint32(maxPower),
	}, nil
}

func (inv *InverterReader) GetState() (*InverterState, error) {
	regs, err := inv.client.ReadRegisters(inv.blocks.inverter, SUNSPEC_LEN_INVERTER+2, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	st := regs[inverterSt]
	return &InverterState{
		CabinetTemperature: applySFint16(int16(regs[inverterTmpCab]), regs[inverterTmpSF]),
		OperatingState:     st,
		OperatingStateStr:  InverterStatusToString(st),
		OutputFrequency:    applySF(regs[inverterHz], regs[inverterHzSF]),
		ACPowerWatt:        applySFint16(int16(regs[inverterW]), regs[inverterWSF]),
		EnergyWh:           uint32(regs[inverterWH])<<16 | uint32(regs[inverterWH+1]),
	}, nil
}

func (inv *InverterReader) GetStorageState() (*StorageState, error) {
	regs, err := inv.client.ReadRegisters(inv.blocks.storage, SUNSPEC_LEN_STORAGE+2, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return &StorageState{
		StateOfCharge:   applySF(regs[storageChaState], regs[storageChaStateSF]),
		MaxChargeWatt:   uint32(applySF(regs[storageWChaMax], regs[storageWChaMaxSF])),
		ChargeStatus:    regs[storageChaSt],
		ChargeStatusStr: StorageChargeStatusToString(regs[storageChaSt]),
	}, nil
}

func (inv *InverterReader) survey() error {

	// check SunSpec
	str, err := inv.readString(SUNSPEC_BASE_ADDR, 4)
	if err != nil {
		return err
	}
	if str != "SunS" {
		return errors.New("could not find a SunSpec device")
	}

	// survey blocks
	blocks := inverterBlocks{}
	baseAddr := SUNSPEC_FIRST_ADDR
	for n := 0; n <= 20; n++ {
		block, err := inv.surveyBlock(baseAddr)
		if err != nil {
			return err
		}
		if block.isEndBlock() {
			break
		}
		switch block.id {
		case SUNSPEC_WK_COMMON:
			blocks.common = block.baseAddr
		case SUNSPEC_WK_INVERTER:
			blocks.inverter = block.baseAddr
		case SUNSPEC_WK_STORAGE:
			blocks.storage = block.baseAddr
		}
		baseAddr = baseAddr + block.length + 2
	}
	if blocks.common == 0 || blocks.inverter == 0 || blocks.storage == 0 {
		return errors.New("could not find all required sunspec blocks (common, inverter, storage)")
	}
	inv.blocks = blocks
	return nil
}

func (inv *InverterReader) surveyBlock(baseAddr uint16) (*modbusBlock, error) {
	regs, err := inv.client.ReadRegisters(baseAddr, 2, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return &modbusBlock{
		id:       regs[0],
		length:   regs[1],
		baseAddr: baseAddr,
	}, nil
}

func (inv *InverterReader) readString(address uint16, size uint16) (string, error) {
	bytes, err := inv.client.ReadRawBytes(address, size, modbus.HOLDING_REGISTER)
	if err != nil {
		return "", err
	}
	f := slices.Index(bytes, 0x00)
	if f >= 0 {
		return string(bytes[:f]), nil
	}
	return string(bytes), nil
}

func applySF(number uint16, sf uint16) float64 {
	return float64(number) * math.Pow(10, float64(int16(sf)))
}

func applySFint16(number int16, sf uint16) float64 {
	return float64(number) * math.Pow(10, float64(int16(sf)))
}
