package sunspec_modbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"
)

// RequestHandler serves read-only holding register images, one per unit id.
type RequestHandler struct {
	lock   sync.RWMutex
	images map[uint8][]uint16
}

func NewRequestHandler() *RequestHandler {
	return &RequestHandler{
		images: make(map[uint8][]uint16),
	}
}

// Update replaces the image of a unit.
func (h *RequestHandler) Update(unitId uint8, regs []uint16) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.images[unitId] = regs
}

func (h *RequestHandler) Units() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.images)
}

func (h *RequestHandler) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *RequestHandler) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *RequestHandler) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *RequestHandler) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.IsWrite {
		return nil, modbus.ErrIllegalFunction
	}
	h.lock.RLock()
	defer h.lock.RUnlock()

	regs, ok := h.images[req.UnitId]
	if !ok {
		return nil, modbus.ErrIllegalDataAddress
	}
	if req.Addr < SUNSPEC_BASE_ADDR {
		return nil, modbus.ErrIllegalDataAddress
	}
	start := int(req.Addr - SUNSPEC_BASE_ADDR)
	end := start + int(req.Quantity)
	if end > len(regs) {
		return nil, modbus.ErrIllegalDataAddress
	}
	res := make([]uint16, req.Quantity)
	copy(res, regs[start:end])
	return res, nil
}

// RegisterServer is a Modbus TCP server in front of a RequestHandler.
type RegisterServer struct {
	*RequestHandler
	server *modbus.ModbusServer
}

func NewRegisterServer(host string, port uint, maxClients uint, timeout time.Duration) (*RegisterServer, error) {
	handler := NewRequestHandler()
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout:    timeout,
		MaxClients: maxClients,
	}, handler)
	if err != nil {
		return nil, err
	}
	return &RegisterServer{
		RequestHandler: handler,
		server:         server,
	}, nil
}

func (s *RegisterServer) Start() error {
	return s.server.Start()
}

func (s *RegisterServer) Stop() error {
	return s.server.Stop()
}
