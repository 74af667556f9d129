package server

import (
	"encoding/json"
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	WS_WRITE_TIMEOUT = 5 * time.Second
	WS_PING_INTERVAL = 30 * time.Second
	WS_BUFFER_SIZE   = 64
)

const (
	WS_MESSAGE_ENERGY   = "energy"
	WS_MESSAGE_INVERTER = "inverter"
)

// wsMessage is one frame of the state stream.
type wsMessage struct {
	Type     string                       `json:"type"`
	Energy   *domain.EnergySystemSnapshot `json:"energy,omitempty"`
	Inverter *domain.InverterSnapshot     `json:"inverter,omitempty"`
}

func energyMessage(state domain.EnergySystemState) wsMessage {
	snapshot := state.Snapshot()
	return wsMessage{Type: WS_MESSAGE_ENERGY, Energy: &snapshot}
}

func inverterMessage(snapshot domain.InverterSnapshot) wsMessage {
	return wsMessage{Type: WS_MESSAGE_INVERTER, Inverter: &snapshot}
}

// WebSocketHandler sends the current state on connect, then every energy and
// telemetry event. Slow clients lose events rather than block publishers.
func (s *Server) WebSocketHandler(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	logger := s.logger.With(zap.String("remote", c.RealIP()))
	logger.Debug("ws@open")

	messages := make(chan wsMessage, WS_BUFFER_SIZE)
	offer := func(msg wsMessage) {
		select {
		case messages <- msg:
		default:
			logger.Debug("ws@stream dropped event", zap.String("type", msg.Type))
		}
	}

	subscription := s.eventStream.Subscribe(func(evt any) {
		switch e := evt.(type) {
		case domain.EnergyStateChangedEvent:
			offer(energyMessage(e.State))
		case domain.InverterTelemetryEvent:
			offer(inverterMessage(e.Snapshot))
		}
	})
	defer s.eventStream.Unsubscribe(subscription)

	// initial snapshot
	if energy, err := requestMaster[domain.GetEnergySystemStateResponse](s, domain.GetEnergySystemStateRequest{}); err == nil {
		if err := s.writeMessage(ws, energyMessage(energy.State)); err != nil {
			return nil
		}
	}
	if list, err := requestMaster[domain.ListInvertersResponse](s, domain.ListInvertersRequest{}); err == nil {
		for _, inv := range list.Inverters {
			if err := s.writeMessage(ws, inverterMessage(inv)); err != nil {
				return nil
			}
		}
	}

	// the reader only detects the close of the connection
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(WS_PING_INTERVAL)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			logger.Debug("ws@closed")
			return nil
		case <-c.Request().Context().Done():
			return nil
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(WS_WRITE_TIMEOUT)); err != nil {
				logger.Debug("ws@ping failed", zap.Error(err))
				return nil
			}
		case msg := <-messages:
			if err := s.writeMessage(ws, msg); err != nil {
				logger.Debug("ws@write failed", zap.Error(err))
				return nil
			}
		}
	}
}

func (s *Server) writeMessage(ws *websocket.Conn, msg wsMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := ws.SetWriteDeadline(time.Now().Add(WS_WRITE_TIMEOUT)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, payload)
}
