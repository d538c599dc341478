package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"plasflow/model"
	"plasflow/solver"
)

// 消息类型
const (
	TypeSolve    = "solve"
	TypeResult   = "result"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeSettings = "settings"
	TypeError    = "error"
)

type solveFunc func(ctx context.Context, ms model.MeasurementSet) solver.Result

// Hub serves one websocket session: requests are dispatched in arrival order and replies
// are written by a single goroutine.
type Hub struct {
	id       string
	conn     *websocket.Conn
	solve    solveFunc
	settings solver.Settings
	log      log.FieldLogger
	// request
	msg chan model.Msg
	// response
	reply chan model.Msg
}

func NewHub(id string, solve solveFunc, settings solver.Settings, logger log.FieldLogger) *Hub {
	return &Hub{
		id:       id,
		solve:    solve,
		settings: settings,
		log:      logger.WithField("session", id),
		msg:      make(chan model.Msg, 10),
		reply:    make(chan model.Msg, 10),
	}
}

func (h *Hub) handleResponse(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reply := <-h.reply:
			if err := h.conn.WriteJSON(&reply); err != nil {
				h.log.WithError(err).Warn("write reply")
			}
		}
	}
}

func (h *Hub) handleRequest(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.msg:
			reply := h.dispatch(ctx, msg)
			select {
			case h.reply <- reply:
			case <-ctx.Done():
				return
			}
		}
	}
}

func errorMsg(format string, args ...interface{}) model.Msg {
	return model.Msg{Type: TypeError, Content: fmt.Sprintf(format, args...)}
}

func (h *Hub) dispatch(ctx context.Context, msg model.Msg) model.Msg {
	switch msg.Type {
	case TypePing:
		return model.Msg{Type: TypePong, Content: h.id}
	case TypeSettings:
		data, err := json.Marshal(h.settings)
		if err != nil {
			return errorMsg("encode settings: %v", err)
		}
		return model.Msg{Type: TypeSettings, Content: string(data)}
	case TypeSolve:
		var ms model.MeasurementSet
		if err := json.Unmarshal([]byte(msg.Content), &ms); err != nil {
			return errorMsg("malformed measurement set: %v", err)
		}
		h.log.WithField("case", ms.Name).Info("solve requested")
		res := h.solve(ctx, ms)
		data, err := json.Marshal(res)
		if err != nil {
			return errorMsg("encode result: %v", err)
		}
		return model.Msg{Type: TypeResult, Content: string(data)}
	default:
		h.log.WithField("type", msg.Type).Warn("no such type")
		return errorMsg("no such type %q", msg.Type)
	}
}
