package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// WSHandler serves the push side of the sync channel. A player connects with
// ?code=..&playerId=.., the host with ?code=..&hostToken=...
type WSHandler struct {
	service  *app.GameService
	tokens   *HostTokens
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, tokens *HostTokens, log *logrus.Entry) *WSHandler {
	return &WSHandler{
		service: service,
		tokens:  tokens,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`

	// last makes the writer close the connection after this message.
	last bool
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func errorMessage(err error) outboundMessage {
	_, code := statusFor(err)
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error(), Code: code}}
}

// ServeWS upgrades the request and streams game events until either side
// closes. The first message is a "sync" snapshot.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := app.NormalizeCode(q.Get("code"))
	playerID := q.Get("playerId")
	hostToken := q.Get("hostToken")
	if code == "" || (playerID == "" && hostToken == "") {
		http.Error(w, "missing code, and playerId or hostToken", http.StatusBadRequest)
		return
	}
	if playerID == "" {
		if err := h.tokens.Authorize(hostToken, code); err != nil {
			status, _ := statusFor(err)
			http.Error(w, err.Error(), status)
			return
		}
	}

	ctx, cancelCtx := context.WithCancel(r.Context())
	defer cancelCtx()

	// Validate before upgrading so unknown games and players get a plain status.
	snapshot, err := h.service.Resume(ctx, code, playerID)
	if err != nil {
		status, _ := statusFor(err)
		http.Error(w, err.Error(), status)
		return
	}
	events, cancelEvents, err := h.service.Subscribe(ctx, code)
	if err != nil {
		status, _ := statusFor(err)
		http.Error(w, err.Error(), status)
		return
	}
	defer cancelEvents()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).WithField("code", code).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{"code": code, "player_id": playerID})
	log.Debug("ws connected")

	send := make(chan outboundMessage, sendBuffer)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only this goroutine writes data frames.
	go func() {
		defer close(writerDone)
		defer conn.Close()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-send:
				if !ok {
					closeConn(conn, websocket.CloseNormalClosure, "")
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					log.WithError(err).Debug("ws write failed")
					return
				}
				if msg.last {
					closeConn(conn, websocket.CloseNormalClosure, msg.Type)
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	push := func(msg outboundMessage) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	push(outboundMessage{Type: "sync", Payload: snapshot})

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					push(outboundMessage{Type: "closed", last: true})
					return
				}
				msg := outboundMessage{Type: string(ev.Type), Payload: ev}
				switch {
				case ev.Type == domain.EventGameDeleted:
					msg.last = true
				case ev.Type == domain.EventPlayerKicked && playerID != "" && ev.Player != nil && ev.Player.ID == playerID:
					msg.last = true
				}
				select {
				case send <- msg:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
				if msg.last {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("ws read failed")
			}
			break
		}
		if !push(h.handle(ctx, code, playerID, inbound)) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Debug("ws disconnected")
}

type answerResult struct {
	Record          domain.AnswerRecord `json:"record"`
	AlreadyAnswered bool                `json:"alreadyAnswered"`
}

func (h *WSHandler) handle(ctx context.Context, code, playerID string, inbound inboundMessage) outboundMessage {
	switch inbound.Type {
	case "ping":
		return outboundMessage{Type: "pong"}
	case "sync":
		snapshot, err := h.service.Resume(ctx, code, playerID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage{Type: "sync", Payload: snapshot}
	case "answer":
		if playerID == "" {
			return errorMessage(errors.New("host connections cannot answer"))
		}
		var submission domain.AnswerSubmission
		if err := json.Unmarshal(inbound.Payload, &submission); err != nil || submission.Answer.IsZero() {
			return errorMessage(domain.ErrInvalidAnswer)
		}
		record, err := h.service.SubmitAnswer(ctx, code, playerID, submission)
		if err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
			return errorMessage(err)
		}
		return outboundMessage{Type: "answer_result", Payload: answerResult{
			Record:          record,
			AlreadyAnswered: err != nil,
		}}
	default:
		return errorMessage(errors.New("unsupported message type"))
	}
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
