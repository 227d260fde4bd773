package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Packet is the WS message envelope in both directions.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is one operator connection. It runs at most one battle at a time.
type Session struct {
	Operator string
	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	TraceID  string
	LastSeq  uint64

	mu     sync.Mutex
	live   *liveBattle
	once   sync.Once
	logger *zap.Logger
}

// NewSession wraps conn and starts its write goroutine. conn may be nil in
// tests, in which case packets stay in SendChan.
func NewSession(operator string, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		Operator: operator,
		Conn:     conn,
		SendChan: make(chan []byte, sendChanBuf),
		Done:     make(chan struct{}),
		logger:   logger,
	}
	if conn != nil {
		go s.writePump()
	}
	return s
}

// writePump drains SendChan and pings the peer so dead connections are noticed.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data := <-s.SendChan:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error", zap.String("operator", s.Operator), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			// flush what the battle already queued
			for {
				select {
				case data := <-s.SendChan:
					_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
					if s.Conn.WriteMessage(websocket.TextMessage, data) != nil {
						return
					}
				default:
					_ = s.Conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

// Send encodes a packet of the given type and queues it. Drops when the
// buffer is full or the session is closed.
func (s *Session) Send(msgType string, payload any) {
	if s.IsClosed() {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("ws encode payload", zap.String("type", msgType), zap.Error(err))
			return
		}
		raw = b
	}
	data, err := json.Marshal(Packet{Type: msgType, Payload: raw})
	if err != nil {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		s.logger.Warn("send channel full, dropping packet",
			zap.String("operator", s.Operator),
			zap.String("type", msgType))
	}
}

// SendError reports a request failure to the client.
func (s *Session) SendError(msg string) {
	s.Send("error", map[string]string{"message": msg})
}

// Close signals the writePump to shut down. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() { close(s.Done) })
}

// IsClosed reports whether Close was called.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// SetReadDeadline pushes the read deadline readDeadline into the future.
func (s *Session) SetReadDeadline() {
	if s.Conn != nil {
		_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
	}
}

// attach installs lb as the running battle; false when one is already running.
func (s *Session) attach(lb *liveBattle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live != nil {
		return false
	}
	s.live = lb
	return true
}

func (s *Session) detach(lb *liveBattle) {
	s.mu.Lock()
	if s.live == lb {
		s.live = nil
	}
	s.mu.Unlock()
}

func (s *Session) battle() *liveBattle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}
