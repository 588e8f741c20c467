package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"stake-guard/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage wraps a bus payload with its topic for the UI.
type wsMessage struct {
	Topic   events.Event `json:"topic"`
	Payload any          `json:"payload"`
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	evaluated, unsubEval := s.Bus.Subscribe(events.EventBetEvaluated, 100)
	defer unsubEval()
	recorded, unsubRec := s.Bus.Subscribe(events.EventBetRecorded, 100)
	defer unsubRec()
	cooldowns, unsubCd := s.Bus.Subscribe(events.EventCooldownStarted, 10)
	defer unsubCd()
	rules, unsubRules := s.Bus.Subscribe(events.EventRulesUpdated, 10)
	defer unsubRules()

	for {
		var msg wsMessage
		select {
		case p, ok := <-evaluated:
			if !ok {
				return
			}
			msg = wsMessage{Topic: events.EventBetEvaluated, Payload: p}
		case p, ok := <-recorded:
			if !ok {
				return
			}
			msg = wsMessage{Topic: events.EventBetRecorded, Payload: p}
		case p, ok := <-cooldowns:
			if !ok {
				return
			}
			msg = wsMessage{Topic: events.EventCooldownStarted, Payload: p}
		case p, ok := <-rules:
			if !ok {
				return
			}
			msg = wsMessage{Topic: events.EventRulesUpdated, Payload: p}
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
