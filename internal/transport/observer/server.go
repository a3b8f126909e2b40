// Package observer serves the bootstrap document and the websocket that
// streams ticks to clients and carries their placement commands.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/caterpillar-1/CShapeZ/internal/observerproto"
	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

const (
	writeWait     = 5 * time.Second
	handshakeWait = 5 * time.Second
	idleWait      = 60 * time.Second
)

// World is the part of the simulation the transport talks to.
type World interface {
	Bootstrap() observerproto.BootstrapResponse
	Summary() world.Summary
	Inbox() chan<- world.CommandEnvelope
	ObserverJoin() chan<- world.ObserverJoinRequest
	ObserverSubscribe() chan<- world.ObserverSubscribeRequest
	ObserverLeave() chan<- string
}

type Server struct {
	world World
	log   *log.Logger

	// AllowRemote lifts the loopback-only restriction.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Routes registers the observer endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/summary", s.SummaryHandler())
	mux.HandleFunc("/v1/ws", s.WSHandler())
}

func (s *Server) allowed(rw http.ResponseWriter, r *http.Request) bool {
	if s.AllowRemote || isLoopbackRemote(r.RemoteAddr) {
		return true
	}
	http.Error(rw, "forbidden", http.StatusForbidden)
	return false
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(rw, r) {
			return
		}
		writeJSONResponse(rw, s.world.Bootstrap())
	}
}

func (s *Server) SummaryHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(rw, r) {
			return
		}
		writeJSONResponse(rw, s.world.Summary())
	}
}

func writeJSONResponse(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(rw, r) {
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		tickOut := make(chan []byte, 8)
		results := make(chan observerproto.ResultMsg, 64)

		select {
		case s.world.ObserverJoin() <- world.ObserverJoinRequest{SessionID: sid, TickOut: tickOut, Devices: sub.Devices}:
		default:
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
		}()
		if s.log != nil {
			s.log.Printf("observer %s joined from %s devices=%v", sid, r.RemoteAddr, sub.Devices)
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			write := func(b []byte) error {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				return conn.WriteMessage(websocket.TextMessage, b)
			}
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case res := <-results:
					b, _ := json.Marshal(res)
					if err := write(b); err != nil {
						writeErr <- err
						return
					}
				case b, ok := <-tickOut:
					if !ok {
						writeErr <- nil
						return
					}
					if err := write(b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE updates and commands.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(idleWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleMessage(sid, msg, results)
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		if s.log != nil {
			s.log.Printf("observer %s left", sid)
		}
	}
}

func (s *Server) handleMessage(sid string, msg []byte, results chan observerproto.ResultMsg) {
	var cmd observerproto.CommandMsg
	if err := json.Unmarshal(msg, &cmd); err != nil {
		reply(results, reject(cmd, observerproto.ErrBadRequest, "malformed message"))
		return
	}
	if cmd.ProtocolVersion != observerproto.Version {
		reply(results, reject(cmd, observerproto.ErrBadRequest, "bad protocol_version"))
		return
	}
	if cmd.Type == observerproto.TypeSubscribe {
		var sub observerproto.SubscribeMsg
		_ = json.Unmarshal(msg, &sub)
		select {
		case s.world.ObserverSubscribe() <- world.ObserverSubscribeRequest{SessionID: sid, Devices: sub.Devices}:
		default:
			// Drop updates under load; the client may resend.
		}
		return
	}
	select {
	case s.world.Inbox() <- world.CommandEnvelope{Cmd: cmd, Resp: results}:
	default:
		reply(results, reject(cmd, observerproto.ErrWorldBusy, "command queue full"))
	}
}

func reject(cmd observerproto.CommandMsg, code, message string) observerproto.ResultMsg {
	return observerproto.ResultMsg{
		Type:            observerproto.TypeResult,
		ProtocolVersion: observerproto.Version,
		ID:              cmd.ID,
		Code:            code,
		Message:         message,
	}
}

func reply(ch chan observerproto.ResultMsg, r observerproto.ResultMsg) {
	select {
	case ch <- r:
	default:
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
