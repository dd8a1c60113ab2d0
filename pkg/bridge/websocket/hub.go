// Package websocket fans bridge topics out to browser clients.
package websocket

import (
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/pingpong/pkg/bridge"
)

// ErrMalformed indicates a binary message without a valid envelope.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is one websocket message: a topic and its payload.
type Envelope struct {
	Topic   string
	Payload []byte
}

// Codec encodes an Envelope as a binary message: a 2-byte big-endian topic
// length, the topic and the payload.
var Codec = websocket.Codec{Marshal: marshal, Unmarshal: unmarshal}

func marshal(v interface{}) ([]byte, byte, error) {
	env, ok := v.(*Envelope)
	if !ok {
		return nil, 0, ErrMalformed
	}
	msg := make([]byte, 2, 2+len(env.Topic)+len(env.Payload))
	binary.BigEndian.PutUint16(msg, uint16(len(env.Topic)))
	msg = append(msg, env.Topic...)
	msg = append(msg, env.Payload...)
	return msg, websocket.BinaryFrame, nil
}

func unmarshal(msg []byte, payloadType byte, v interface{}) error {
	env, ok := v.(*Envelope)
	if !ok || len(msg) < 2 {
		return ErrMalformed
	}
	n := int(binary.BigEndian.Uint16(msg))
	if len(msg) < 2+n {
		return ErrMalformed
	}
	env.Topic = string(msg[2 : 2+n])
	env.Payload = append([]byte(nil), msg[2+n:]...)
	return nil
}

type client struct {
	conn *websocket.Conn
	lock sync.Mutex
}

func (c *client) send(env *Envelope) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return Codec.Send(c.conn, env)
}

// Hub is an http.Handler accepting websocket clients. It implements
// bridge.Publisher and bridge.Subscriber.
type Hub struct {
	lock     sync.RWMutex
	clients  map[*client]struct{}
	handlers map[string][]*subscription
}

type subscription struct {
	hub     *Hub
	topic   string
	handler bridge.Handler
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		handlers: make(map[string][]*subscription),
	}
}

// ServeHTTP implements http.Handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Server{Handler: h.serve}.ServeHTTP(w, r)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

func (h *Hub) serve(conn *websocket.Conn) {
	c := &client{conn: conn}
	h.lock.Lock()
	h.clients[c] = struct{}{}
	h.lock.Unlock()
	glog.V(2).Infof("websocket: client %s connected", conn.Request().RemoteAddr)
	defer func() {
		h.lock.Lock()
		delete(h.clients, c)
		h.lock.Unlock()
		conn.Close()
		glog.V(2).Infof("websocket: client %s gone", conn.Request().RemoteAddr)
	}()
	for {
		var env Envelope
		err := Codec.Receive(conn, &env)
		if err == ErrMalformed {
			glog.Warningf("websocket: %v", err)
			continue
		}
		if err != nil {
			if err != io.EOF {
				glog.V(2).Infof("websocket: receive: %v", err)
			}
			return
		}
		h.dispatch(&env)
	}
}

func (h *Hub) dispatch(env *Envelope) {
	h.lock.RLock()
	subs := h.handlers[env.Topic]
	h.lock.RUnlock()
	for _, s := range subs {
		s.handler(env.Topic, env.Payload)
	}
}

// Publish implements bridge.Publisher. A client failing to receive is
// dropped.
func (h *Hub) Publish(topic string, payload []byte) error {
	env := &Envelope{Topic: topic, Payload: payload}
	h.lock.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.lock.RUnlock()
	for _, c := range clients {
		if err := c.send(env); err != nil {
			glog.V(2).Infof("websocket: send: %v", err)
			c.conn.Close()
		}
	}
	return nil
}

// Subscribe implements bridge.Subscriber.
func (h *Hub) Subscribe(topic string, handler bridge.Handler) (io.Closer, error) {
	s := &subscription{hub: h, topic: topic, handler: handler}
	h.lock.Lock()
	h.handlers[topic] = append(h.handlers[topic], s)
	h.lock.Unlock()
	return s, nil
}

func (s *subscription) Close() error {
	h := s.hub
	h.lock.Lock()
	defer h.lock.Unlock()
	subs := h.handlers[s.topic]
	for i, sub := range subs {
		if sub == s {
			h.handlers[s.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	return nil
}
