package env

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/golang/glog"

	"github.com/robotalks/pingpong/pkg/bridge"
	"github.com/robotalks/pingpong/pkg/bridge/mqtt"
	"github.com/robotalks/pingpong/pkg/bridge/websocket"
	fx "github.com/robotalks/pingpong/pkg/framework"
	"github.com/robotalks/pingpong/pkg/periph/uart"
)

// Env is an assembled serial bridge.
type Env struct {
	Config *Config
	Port   *uart.Port
	Bridge *bridge.Bridge
	Queue  *mqtt.Queue
	Hub    *websocket.Hub

	closers []io.Closer
}

// NewEnv opens the serial port and creates the publishers.
func (c *Config) NewEnv() (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	port, err := uart.Open(c.UART())
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", c.Serial, err)
	}
	return c.NewEnvWith(port)
}

// NewEnvWith creates the publishers around an opened port.
func (c *Config) NewEnvWith(port *uart.Port) (*Env, error) {
	e := &Env{Config: c, Port: port}
	e.Bridge = bridge.New(port.Ring(), c.Bridge()).WithTx(port, port.Pacer())
	if c.MQTTBrokerURL != "" {
		q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL)
		if err != nil {
			port.Close()
			return nil, fmt.Errorf("create MQTT queue: %w", err)
		}
		e.Queue = q
		e.Bridge.AddPublisher(q)
		if _, err := e.Bridge.SubscribeTx(q); err != nil {
			port.Close()
			return nil, err
		}
	}
	if c.WSListen != "" {
		e.Hub = websocket.NewHub()
		e.Bridge.AddPublisher(e.Hub)
		if _, err := e.Bridge.SubscribeTx(e.Hub); err != nil {
			port.Close()
			return nil, err
		}
	}
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		glog.Fatal(err)
	}
	return e
}

// AddToLoop implements framework.LoopAdder.
func (e *Env) AddToLoop(l *fx.Loop) {
	l.Add(e.Bridge)
	l.AddRunnable(fx.NamedRun("uart", fx.RunFunc(e.Port.Run)))
	if e.Hub != nil {
		l.AddRunnable(fx.NamedRun("websocket", fx.RunFunc(e.serveHub)))
	}
}

// Connect connects the MQTT queue if configured.
func (e *Env) Connect() error {
	if e.Queue == nil {
		return nil
	}
	if err := e.Queue.Connect(); err != nil {
		return fmt.Errorf("connect %s: %w", e.Config.MQTTBrokerURL, err)
	}
	e.closers = append(e.closers, e.Queue)
	return nil
}

// Close releases the port and the broker connection.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	for _, c := range e.closers {
		errs.Add(c.Close())
	}
	errs.Add(e.Port.Close())
	return errs.Aggregate()
}

func (e *Env) serveHub(ctx context.Context) error {
	srv := &http.Server{Addr: e.Config.WSListen, Handler: e.Hub}
	glog.Infof("websocket: listening on %s", e.Config.WSListen)
	return fx.RunWithContextCloser(ctx, srv, func() error {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}
