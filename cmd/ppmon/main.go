package main

import (
	"flag"
	"os"
	"reflect"

	"github.com/golang/glog"

	"github.com/robotalks/pingpong/pkg/bridge"
	"github.com/robotalks/pingpong/pkg/bridge/mqtt"
	"github.com/robotalks/pingpong/pkg/env"
	"github.com/robotalks/pingpong/pkg/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/pingpong/"
	send    string
)

func init() {
	if val := os.Getenv(env.EnvMQTTURL); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&send, "send", send, "Publish the text as a tx request and exit.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	if err := q.Connect(); err != nil {
		glog.Exit(err)
	}
	defer q.Close()

	if send != "" {
		payload, err := msgs.Encode(&msgs.TxRequest{Data: []byte(send)}, env.MachineID())
		if err != nil {
			glog.Exit(err)
		}
		if err := q.Publish(bridge.TopicTx, payload); err != nil {
			glog.Exit(err)
		}
		return
	}

	q.Sub("#", func(topic string, payload []byte) {
		msg, typed, err := msgs.Decode(payload)
		if err != nil {
			glog.Warningf("%s: bad message: %v", topic, err)
			return
		}
		glog.Infof("%s: %s [%s] %s", topic, typed.Source,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(), msg.String())
	})
	<-(chan struct{})(nil)
}
