package main

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/cockroachdb/errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"can-telemetry-core/telemetry"
	"can-telemetry-core/utils"
)

const mqttTimeout = 10 * time.Second

// mqttClient connects with a unique client id and, when onConnect is set, runs it
// after every (re)connect so subscriptions survive broker restarts.
func mqttClient(ctx context.Context, broker, role string, log *utils.Logger, onConnect func(mqtt.Client)) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("cantel-" + role + "-" + uuid.NewString())
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info("mqtt connected to %s", broker)
		if onConnect != nil {
			onConnect(c)
		}
	})

	client := mqtt.NewClient(opts)
	err := retry.Do(func() error {
		tok := client.Connect()
		if !tok.WaitTimeout(mqttTimeout) {
			return errors.Newf("connect %s: timeout", broker)
		}
		return tok.Error()
	},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("mqtt connect attempt %d: %v", n+1, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect mqtt %s", broker)
	}
	return client, nil
}

// mqttSource feeds every message on topic into out, in arrival order.
type mqttSource struct {
	client mqtt.Client
}

func startMQTTSource(ctx context.Context, broker, topic string, out chan<- []byte, log *utils.Logger) (*mqttSource, error) {
	handler := func(_ mqtt.Client, m mqtt.Message) {
		payload := append([]byte(nil), m.Payload()...)
		select {
		case out <- payload:
		case <-ctx.Done():
		}
	}
	subscribe := func(c mqtt.Client) {
		tok := c.Subscribe(topic, 1, handler)
		if !tok.WaitTimeout(mqttTimeout) || tok.Error() != nil {
			log.Error("mqtt subscribe %s: %v", topic, tok.Error())
			return
		}
		log.Info("subscribed to %s", topic)
	}
	client, err := mqttClient(ctx, broker, "bridge", log, subscribe)
	if err != nil {
		return nil, err
	}
	return &mqttSource{client: client}, nil
}

func (s *mqttSource) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}

// mqttFrameSink publishes frames as `<id>#<hex>` text.
type mqttFrameSink struct {
	client mqtt.Client
	topic  string
}

func (s *mqttFrameSink) Send(ctx context.Context, f telemetry.RawFrame) error {
	tok := s.client.Publish(s.topic, 0, false, f.String())
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *mqttFrameSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
