//go:build !tinygo

// Package telemetry publishes read-only machine status (realtime feed rate
// and position) to an MQTT broker. It only ever reads from
// stepcore.Control; nothing here can influence step generation.
package telemetry

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/grbl-go/stepcore/stepcore"
)

// Source is the subset of stepcore.Control a Reporter samples.
type Source interface {
	RealtimeRate() float32
	Position(axis stepcore.Axis) int32
}

// Reporter periodically publishes a status snapshot to an MQTT broker using
// the full-featured paho client, intended for a host-class controller
// (Raspberry Pi, PC bridge) rather than a bare microcontroller.
type Reporter struct {
	client mqtt.Client
	topic  string
	source Source
	log    *slog.Logger
}

// NewReporter connects to brokerURL and returns a Reporter publishing under
// topic. The caller owns the Reporter's lifetime and must call Close when
// done.
func NewReporter(brokerURL, clientID, topic string, source Source, log *slog.Logger) (*Reporter, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return &Reporter{client: client, topic: topic, source: source, log: log}, nil
}

// Run publishes a status snapshot every interval until stop is closed.
func (r *Reporter) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.publishOnce()
		}
	}
}

func (r *Reporter) publishOnce() {
	payload := fmt.Sprintf(
		`{"rate_mm_min":%.2f,"x":%d,"y":%d,"z":%d}`,
		r.source.RealtimeRate(),
		r.source.Position(stepcore.AxisX),
		r.source.Position(stepcore.AxisY),
		r.source.Position(stepcore.AxisZ),
	)
	token := r.client.Publish(r.topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		r.log.Warn("telemetry publish failed", "error", token.Error())
	}
}

// Close disconnects from the broker.
func (r *Reporter) Close() {
	r.client.Disconnect(250)
}
