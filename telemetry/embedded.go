//go:build tinygo

package telemetry

import (
	"net"
	"time"

	natiumqtt "github.com/soypat/natiu-mqtt"

	"github.com/grbl-go/stepcore/stepcore"
)

// Source is the subset of stepcore.Control a Reporter samples.
type Source interface {
	RealtimeRate() float32
	Position(axis stepcore.Axis) int32
}

// EmbeddedReporter is Reporter's tinygo-build counterpart: natiu-mqtt's
// low-footprint client instead of paho, sized for a microcontroller with no
// dynamic allocation budget to spare.
type EmbeddedReporter struct {
	client *natiumqtt.Client
	conn   net.Conn
	topic  string
	source Source
	txBuf  []byte
	rxBuf  []byte
}

// NewEmbeddedReporter dials brokerAddr over TCP and performs the MQTT
// CONNECT handshake. bufSize sizes the client's static TX/RX buffers; 256
// bytes is enough for the status payload this package publishes.
func NewEmbeddedReporter(brokerAddr, clientID, topic string, source Source, bufSize int) (*EmbeddedReporter, error) {
	conn, err := net.Dial("tcp", brokerAddr)
	if err != nil {
		return nil, err
	}

	r := &EmbeddedReporter{
		conn:   conn,
		topic:  topic,
		source: source,
		txBuf:  make([]byte, bufSize),
		rxBuf:  make([]byte, bufSize),
	}

	r.client = natiumqtt.NewClient(natiumqtt.ClientConfig{
		Decoder: natiumqtt.DecoderLimited{MaxPayloadSize: uint32(bufSize)},
	})

	varConn := natiumqtt.VariablesConnect{
		ClientID:     []byte(clientID),
		CleanSession: true,
		KeepAlive:    30,
	}
	if err := r.client.Connect(conn, &varConn); err != nil {
		conn.Close()
		return nil, err
	}

	return r, nil
}

// Run publishes a status snapshot every interval until stop is closed.
func (r *EmbeddedReporter) Run(interval time.Duration, stop <-chan struct{}) {
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

func (r *EmbeddedReporter) publishOnce() {
	n := formatStatus(r.txBuf, r.source)

	varPub := natiumqtt.VariablesPublish{
		TopicName: []byte(r.topic),
	}
	_ = r.client.PublishPayload(natiumqtt.Header{}, varPub, r.txBuf[:n])
}

// formatStatus writes a compact, allocation-free status line into buf and
// returns the number of bytes written.
func formatStatus(buf []byte, source Source) int {
	n := copy(buf, "rate=")
	n += appendInt(buf[n:], int32(source.RealtimeRate()))
	n += copy(buf[n:], " x=")
	n += appendInt(buf[n:], source.Position(stepcore.AxisX))
	n += copy(buf[n:], " y=")
	n += appendInt(buf[n:], source.Position(stepcore.AxisY))
	n += copy(buf[n:], " z=")
	n += appendInt(buf[n:], source.Position(stepcore.AxisZ))
	return n
}

func appendInt(buf []byte, v int32) int {
	if v == 0 {
		buf[0] = '0'
		return 1
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var digits [10]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	n := 0
	if neg {
		buf[0] = '-'
		n = 1
	}
	return n + copy(buf[n:], digits[i:])
}

// Close disconnects from the broker and closes the underlying connection.
func (r *EmbeddedReporter) Close() {
	r.client.Disconnect()
	r.conn.Close()
}
