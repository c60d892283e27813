package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/rustfs-launcher/internal/broadcast"
	"github.com/nerrad567/rustfs-launcher/internal/process"
)

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"logs default prefix", Topics{}.Logs("app-log"), "rustfs-launcher/logs/app-log"},
		{"logs custom prefix", Topics{Prefix: "lab/storage"}.Logs("process-log"), "lab/storage/logs/process-log"},
		{"all logs", Topics{}.AllLogs(), "rustfs-launcher/logs/+"},
		{"process state", Topics{}.ProcessState(), "rustfs-launcher/rustfs/state"},
		{"system status", Topics{Prefix: "x"}.SystemStatus(), "x/system/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestStatusPayload(t *testing.T) {
	var msg statusMessage
	if err := json.Unmarshal(statusPayload("offline", "rustfs-launcher", "graceful_shutdown"), &msg); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if msg.Status != "offline" || msg.ClientID != "rustfs-launcher" || msg.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("payload has no timestamp")
	}
}

func TestValidatePublish(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"valid", "a/b", []byte("x"), 0, nil},
		{"nil payload", "a/b", nil, 1, nil},
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"invalid qos", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"too large", "a/b", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePublish(tt.topic, tt.payload, tt.qos)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("validatePublish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{}

	if c.IsConnected() {
		t.Error("IsConnected() = true for new client")
	}
	if err := c.Publish("a/b", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.PublishAsync("a/b", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishAsync() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

type published struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishAsync(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, string(payload), qos, retained})
	return f.err
}

func (f *fakePublisher) Topics() Topics { return Topics{Prefix: "test"} }

func TestRelay_LogEntries(t *testing.T) {
	pub := &fakePublisher{}
	r := &Relay{pub: pub}

	var sink broadcast.Sink = r
	if err := sink.Relay(broadcast.ChannelProcessLog, "[12:00:00] [STDOUT] hello"); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	got := pub.msgs[0]
	want := published{"test/logs/process-log", "[12:00:00] [STDOUT] hello", 0, false}
	if got != want {
		t.Errorf("published %+v, want %+v", got, want)
	}

	pub.err = ErrNotConnected
	if err := r.Relay(broadcast.ChannelAppLog, "x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Relay() error = %v, want ErrNotConnected", err)
	}
}

func TestRelay_Lifecycle(t *testing.T) {
	pub := &fakePublisher{}
	r := &Relay{pub: pub}
	run := process.RunInfo{ID: "run-1", PID: 321, Address: "127.0.0.1:9000"}

	r.ProcessStarted(run)
	r.ProcessExited(run, "signal: killed")

	if len(pub.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.msgs))
	}
	for _, m := range pub.msgs {
		if m.topic != "test/rustfs/state" || !m.retained || m.qos != 1 {
			t.Errorf("state message %+v, want retained QoS 1 on test/rustfs/state", m)
		}
	}

	var started, exited processState
	if err := json.Unmarshal([]byte(pub.msgs[0].payload), &started); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(pub.msgs[1].payload), &exited); err != nil {
		t.Fatal(err)
	}
	if started.State != "running" || started.PID != 321 || started.Address != "127.0.0.1:9000" {
		t.Errorf("started = %+v", started)
	}
	if exited.State != "stopped" || !strings.Contains(exited.ExitStatus, "killed") {
		t.Errorf("exited = %+v", exited)
	}
}
