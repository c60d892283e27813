package mqtt

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/rustfs-launcher/internal/process"
)

// publisher is the part of Client the relay needs.
type publisher interface {
	PublishAsync(topic string, payload []byte, qos byte, retained bool) error
	Topics() Topics
}

// Relay forwards log entries and RustFS lifecycle changes to the broker.
// It implements broadcast.Sink and process.Observer.
type Relay struct {
	pub publisher
}

// NewRelay creates a relay publishing through client.
func NewRelay(client *Client) *Relay {
	return &Relay{pub: client}
}

// Relay publishes one log entry at QoS 0, not retained. It never blocks
// on the network.
func (r *Relay) Relay(channel, entry string) error {
	return r.pub.PublishAsync(r.pub.Topics().Logs(channel), []byte(entry), 0, false)
}

// processState is the retained payload on the RustFS state topic.
type processState struct {
	State      string `json:"state"`
	RunID      string `json:"run_id"`
	PID        int    `json:"pid"`
	Address    string `json:"address,omitempty"`
	ExitStatus string `json:"exit_status,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// ProcessStarted publishes a retained running state.
func (r *Relay) ProcessStarted(run process.RunInfo) {
	r.publishState(processState{
		State:   "running",
		RunID:   run.ID,
		PID:     run.PID,
		Address: run.Address,
	})
}

// ProcessExited publishes a retained stopped state.
func (r *Relay) ProcessExited(run process.RunInfo, exitStatus string) {
	r.publishState(processState{
		State:      "stopped",
		RunID:      run.ID,
		PID:        run.PID,
		ExitStatus: exitStatus,
	})
}

func (r *Relay) publishState(st processState) {
	st.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	// Broker outages surface through the client's connection logging
	_ = r.pub.PublishAsync(r.pub.Topics().ProcessState(), payload, 1, true) //nolint:errcheck // Best effort
}

var _ process.Observer = (*Relay)(nil)
