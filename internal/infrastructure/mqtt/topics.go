package mqtt

// DefaultTopicPrefix is used when the config leaves topic_prefix empty.
const DefaultTopicPrefix = "rustfs-launcher"

// Topics builds launcher topic names under a prefix.
//
//	topics := mqtt.Topics{Prefix: "rustfs-launcher"}
//	topics.Logs("process-log") // "rustfs-launcher/logs/process-log"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Logs returns the topic log entries of a channel are published on.
func (t Topics) Logs(channel string) string {
	return t.prefix() + "/logs/" + channel
}

// AllLogs returns a wildcard matching every log channel.
func (t Topics) AllLogs() string {
	return t.prefix() + "/logs/+"
}

// ProcessState returns the retained RustFS state topic.
func (t Topics) ProcessState() string {
	return t.prefix() + "/rustfs/state"
}

// SystemStatus returns the launcher online/offline topic (also the LWT topic).
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}
