package process

import (
	"encoding/json"
	"net"
	"path/filepath"
	"strconv"
)

// Launch defaults.
const (
	DefaultPort      uint16 = 9000
	DefaultHost             = "127.0.0.1"
	DefaultAccessKey        = "rustfsadmin"
	DefaultSecretKey        = "rustfsadmin"

	// LogDirEnv tells RustFS where to write its own log files.
	LogDirEnv = "RUSTFS_OBS_LOG_DIRECTORY"

	redacted = "********"
)

// LaunchConfig describes one RustFS launch.
//
// Optional fields are pointers: nil means "not set". When decoded from
// JSON, omitted fields keep the defaults of DefaultLaunchConfig while an
// explicit null clears them.
type LaunchConfig struct {
	// BinaryPath overrides the bundled binary. Empty selects the platform default.
	BinaryPath string `json:"binary_path,omitempty"`

	// DataPath is the RustFS data directory. Required; must exist.
	DataPath string `json:"data_path"`

	Port      *uint16 `json:"port,omitempty"`
	Host      *string `json:"host,omitempty"`
	AccessKey *string `json:"access_key,omitempty"`
	SecretKey *string `json:"secret_key,omitempty"`

	// ConsoleEnable adds --console-enable to the command line.
	ConsoleEnable bool `json:"console_enable"`
}

// DefaultLaunchConfig returns a LaunchConfig with the documented defaults
// and no data path.
func DefaultLaunchConfig() LaunchConfig {
	port := DefaultPort
	host := DefaultHost
	accessKey := DefaultAccessKey
	secretKey := DefaultSecretKey
	return LaunchConfig{
		Port:      &port,
		Host:      &host,
		AccessKey: &accessKey,
		SecretKey: &secretKey,
	}
}

// UnmarshalJSON decodes over the defaults.
func (c *LaunchConfig) UnmarshalJSON(data []byte) error {
	type plain LaunchConfig
	p := plain(DefaultLaunchConfig())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = LaunchConfig(p)
	return nil
}

// Address returns the host:port RustFS listens on.
// Unset host and port fall back to 127.0.0.1 and 9000.
func (c LaunchConfig) Address() string {
	host := DefaultHost
	if c.Host != nil {
		host = *c.Host
	}
	port := DefaultPort
	if c.Port != nil {
		port = *c.Port
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// Args builds the RustFS argument vector.
func (c LaunchConfig) Args() []string {
	return c.args(false)
}

// RedactedArgs is Args with the secret key masked, for logging. The
// access key is an identifier and is kept.
func (c LaunchConfig) RedactedArgs() []string {
	return c.args(true)
}

func (c LaunchConfig) args(redact bool) []string {
	args := []string{c.DataPath, "--address", c.Address()}
	if c.AccessKey != nil {
		args = append(args, "--access-key", *c.AccessKey)
	}
	if c.SecretKey != nil {
		secret := *c.SecretKey
		if redact {
			secret = redacted
		}
		args = append(args, "--secret-key", secret)
	}
	if c.ConsoleEnable {
		args = append(args, "--console-enable")
	}
	return args
}

// LogsDir returns the directory RustFS writes its own logs to: a "logs"
// directory next to the data directory, or "logs" in the working
// directory when the data path has no parent.
func LogsDir(dataPath string) string {
	clean := filepath.Clean(dataPath)
	parent := filepath.Dir(clean)
	if parent == clean {
		// Filesystem root has no parent
		return "logs"
	}
	return filepath.Join(parent, "logs")
}

// summary renders the config the way it is recorded in the app log.
func (c LaunchConfig) summary() string {
	port := "None"
	if c.Port != nil {
		port = strconv.Itoa(int(*c.Port))
	}
	host := "None"
	if c.Host != nil {
		host = strconv.Quote(*c.Host)
	}
	return "Config: data_path=" + c.DataPath + ", port=" + port + ", host=" + host
}
