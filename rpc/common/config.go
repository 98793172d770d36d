package common

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the Skyhash table server.
type ServerConfig struct {
	// Endpoint is the TCP address to listen on (host:port)
	Endpoint string

	// TimeoutSecond closes idle connections after this many seconds (0 = never)
	TimeoutSecond int64

	// MaxConnections bounds concurrently served connections (0 = unlimited)
	MaxConnections int

	// TCP socket settings
	TCPNoDelay      bool
	TCPKeepAliveSec int
	ReadBufferSize  int
	WriteBufferSize int

	// Tables created on startup as name -> value type ("binstr" or "keymap(str,binstr)")
	Tables map[string]string

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns the configuration used by `dbbench serve`.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint:        "127.0.0.1:2003",
		TCPNoDelay:      true,
		TCPKeepAliveSec: 30,
		LogLevel:        "info",
	}
}

// Timeout returns TimeoutSecond as a duration.
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder
	addSection, addField := sectionWriter(&sb)

	addSection("Skyhash Server")
	addField("Endpoint", c.Endpoint)
	addField("Idle Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Max Connections", fmt.Sprintf("%d", c.MaxConnections))

	addSection("TCP")
	addField("No Delay", fmt.Sprintf("%t", c.TCPNoDelay))
	addField("Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.WriteBufferSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if len(c.Tables) > 0 {
		addSection("Tables")
		for _, name := range sortedKeys(c.Tables) {
			addField(name, c.Tables[name])
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the connection parameters of a Skyhash client.
type ClientConfig struct {
	Endpoint string

	// DialTimeoutSecond bounds connection establishment (0 = OS default)
	DialTimeoutSecond int

	// TimeoutSecond bounds a single round trip when the context has no deadline (0 = none)
	TimeoutSecond int

	TCPNoDelay bool
}

// DefaultClientConfig returns a client config for a local server.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:          "127.0.0.1:2003",
		DialTimeoutSecond: 5,
		TimeoutSecond:     30,
		TCPNoDelay:        true,
	}
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	addSection, addField := sectionWriter(&sb)

	addSection("Skyhash Client")
	addField("Endpoint", c.Endpoint)
	addField("Dial Timeout", fmt.Sprintf("%d sec", c.DialTimeoutSecond))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("No Delay", fmt.Sprintf("%t", c.TCPNoDelay))

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// sectionWriter returns helpers for consistently formatted config dumps.
func sectionWriter(sb *strings.Builder) (func(title string), func(name, value string)) {
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	return addSection, addField
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
