// Package config loads kernel boot configuration from a TOML file.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Boot holds the knobs a real kernel would take from multiboot args or a
// kernel command line; here they come from a TOML file since there is no
// bootloader in this hosted environment.
type Boot struct {
	// Image is the path to the host file backing the Minix block device.
	Image string `toml:"image"`
	// BufferCount is the number of buffer heads in the block/buffer cache.
	// The original sizes this as nb_pages/4; we take it directly since we
	// have no page allocator to size against.
	BufferCount int `toml:"buffer_count"`
	// Consoles is the number of virtual consoles (tty1..ttyN) to create.
	Consoles int `toml:"consoles"`
	// PTYs is the configured number of pseudo-terminal pairs. Boot does not
	// pass it on: /dev/ptmx mints a new pair on every open, with no bound.
	PTYs int `toml:"ptys"`
	// MaxSockets is the burst size of the AF_UNIX family's connect rate
	// limiter; the socket table itself has no size bound.
	MaxSockets int `toml:"max_sockets"`
	// SocketRateLimit, when nonzero, caps connect attempts per second
	// across the whole AF_UNIX family (0 leaves connects unlimited).
	SocketRateLimit int `toml:"socket_rate_limit"`
	// LogDaemon switches the logger from interactive text to JSON.
	LogDaemon bool `toml:"log_daemon"`
}

// Default returns the configuration used when no file is given.
func Default() Boot {
	return Boot{
		Image:           "kos.img",
		BufferCount:     256,
		Consoles:        4,
		PTYs:            16,
		MaxSockets:      64,
		SocketRateLimit: 0,
		LogDaemon:       false,
	}
}

// Load reads a TOML config file, filling unset fields from Default.
func Load(path string) (Boot, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Boot{}, err
	}
	return cfg, nil
}
