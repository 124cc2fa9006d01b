package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/vietshop/posterm/internal/backend"
)

// Config holds the terminal daemon configuration, loadable from environment
// variables (POSTERM_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"127.0.0.1:7979" usage:"Loopback API listen address"`
	Backend   backend.Config
	Printer   PrinterConfig
	Session   SessionConfig
	Voucher   VoucherConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// PrinterConfig selects and parameterizes the receipt transport.
type PrinterConfig struct {
	Mode    string `default:"auto" usage:"Receipt transport: auto, network, usb, preview"`
	Address string `usage:"Network printer host:port (e.g. 192.168.1.50:9100)" flag:"printer-address"`
	Device  string `usage:"USB printer device file (e.g. /dev/usb/lp0)" flag:"printer-device"`
	Width   int    `default:"32" usage:"Receipt width in characters (32 for 58mm, 48 for 80mm)"`
}

// SessionConfig locates the persisted terminal session.
type SessionConfig struct {
	Path string `default:"posterm-session.json" usage:"Session store file path" flag:"session-path"`
}

// VoucherConfig locates the optional voucher code snapshot used to reject
// unknown codes without a backend round trip.
type VoucherConfig struct {
	SnapshotPath string `usage:"Gzip-compressed voucher code snapshot path" flag:"voucher-snapshot"`
}

// RateLimitConfig controls the per-client request budget.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls cross-origin access for a UI served off-port.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"1s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "POSTERM",
		Files:     []string{"config.yaml", "/etc/posterm/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("backend base URL is required: set POSTERM_BACKEND_BASE_URL")
	}

	return &cfg, nil
}

func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == "127.0.0.1:7979" {
		c.Addr = "127.0.0.1:" + port
	}
}
