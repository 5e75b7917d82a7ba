package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":3000"`
	DatabasePath   string `envconfig:"DATABASE_PATH" default:"/app/data/ttydx.db"`
	LogPath        string `envconfig:"LOG_PATH" default:"/app/logs/auth.log"`
	PrincipalsFile string `envconfig:"PRINCIPALS_FILE" default:""`

	// Session and login settings
	SessionTTL       time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	LoginWindow      time.Duration `envconfig:"LOGIN_WINDOW" default:"15m"`
	LoginMaxAttempts int           `envconfig:"LOGIN_MAX_ATTEMPTS" default:"5"`
	BcryptCost       int           `envconfig:"BCRYPT_COST" default:"12"`
	SecureCookies    bool          `envconfig:"SECURE_COOKIES" default:"false"`

	// Proxies (IPs or CIDRs) whose X-Forwarded-For is honored. Empty means
	// the socket peer is always the client.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	// Terminal backend URL prefix handed to the browser
	TerminalPrefix string `envconfig:"TERMINAL_PREFIX" default:"/ttyd"`

	AuditRetentionDays int `envconfig:"AUDIT_RETENTION_DAYS" default:"90"`
	AuditQueueSize     int `envconfig:"AUDIT_QUEUE_SIZE" default:"256"`
}

var Cfg Settings

func Load() {
	if err := Parse(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}

// Parse reads the TTYDX_* environment into Cfg.
func Parse() error {
	return envconfig.Process("TTYDX", &Cfg)
}
