package config

type Config struct {
	Session  SessionConfig  `toml:"session"`
	Remote   RemoteConfig   `toml:"remote"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	SMTP     SMTPConfig     `toml:"smtp"`
}

// SessionConfig is the identity the terminal dashboard runs as.
type SessionConfig struct {
	Email string `toml:"email"`
	Role  string `toml:"role"`
	// Bearer token sent to the remote API. Generate with `greencampus token`.
	Token string `toml:"token"`
}

// RemoteConfig points the terminal dashboard at an API server. An empty
// URL uses the local database directly.
type RemoteConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type ServerConfig struct {
	Listen         string   `toml:"listen"`
	JWTSecret      string   `toml:"jwt_secret"`
	TokenTTLHours  int      `toml:"token_ttl_hours"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}
