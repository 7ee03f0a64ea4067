package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Email    EmailConfig
	Storage  StorageConfig
	WeChat   WeChatConfig
	Tencent  TencentConfig
	WeLink   WeLinkConfig
	Meeting  MeetingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// EmailConfig holds SMTP settings for invite and notification mail.
type EmailConfig struct {
	FromAddress        string
	FromName           string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPass           string
	RecordingReceivers []string // ops recipients for recording-ready mail
}

// StorageConfig holds the S3-compatible object storage settings used for
// recordings and activity QR codes.
type StorageConfig struct {
	Region          string
	Endpoint        string // custom endpoint for OBS-compatible stores; empty = AWS
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// WeChatConfig holds the mini-program credentials used for login and
// subscription push messages.
type WeChatConfig struct {
	AppID            string
	Secret           string
	StartTemplateID  string // meeting-about-to-start push template
	CancelTemplateID string // meeting-cancelled push template
}

// TencentConfig holds Tencent Meeting API credentials.
type TencentConfig struct {
	APIBase   string
	AppID     string
	SDKID     string
	SecretID  string
	SecretKey string
	TimeoutS  int
}

// WeLinkConfig holds WeLink conferencing API credentials.
type WeLinkConfig struct {
	APIBase      string
	ClientID     string
	ClientSecret string
	TimeoutS     int
}

// MeetingConfig holds the static host pools and misc meeting settings.
type MeetingConfig struct {
	Community  string
	Hosts      map[string][]string // platform -> host account ids
	QueryToken string              // guards the participants query endpoint
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "meetings"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Email: EmailConfig{
			FromAddress:        getEnv("SMTP_SENDER", "noreply@example.com"),
			FromName:           getEnv("EMAIL_FROM_NAME", "Community Conference"),
			SMTPHost:           getEnv("SMTP_HOST", ""),
			SMTPPort:           getEnvInt("SMTP_PORT", 587),
			SMTPUser:           getEnv("SMTP_USER", ""),
			SMTPPass:           getEnv("SMTP_PASS", ""),
			RecordingReceivers: splitTrim(getEnv("RECORDING_RECEIVERS", ""), ","),
		},
		Storage: StorageConfig{
			Region:          getEnv("OBS_REGION", "cn-north-4"),
			Endpoint:        getEnv("OBS_ENDPOINT", ""),
			AccessKeyID:     getEnv("OBS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("OBS_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("OBS_BUCKET", ""),
		},
		WeChat: WeChatConfig{
			AppID:            getEnv("WECHAT_APPID", ""),
			Secret:           getEnv("WECHAT_SECRET", ""),
			StartTemplateID:  getEnv("WECHAT_START_TEMPLATE", ""),
			CancelTemplateID: getEnv("WECHAT_CANCEL_TEMPLATE", ""),
		},
		Tencent: TencentConfig{
			APIBase:   getEnv("TENCENT_API_BASE", "https://api.meeting.qq.com"),
			AppID:     getEnv("TENCENT_APPID", ""),
			SDKID:     getEnv("TENCENT_SDKID", ""),
			SecretID:  getEnv("TENCENT_SECRET_ID", ""),
			SecretKey: getEnv("TENCENT_SECRET_KEY", ""),
			TimeoutS:  getEnvInt("TENCENT_TIMEOUT_SEC", 15),
		},
		WeLink: WeLinkConfig{
			APIBase:      getEnv("WELINK_API_BASE", "https://open.welink.huaweicloud.com"),
			ClientID:     getEnv("WELINK_CLIENT_ID", ""),
			ClientSecret: getEnv("WELINK_CLIENT_SECRET", ""),
			TimeoutS:     getEnvInt("WELINK_TIMEOUT_SEC", 15),
		},
		Meeting: MeetingConfig{
			Community:  getEnv("COMMUNITY", "mindspore"),
			Hosts:      parseHostPools(getEnv("MEETING_HOSTS", "")),
			QueryToken: getEnv("QUERY_TOKEN", ""),
		},
	}
	return cfg, nil
}

// parseHostPools parses "tencent:host1|host2,welink:host3" into per-platform
// host pools. The pools are static for the process lifetime.
func parseHostPools(s string) map[string][]string {
	pools := make(map[string][]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		platform, hosts, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		pools[strings.ToLower(strings.TrimSpace(platform))] = splitTrim(hosts, "|")
	}
	return pools
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
