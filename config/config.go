package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the report case service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetime    time.Duration
	DBPingMaxWaitSeconds int

	// Server configuration
	Port               string
	InternalAdminToken string

	// Discord configuration
	DiscordToken  string
	CommandPrefix string
	StaffUserIDs  []string

	// Report workflow configuration
	TeamName          string
	DefaultAckMessage string
	FirstCaseID       int64
	ReplyTimeout      time.Duration
	SweepInterval     time.Duration

	// RabbitMQ configuration
	AMQPHost         string
	AMQPPort         string
	AMQPUser         string
	AMQPPassword     string
	RabbitMQExchange string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	config := &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "reportcases"),

		DBMaxOpenConns:       getIntEnv("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       getIntEnv("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime:    getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		DBPingMaxWaitSeconds: getIntEnv("DB_PING_MAX_WAIT_SEC", 60),

		// Server defaults
		Port:               getEnv("PORT", "8080"),
		InternalAdminToken: getEnv("INTERNAL_ADMIN_TOKEN", ""),

		// Discord defaults
		DiscordToken:  getEnv("DISCORD_TOKEN", ""),
		CommandPrefix: getEnv("COMMAND_PREFIX", "!"),
		StaffUserIDs:  getListEnv("STAFF_USER_IDS"),

		// Report workflow defaults
		TeamName:          getEnv("TEAM_NAME", "Moderation Team"),
		DefaultAckMessage: getEnv("DEFAULT_ACK_MESSAGE", "Thanks for reporting, the Moderation Team will look into it soon."),
		FirstCaseID:       int64(getIntEnv("FIRST_CASE_ID", 1)),
		ReplyTimeout:      getDurationEnv("REPLY_TIMEOUT", 5*time.Minute),
		SweepInterval:     getDurationEnv("SWEEP_INTERVAL", 10*time.Second),

		// RabbitMQ defaults
		AMQPHost:         getEnv("AMQP_HOST", "localhost"),
		AMQPPort:         getEnv("AMQP_PORT", "5672"),
		AMQPUser:         getEnv("AMQP_USER", "guest"),
		AMQPPassword:     getEnv("AMQP_PASSWORD", "guest"),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "report-cases"),

		// Logging defaults
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return config
}

// GetAMQPURL constructs the AMQP URL from configuration
func (c *Config) GetAMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.AMQPUser, c.AMQPPassword, c.AMQPHost, c.AMQPPort)
}

// DSN returns the MySQL data source name
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// IsStaff reports whether userID is listed in STAFF_USER_IDS
func (c *Config) IsStaff(userID string) bool {
	for _, id := range c.StaffUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma separated environment variable
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
