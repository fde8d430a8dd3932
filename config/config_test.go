package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("REPLY_TIMEOUT", "")
	t.Setenv("STAFF_USER_IDS", "")

	cfg := Load()

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, int64(1), cfg.FirstCaseID)
	assert.Equal(t, 5*time.Minute, cfg.ReplyTimeout)
	assert.Empty(t, cfg.StaffUserIDs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REPLY_TIMEOUT", "90s")
	t.Setenv("FIRST_CASE_ID", "500")
	t.Setenv("STAFF_USER_IDS", " 11, 22 ,,33")
	t.Setenv("SWEEP_INTERVAL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.ReplyTimeout)
	assert.Equal(t, int64(500), cfg.FirstCaseID)
	assert.Equal(t, []string{"11", "22", "33"}, cfg.StaffUserIDs)
	assert.Equal(t, 10*time.Second, cfg.SweepInterval)
	assert.True(t, cfg.IsStaff("22"))
	assert.False(t, cfg.IsStaff("44"))
}

func TestGetAMQPURL(t *testing.T) {
	cfg := &Config{AMQPUser: "u", AMQPPassword: "p", AMQPHost: "mq", AMQPPort: "5672"}
	assert.Equal(t, "amqp://u:p@mq:5672/", cfg.GetAMQPURL())
}
