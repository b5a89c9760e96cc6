package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNAndURL(t *testing.T) {
	node := DatabaseNode{Host: "db", Port: "5432", User: "u", Pass: "p", Name: "notifier", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/notifier?sslmode=disable", node.DSN())

	mq := RabbitMQ{Host: "mq", Port: 5672, User: "guest", Password: "guest"}
	assert.Equal(t, "amqp://guest:guest@mq:5672", mq.URL())
}

func TestValidate(t *testing.T) {
	valid := Config{
		Auth:    Auth{JWTSecret: "s3cret"},
		Workers: Workers{Count: 2},
		Jobs:    Jobs{MaxAttempts: 3},
	}
	assert.NoError(t, valid.Validate())

	noSecret := valid
	noSecret.Auth.JWTSecret = ""
	assert.Error(t, noSecret.Validate())

	noWorkers := valid
	noWorkers.Workers.Count = 0
	assert.Error(t, noWorkers.Validate())

	noAttempts := valid
	noAttempts.Jobs.MaxAttempts = 0
	assert.Error(t, noAttempts.Validate())
}
