package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-redis-url")
	assert.ErrorContains(t, err, "failed to parse Redis URL")
}
