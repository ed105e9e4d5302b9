package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenRejectsEmptyAddr(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.EqualError(t, err, "empty redis addr")
}

func TestOpenFailsOnUnreachableServer(t *testing.T) {
	_, err := Open(context.Background(), Config{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "redis ping 127.0.0.1:1")
}
