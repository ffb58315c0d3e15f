package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := setup(logrus.New(), &buf, "debug", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("bot", "claude").Info("reply recorded")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "claude", line["bot"])
	assert.Equal(t, "reply recorded", line["msg"])
}

func TestSetup_Invalid(t *testing.T) {
	_, err := setup(logrus.New(), &bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)

	_, err = setup(logrus.New(), &bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)
	assert.Same(t, logrus.StandardLogger(), fallback.Logger)

	entry := logrus.New().WithField("request_id", "abc")
	ctx := WithContext(context.Background(), entry)
	assert.Same(t, entry, FromContext(ctx))
}
