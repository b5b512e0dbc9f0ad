package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewWithOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithFields(logrus.Fields{"document_id": "abc"}).Debug("loaded")
	assert.Contains(t, buf.String(), "document_id=abc")
	assert.Contains(t, buf.String(), "msg=loaded")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	logger := NewWithOutput("loud", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
