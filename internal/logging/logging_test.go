package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelMappingInvertsDashLNumbering(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, levelFor(Options{Level: 1}))
	assert.Equal(t, logrus.InfoLevel, levelFor(Options{Level: 2}))
	assert.Equal(t, logrus.WarnLevel, levelFor(Options{Level: 3}))
	assert.Equal(t, logrus.InfoLevel, levelFor(Options{Level: 0}))
}

func TestQuietForcesErrorLevelRegardlessOfDashL(t *testing.T) {
	assert.Equal(t, logrus.ErrorLevel, levelFor(Options{Level: 1, Quiet: true}))
}

func TestNewWritesToRequestedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")

	logger, closer, err := New(Options{File: path, Level: 1})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestNewDefaultsToStderrWhenNoFileGiven(t *testing.T) {
	logger, closer, err := New(Options{})
	require.NoError(t, err)
	defer closer.Close()
	assert.NotNil(t, logger)
}
