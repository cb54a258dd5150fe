package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/szenti/b2go/internal/b2"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestFormatObjectSize_UnknownSentinel(t *testing.T) {
	assert.Equal(t, "-", formatObjectSize(b2.SizeUnknown))
	assert.Equal(t, "10 B", formatObjectSize(10))
}

func TestFormatTime_Zero(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))
}

func TestPrintTable(t *testing.T) {
	var sb strings.Builder

	printTable(&sb, []string{"NAME", "SIZE"}, [][]string{
		{"a-long-name.txt", "10 B"},
		{"b", "2.0 KB"},
	})

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	assert.Equal(t, "NAME             SIZE", lines[0])
	assert.Equal(t, "a-long-name.txt  10 B", lines[1])
	assert.Equal(t, "b                2.0 KB", lines[2])
}

func TestParseInfoFlags(t *testing.T) {
	info, err := parseInfoFlags([]string{"author=me", "mtime=123"})
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"author": "me", "mtime": "123"}, info)

	info, err = parseInfoFlags(nil)
	assert.NoError(t, err)
	assert.Nil(t, info)

	_, err = parseInfoFlags([]string{"no-equals"})
	assert.Error(t, err)

	_, err = parseInfoFlags([]string{"=value"})
	assert.Error(t, err)
}
