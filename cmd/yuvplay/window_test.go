package main

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veandco/go-sdl2/sdl"
)

func TestRequestGLAttributes(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	applied := map[sdl.GLattr]int{}
	failed := requestGLAttributes(func(attr sdl.GLattr, value int) error {
		if attr == sdl.GL_DOUBLEBUFFER {
			return errors.New("attribute rejected")
		}
		applied[attr] = value
		return nil
	})

	assert.Equal(t, []string{"double_buffer"}, failed)
	assert.Equal(t, 2, applied[sdl.GL_CONTEXT_MAJOR_VERSION])
	assert.Len(t, applied, 3)
	assert.Contains(t, buf.String(), "failed to set GL attribute")
	assert.Contains(t, buf.String(), "attribute=double_buffer")
	assert.Contains(t, buf.String(), "attribute rejected")
}

func TestRequestGLAttributes_AllApplied(t *testing.T) {
	assert.Empty(t, requestGLAttributes(func(sdl.GLattr, int) error { return nil }))
}
