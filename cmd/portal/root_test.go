package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackportal/portal/internal/domain"
	"github.com/hackportal/portal/internal/dto"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORAGE_DRIVER", "memory")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := run(t, "events", "list", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEventsList_Memory(t *testing.T) {
	out, err := run(t, "events", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "SLUG")

	out, err = run(t, "events", "list", "--format", "json")
	require.NoError(t, err)
	var events []dto.EventResponse
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	assert.Empty(t, events)
}

func TestEventsActivate_Unknown(t *testing.T) {
	_, err := run(t, "events", "activate", "5b0f7a5e-2d7c-4c43-9a68-0f4c2b1f5e11")
	assert.ErrorIs(t, err, domain.ErrEventNotFound)

	_, err = run(t, "events", "activate")
	assert.Error(t, err)
}

func TestPrintEvents(t *testing.T) {
	events := []dto.EventResponse{
		{ID: "e-1", Slug: "spring-hack", Name: "Spring Hack", IsActive: true},
		{ID: "e-2", Slug: "summer-hack", Name: "Summer Hack"},
	}

	var text bytes.Buffer
	require.NoError(t, printEvents(&text, "text", events))
	lines := bytes.Split(bytes.TrimSpace(text.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "spring-hack")
	assert.Contains(t, string(lines[1]), "*")
	assert.NotContains(t, string(lines[2]), "*")

	var js bytes.Buffer
	require.NoError(t, printEvents(&js, "json", events))
	assert.Contains(t, js.String(), `"slug": "summer-hack"`)
}
