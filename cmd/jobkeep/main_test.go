package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRootHasAllSubcommands(t *testing.T) {
	root := buildRoot()
	want := []string{"serve", "run", "status", "list", "logs", "stop", "prune"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing subcommand %q", name)
	}
}

func TestRunRequiresArgs(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"run"})
	err := root.Execute()
	require.Error(t, err)
}

func TestStopRequiresID(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"stop"})
	err := root.Execute()
	require.Error(t, err)
}

func TestClientCommandsFailWithoutDaemon(t *testing.T) {
	c := command{}
	flags := APIFlags{APIUrl: "http://127.0.0.1:1/api"}

	err := c.Status(StatusFlags{APIFlags: flags}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon not reachable")

	err = c.Stop(StopFlags{APIFlags: flags}, []string{"some-id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon not reachable")
}
