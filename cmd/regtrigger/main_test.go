package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/regtrigger/internal/notification"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestParsePayloadFileSetsDTRHost(t *testing.T) {
	path := writeFile(t, `{
	  "type": "TAG_PUSH",
	  "contents": {"namespace": "foo", "repository": "bar", "tag": "latest"}
	}`)

	n, err := parsePayloadFile(path, "dtr.example.com")
	require.NoError(t, err)

	assert.Equal(t, notification.RegistryDTR, n.Registry())
	assert.Equal(t, "dtr.example.com", n.Host())
}

func TestParsePayloadFileKeepsDockerHubHost(t *testing.T) {
	path := writeFile(t, `{"push_data": {"tag": "1.0"}, "repository": {"repo_name": "acme/app"}}`)

	n, err := parsePayloadFile(path, "dtr.example.com")
	require.NoError(t, err)

	assert.Equal(t, notification.RegistryDockerHub, n.Registry())
	assert.Equal(t, notification.DefaultDockerHubHost, n.Host())
}

func TestParsePayloadFileMalformed(t *testing.T) {
	_, err := parsePayloadFile(writeFile(t, `{}`), "")
	assert.True(t, notification.IsMalformed(err))
}

func TestHide(t *testing.T) {
	assert.Equal(t, "", hide(""))
	assert.Equal(t, "**hidden**", hide("secret"))
}
