package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"nftmarket"}, args...))
	return out.String(), err
}

func TestHealthCommand_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "server", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server is healthy")
}

func TestHealthCommand_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := runApp(t, "--server-url", server.URL, "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "server", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
}

func TestAPIStatsCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stats": {"total_volume": "12.5", "total_sales": 4, "total_creators": 3, "avg_price": "3.13"},
			"status": {"source": "default", "reason": "rpc down"}}`))
	}))
	defer server.Close()

	t.Run("text", func(t *testing.T) {
		out, err := runApp(t, "--server-url", server.URL, "api", "stats")
		require.NoError(t, err)
		assert.Contains(t, out, "Total volume:   12.50 SOL")
		assert.Contains(t, out, "Total sales:    4")
	})

	t.Run("jq", func(t *testing.T) {
		out, err := runApp(t, "--server-url", server.URL, "--jq", ".status.reason", "api", "stats")
		require.NoError(t, err)
		assert.Equal(t, "rpc down\n", out)
	})
}

func TestAPIActivityCommand_PassesLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"activities": [{"id": "abc", "type": "list", "actor": "seller", "nft_name": "Cat",
			"price": "2", "time_ago": "1m ago", "timestamp": "2024-05-01T12:00:00Z",
			"icon": "📋", "description": "Cat listed", "details": "2 SOL • 1m ago"}],
			"status": {"source": "chain"}}`))
	}))
	defer server.Close()

	out, err := runApp(t, "--server-url", server.URL, "api", "activity", "--limit", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "📋 Cat listed")
	assert.Contains(t, out, "2 SOL • 1m ago")
}

func TestMarketActivityCommand_RejectsLimit(t *testing.T) {
	_, err := runApp(t, "market", "activity", "--limit", "21")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be between 1 and 20")
}

func TestListingsCreate_ValidatesBeforeSigning(t *testing.T) {
	_, err := runApp(t, "listings", "create", "--price", "1", "not-a-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mint")

	_, err = runApp(t, "listings", "create", "--price", "-1", "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price must be positive")
}

func TestTemporalCreateSchedule_RejectsShortInterval(t *testing.T) {
	_, err := runApp(t, "temporal", "create-schedule", "--interval", "5s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval must be at least")
}

func TestStorageUploadMetadata(t *testing.T) {
	var pinned map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("pinata_api_key"))
		assert.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))

		switch r.URL.Path {
		case "/pinning/pinFileToIPFS":
			w.Write([]byte(`{"IpfsHash": "QmImage"}`))
		case "/pinning/pinJSONToIPFS":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&pinned))
			w.Write([]byte(`{"IpfsHash": "QmMeta"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	image := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(image, []byte("png"), 0o600))

	out, err := runApp(t, "storage",
		"--pinata-api-key", "key",
		"--pinata-secret-key", "secret",
		"--pinata-api-url", server.URL,
		"--pinata-gateway-url", "https://gw.example/ipfs",
		"upload-metadata",
		"--name", "Cat #1",
		"--image-file", image,
		"--attribute", "eyes=laser",
	)

	require.NoError(t, err)
	assert.Equal(t, "https://gw.example/ipfs/QmMeta\n", out)
	assert.Equal(t, "Cat #1", pinned["name"])
	assert.Equal(t, "https://gw.example/ipfs/QmImage", pinned["image"])
	props := pinned["properties"].(map[string]interface{})
	assert.Equal(t, "image", props["category"])
	files := props["files"].([]interface{})
	require.Len(t, files, 1)
	assert.Equal(t, "image/png", files[0].(map[string]interface{})["type"])
}

func TestStorageUploadMetadata_RequiresName(t *testing.T) {
	_, err := runApp(t, "storage", "--pinata-api-key", "key", "--pinata-secret-key", "secret", "upload-metadata")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--name is required")
}

func TestDBCommands_RequireDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := runApp(t, "db", "snapshot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestDBActivities_RejectsNonPositiveLimit(t *testing.T) {
	_, err := runApp(t, "db", "--database-url", "postgres://unused", "activities", "--limit", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be positive")
}
