package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestClientHeartbeat(t *testing.T) {
	var got HeartbeatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bots/heartbeat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		switch got.AccountDisplayID {
		case "UNPAID":
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "status": "payment_required"})
		default:
			_ = json.NewEncoder(w).Encode(HeartbeatResponse{
				Success: true,
				Status:  "paid",
				Commands: Commands{
					MailingEnabled: true,
					BotEnabled:     true,
					Proxy:          "socks5://1.2.3.4:1080",
				},
			})
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())

	t.Run("paid profile returns commands", func(t *testing.T) {
		resp, err := client.Heartbeat(context.Background(), &HeartbeatRequest{
			BotID:            "bot_1",
			AccountDisplayID: "PF1",
			Status:           "running",
		})
		require.NoError(t, err)
		assert.Equal(t, "bot_1", got.BotID)
		assert.True(t, resp.Commands.MailingEnabled)
		assert.Equal(t, "socks5://1.2.3.4:1080", resp.Commands.Proxy)
	})

	t.Run("402 maps to ErrPaymentRequired", func(t *testing.T) {
		_, err := client.Heartbeat(context.Background(), &HeartbeatRequest{
			BotID:            "bot_1",
			AccountDisplayID: "UNPAID",
		})
		require.ErrorIs(t, err, ErrPaymentRequired)
	})
}

func TestClientReportMessage(t *testing.T) {
	var got MessageSentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/message_sent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "messageId": 42})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	err := client.ReportMessage(context.Background(), &MessageSentRequest{
		ProfileID: "PF1",
		ManID:     "man_1",
		Text:      "hello",
		Kind:      "letter",
	})
	require.NoError(t, err)
	assert.Equal(t, "PF1", got.ProfileID)
	assert.Equal(t, "letter", got.Kind)
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	st, err := LoadState(path)
	require.NoError(t, err)
	st.BotID = "bot_abc"

	acc := st.Account("PF1")
	acc.Templates = []string{"hi", "hello", "hey"}
	acc.MailingEvery = 90

	require.NoError(t, st.Save())

	loaded, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, "bot_abc", loaded.BotID)

	got := loaded.Account("PF1")
	assert.Equal(t, []string{"hi", "hello", "hey"}, got.Templates)
	assert.Equal(t, 90, got.MailingEvery)
}

func TestTemplateRotation(t *testing.T) {
	acc := &AccountState{Templates: []string{"a", "b"}}
	assert.Equal(t, "a", acc.PopTemplate())
	assert.Equal(t, "b", acc.PopTemplate())
	assert.Equal(t, "a", acc.PopTemplate())

	empty := &AccountState{}
	assert.Equal(t, "", empty.PopTemplate())
}
