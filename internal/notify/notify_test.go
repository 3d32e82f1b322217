package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/opsdeck/internal/kanban"
	"github.com/zulandar/opsdeck/internal/logging"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

var at = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func moveError() error {
	return &kanban.RemoteError{Op: "set_status", TaskID: "t1", Status: tasktree.StatusCompleted, Err: errors.New("503 service unavailable")}
}

func TestFromError_RemoteMove(t *testing.T) {
	evt := FromError("acme", moveError(), at)
	assert.Equal(t, "Moving t1 to completed failed", evt.Title)
	assert.Equal(t, "503 service unavailable", evt.Body)
	assert.Equal(t, "error", evt.Severity)
	assert.Len(t, evt.Fields, 3)
}

func TestFromError_Plain(t *testing.T) {
	evt := FromError("acme", errors.New("boom"), at)
	assert.Equal(t, "Board update failed", evt.Title)
	assert.Equal(t, "boom", evt.Body)
	require.Len(t, evt.Fields, 1)
	assert.Equal(t, "acme", evt.Fields[0].Value)
}

func TestFromError_List(t *testing.T) {
	evt := FromError("acme", &kanban.RemoteError{Op: "list", Err: errors.New("timeout")}, at)
	assert.Equal(t, "Store list failed", evt.Title)
}

func fastSlack(t *testing.T, url string) *Slack {
	t.Helper()
	s, err := NewSlack(url)
	require.NoError(t, err)
	s.backoff = backoff{base: time.Millisecond, max: 5 * time.Millisecond}
	return s
}

func TestSlack_PostsAttachment(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := fastSlack(t, srv.URL)
	require.NoError(t, s.Notify(context.Background(), FromError("acme", moveError(), at)))

	var msg struct {
		Text        string `json:"text"`
		Attachments []struct {
			Color  string `json:"color"`
			Title  string `json:"title"`
			Fields []struct {
				Title string `json:"title"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"attachments"`
	}
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, "Moving t1 to completed failed", msg.Text)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, colorError, msg.Attachments[0].Color)
	assert.Len(t, msg.Attachments[0].Fields, 3)
}

func TestSlack_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, fastSlack(t, srv.URL).Notify(context.Background(), Event{Title: "x"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSlack_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := fastSlack(t, srv.URL).Notify(context.Background(), Event{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack: post webhook")
}

func TestNewSlack_RequiresURL(t *testing.T) {
	_, err := NewSlack("")
	assert.Error(t, err)
}

type mockWebhook struct {
	mu     sync.Mutex
	params []*discordgo.WebhookParams
	errs   []error
}

func (m *mockWebhook) WebhookExecute(id, token string, wait bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = append(m.params, data)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	return &discordgo.Message{}, nil
}

func testDiscord(m *mockWebhook) *Discord {
	return &Discord{id: "1234", token: "tok", exec: m, backoff: backoff{base: time.Millisecond, max: 5 * time.Millisecond}}
}

func TestDiscord_SendsEmbed(t *testing.T) {
	m := &mockWebhook{}
	require.NoError(t, testDiscord(m).Notify(context.Background(), FromError("acme", moveError(), at)))

	require.Len(t, m.params, 1)
	require.Len(t, m.params[0].Embeds, 1)
	embed := m.params[0].Embeds[0]
	assert.Equal(t, "Moving t1 to completed failed", embed.Title)
	assert.Equal(t, 0xd93f0b, embed.Color)
	assert.Equal(t, "2026-10-14T09:30:00Z", embed.Timestamp)
	assert.Len(t, embed.Fields, 3)
}

func TestDiscord_RetriesOnRateLimit(t *testing.T) {
	limited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	m := &mockWebhook{errs: []error{limited}}
	require.NoError(t, testDiscord(m).Notify(context.Background(), Event{Title: "x"}))
	assert.Len(t, m.params, 2)
}

func TestDiscord_GivesUp(t *testing.T) {
	limited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	m := &mockWebhook{errs: []error{limited, limited, limited, limited, limited}}
	err := testDiscord(m).Notify(context.Background(), Event{Title: "x"})
	require.Error(t, err)
	assert.Len(t, m.params, maxRetries+1)
}

func TestNewDiscord_RequiresCredentials(t *testing.T) {
	_, err := NewDiscord("1234", "")
	assert.Error(t, err)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"D93F0B", 0xd93f0b},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

type failing struct{ err error }

func (f failing) Notify(context.Context, Event) error { return f.err }

func TestMulti_JoinsErrors(t *testing.T) {
	a, b := errors.New("a down"), errors.New("b down")
	err := Multi{failing{a}, failing{nil}, failing{b}}.Notify(context.Background(), Event{})
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
	assert.NoError(t, Multi{failing{nil}}.Notify(context.Background(), Event{}))
}

func TestLog_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New("info", "json", &buf)
	require.NoError(t, err)

	require.NoError(t, Log{Logger: l}.Notify(context.Background(), FromError("acme", moveError(), at)))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"field_Task":"t1"`)
}

type recording struct {
	got chan Event
}

func (r recording) Notify(_ context.Context, evt Event) error {
	r.got <- evt
	return nil
}

func TestHook_DeliversInBackground(t *testing.T) {
	rec := recording{got: make(chan Event, 1)}
	hook := Hook(rec, "acme", logging.Discard(), time.Second)
	hook(moveError())

	select {
	case evt := <-rec.got:
		assert.Equal(t, "Moving t1 to completed failed", evt.Title)
	case <-time.After(time.Second):
		t.Fatal("hook did not deliver")
	}
}
