package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-complaints-api/internal/models"
	"github.com/noah-isme/civic-complaints-api/pkg/config"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, models.CategoryWaterSupply, NormalizeCategory(" Water Supply."))
	assert.Equal(t, models.CategoryInfrastructure, NormalizeCategory("\"infrastructure\""))
	assert.Equal(t, DefaultCategory, NormalizeCategory("roads"))
	assert.Equal(t, models.PriorityHigh, NormalizePriority("HIGH"))
	assert.Equal(t, DefaultPriority, NormalizePriority("urgent"))
}

func TestNewSelectsProvider(t *testing.T) {
	assert.IsType(t, Static{}, New(config.AssistantConfig{Provider: "anthropic"}, nil))
	assert.IsType(t, Static{}, New(config.AssistantConfig{Provider: "static", APIKey: "k"}, nil))
	assert.IsType(t, &Anthropic{}, New(config.AssistantConfig{Provider: "anthropic", APIKey: "k", Model: "m"}, nil))
}

func TestStatic(t *testing.T) {
	res, err := Static{}.Categorize(context.Background(), "t", "d")
	require.NoError(t, err)
	assert.Equal(t, Result{Category: DefaultCategory, Priority: DefaultPriority}, res)

	summary, err := Static{}.Summarize(context.Background(), "t", "d", "Filled pothole")
	require.NoError(t, err)
	assert.Equal(t, "Filled pothole", summary)
}

func fakeMessages(t *testing.T, reply func(prompt string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)
		prompt := ""
		if len(req.Messages) > 0 && len(req.Messages[0].Content) > 0 {
			prompt = req.Messages[0].Content[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "test-model",
			"content":       []map[string]any{{"type": "text", "text": reply(prompt)}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicCategorize(t *testing.T) {
	srv := fakeMessages(t, func(prompt string) string {
		if strings.Contains(prompt, "priority") {
			return "high"
		}
		return "traffic"
	})
	a := NewAnthropic(config.AssistantConfig{APIKey: "k", APIURL: srv.URL, Model: "test-model"}, option.WithMaxRetries(0))

	res, err := a.Categorize(context.Background(), "Broken light", "Signal is out at the junction")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryTraffic, res.Category)
	assert.Equal(t, models.PriorityHigh, res.Priority)
}

func TestAnthropicErrorReturnsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"api_error","message":"down"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	a := NewAnthropic(config.AssistantConfig{APIKey: "k", APIURL: srv.URL, Model: "m"}, option.WithMaxRetries(0))

	res, err := a.Categorize(context.Background(), "t", "d")
	require.Error(t, err)
	assert.Equal(t, Result{Category: DefaultCategory, Priority: DefaultPriority}, res)

	_, err = a.Summarize(context.Background(), "t", "d", "x")
	require.Error(t, err)
}
