package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paud-api/pkg/config"
)

func testConfig(url string) config.NarrativeConfig {
	return config.NarrativeConfig{
		APIKey:          "test-key",
		APIURL:          url,
		Model:           "gemini-test",
		Timeout:         2 * time.Second,
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 200,
	}
}

var sampleRequest = Request{
	StudentName:    "Aisyah",
	AspectName:     "Kognitif",
	AspectCategory: "Kognitif",
	Score:          "BSH",
	ScoreLabel:     "Berkembang Sesuai Harapan",
	Keywords:       "mengenal warna",
}

func TestGeminiGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 200, body.GenerationConfig.MaxOutputTokens)
		assert.Len(t, body.SafetySettings, 4)
		assert.Contains(t, body.Contents[0].Parts[0].Text, "Kata kunci: mengenal warna")

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Aisyah berkembang sesuai harapan.  "}]}}]}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(testConfig(srv.URL), nil)
	text, err := client.Generate(context.Background(), sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, "Aisyah berkembang sesuai harapan.", text)
}

func TestGeminiGenerateErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, kind: KindUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, kind: KindUnauthorized},
		{name: "rate limited", status: http.StatusTooManyRequests, kind: KindRateLimited},
		{name: "server error", status: http.StatusInternalServerError, kind: KindTransport},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, kind: KindMalformedResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, kind: KindMalformedResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewGeminiClient(testConfig(srv.URL), nil).Generate(context.Background(), sampleRequest)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestGeminiUnconfiguredMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = "  "
	_, err := NewGeminiClient(cfg, nil).Generate(context.Background(), sampleRequest)
	require.Error(t, err)
	assert.Equal(t, KindUnconfigured, KindOf(err))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGeminiTimeoutIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	_, err := NewGeminiClient(cfg, nil).Generate(context.Background(), sampleRequest)
	require.Error(t, err)

	var ne *Error
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, KindTransport, ne.Kind)
	assert.True(t, ne.Retryable())
}

func TestBuildPromptWithoutKeywords(t *testing.T) {
	req := sampleRequest
	req.Keywords = "  "
	req.ScoreLabel = ""
	prompt := BuildPrompt(req)
	assert.Contains(t, prompt, "Tidak ada kata kunci khusus.")
	assert.Contains(t, prompt, "Nilai: BSH (-)")
	assert.Contains(t, prompt, "Gunakan nama anak (Aisyah)")
}
