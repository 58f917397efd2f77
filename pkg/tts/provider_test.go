package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-sophia/pkg/tts"
)

func TestInworldSynthesize(t *testing.T) {
	audio := []byte("ID3fake-mp3")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Basic token123" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["voiceId"] != "Ashley" || body["modelId"] != "inworld-tts-1" || body["text"] != "hello" {
			t.Errorf("unexpected payload %v", body)
		}
		if _, ok := body["audioConfig"]; ok {
			t.Error("mp3 output should not send audioConfig")
		}
		fmt.Fprintf(w, `{"audioContent":%q}`, base64.StdEncoding.EncodeToString(audio))
	}))
	defer server.Close()

	p, err := tts.NewInworld(tts.WithAPIKey("token123"), tts.WithBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	res, err := p.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != string(audio) {
		t.Errorf("audio = %q", res.Audio)
	}
	if res.Format.Encoding != tts.EncodingMP3 || res.Provider != "inworld" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestInworldErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"invalid credentials"}}`))
		}))
		defer server.Close()

		p, _ := tts.NewInworld(tts.WithAPIKey("bad"), tts.WithBaseURL(server.URL))
		_, err := p.Synthesize(context.Background(), "hello")

		var apiErr *tts.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if !apiErr.Rejected() || apiErr.Message != "invalid credentials" {
			t.Errorf("unexpected error %+v", apiErr)
		}
	})

	t.Run("missing audio", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		p, _ := tts.NewInworld(tts.WithAPIKey("k"), tts.WithBaseURL(server.URL))
		if _, err := p.Synthesize(context.Background(), "hello"); !errors.Is(err, tts.ErrEmptyAudio) {
			t.Errorf("expected ErrEmptyAudio, got %v", err)
		}
	})
}

func TestInworldStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice:stream" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		cfg, _ := body["audioConfig"].(map[string]any)
		if cfg["audioEncoding"] != "LINEAR16" || cfg["sampleRateHertz"] != float64(24000) {
			t.Errorf("unexpected audioConfig %v", body["audioConfig"])
		}
		for _, part := range []string{"abc", "def"} {
			fmt.Fprintf(w, "{\"result\":{\"audioContent\":%q}}\n", base64.StdEncoding.EncodeToString([]byte(part)))
		}
	}))
	defer server.Close()

	p, _ := tts.NewInworld(
		tts.WithAPIKey("k"),
		tts.WithBaseURL(server.URL),
		tts.WithOutputFormat(tts.EncodingPCM24),
	)
	stream, err := p.Stream(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var got []string
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if chunk == nil {
			break
		}
		got = append(got, string(chunk))
	}
	if strings.Join(got, ",") != "abc,def" {
		t.Errorf("chunks = %v", got)
	}
	if stream.Format().SampleRate != 24000 {
		t.Errorf("format = %+v", stream.Format())
	}
}

func TestOpenAISynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "tts-1" || body["voice"] != "alloy" {
			t.Errorf("unexpected payload %v", body)
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	p, err := tts.NewOpenAI(tts.WithAPIKey("sk-test"), tts.WithBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "mp3-bytes" || res.Provider != "openai" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestOpenAIPCMOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["response_format"] != "pcm" {
			t.Errorf("expected pcm response_format, got %v", body["response_format"])
		}
		w.Write(make([]byte, 48000))
	}))
	defer server.Close()

	p, _ := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithBaseURL(server.URL), tts.WithOutputFormat(tts.EncodingPCM24))
	res, err := p.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Format.SampleRate != 24000 || res.Duration != time.Second {
		t.Errorf("expected one second of 24kHz PCM, got %+v over %v", res.Format, res.Duration)
	}
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	p, _ := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithBaseURL(server.URL), tts.WithRetry(1, 0))
	if _, err := p.Synthesize(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestInworldWSStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Basic k" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req["text"] != "hello" {
			t.Errorf("unexpected request %v", req)
		}
		conn.WriteJSON(map[string]any{"result": map[string]any{"audioContent": base64.StdEncoding.EncodeToString([]byte("aa"))}})
		conn.WriteMessage(websocket.BinaryMessage, []byte("bb"))
		conn.WriteJSON(map[string]any{"done": true})
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	p, err := tts.NewInworldWS(tts.WithAPIKey("k"), tts.WithBaseURL(url))
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "aabb" {
		t.Errorf("audio = %q", res.Audio)
	}
	if res.Format.Encoding != tts.EncodingPCM24 || res.Provider != "inworld_ws" {
		t.Errorf("unexpected result %+v", res)
	}

	bad, _ := tts.NewInworldWS(tts.WithAPIKey("wrong"), tts.WithBaseURL(url))
	_, err = bad.Stream(context.Background(), "hello")
	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 APIError, got %v", err)
	}
}

func TestInworldWSErrorFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req map[string]any
		conn.ReadJSON(&req)
		conn.WriteJSON(map[string]any{"error": map[string]any{"code": 400, "message": "text too long"}})
	}))
	defer server.Close()

	p, _ := tts.NewInworldWS(tts.WithAPIKey("k"), tts.WithBaseURL("ws"+strings.TrimPrefix(server.URL, "http")))
	_, err := p.Synthesize(context.Background(), "hello")

	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "text too long" {
		t.Errorf("expected APIError, got %v", err)
	}
}
