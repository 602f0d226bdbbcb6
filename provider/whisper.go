package provider

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	openai "github.com/sashabaranov/go-openai"

	innosupps "github.com/simd-personal/Inno-Supps"
)

var _ Transcriber = (*Whisper)(nil)

// Whisper transcribes recordings with the OpenAI audio API. The recording
// is streamed from its URL straight into the upload.
type Whisper struct {
	client *openai.Client
	http   *http.Client
}

// NewWhisper returns a Whisper transcriber. A nil httpClient uses
// http.DefaultClient for downloads.
func NewWhisper(client *openai.Client, httpClient *http.Client) *Whisper {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Whisper{client: client, http: httpClient}
}

// Transcribe implements Transcriber.
func (w *Whisper) Transcribe(ctx context.Context, recordingURL, language string) (*Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, innosupps.Invalid("recording url %q: %v", recordingURL, err)
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return nil, innosupps.Upstream("recording", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, innosupps.Upstream("recording", fmt.Errorf("GET %s: %s", recordingURL, resp.Status))
	}

	out, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: path.Base(req.URL.Path),
		Reader:   resp.Body,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, innosupps.Upstream("whisper", err)
	}
	return &Transcript{
		Text:     out.Text,
		Language: out.Language,
		Duration: secondsToDuration(out.Duration),
	}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
