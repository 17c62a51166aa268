package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/seia/seia-translator/internal/project"
)

type transcriptionClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAIConfig configures the remote transcription provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty = api.openai.com
	Model   string
	Timeout time.Duration
}

// OpenAI transcribes through an OpenAI-compatible audio endpoint.
type OpenAI struct {
	client  transcriptionClient
	model   string
	timeout time.Duration
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return newOpenAIWithClient(openai.NewClientWithConfig(clientCfg), cfg.Model, cfg.Timeout)
}

func newOpenAIWithClient(client transcriptionClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Transcribe(ctx context.Context, audioPath, language string) ([]project.Segment, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	req := openai.AudioRequest{
		Model:    o.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	}
	if !detectLanguage(language) {
		req.Language = language
	}

	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	var segments []project.Segment
	for _, s := range resp.Segments {
		segments = append(segments, project.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	if len(segments) == 0 && resp.Text != "" {
		end := resp.Duration
		if end <= 0 {
			end = wholeTextSpan
		}
		segments = []project.Segment{{Start: 0, End: end, Text: resp.Text}}
	}

	segments = clean(segments)
	if len(segments) == 0 {
		return nil, ErrNoSpeech
	}
	return segments, nil
}
