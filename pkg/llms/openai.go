package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sheba-ai/sheba/pkg/config"
	"github.com/sheba-ai/sheba/pkg/httpclient"
)

// OpenAIProvider talks to one OpenAI-compatible chat-completions endpoint.
type OpenAIProvider struct {
	config     config.LLMEndpointConfig
	httpClient *httpclient.Client
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    *float64              `json:"temperature,omitempty"`
	TopP           *float64              `json:"top_p,omitempty"`
	MaxTokens      *int                  `json:"max_tokens,omitempty"`
	Stop           []string              `json:"stop,omitempty"`
	Stream         bool                  `json:"stream"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict bool                   `json:"strict,omitempty"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *apiError      `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Error   *apiError            `json:"error,omitempty"`
}

type openAIStreamChoice struct {
	Delta        openAIDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type openAIDelta struct {
	Content string `json:"content,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIProvider creates a provider from an endpoint configuration.
func NewOpenAIProvider(cfg config.LLMEndpointConfig) *OpenAIProvider {
	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
	)

	return &OpenAIProvider{
		config:     cfg,
		httpClient: httpClient,
	}
}

func (p *OpenAIProvider) ModelName() string {
	return p.config.Model
}

func (p *OpenAIProvider) MaxContextTokens() int {
	return p.config.MaxContextTokens
}

// Invoke sends prompt and returns the full completion text.
func (p *OpenAIProvider) Invoke(ctx context.Context, prompt string, params config.CallParams) (string, error) {
	request := p.buildRequest(prompt, params, false)

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", NewError(KindEmptyResponse, "no completion content returned", 0, nil)
	}

	return response.Choices[0].Message.Content, nil
}

// InvokeStructured constrains the completion to schema and unmarshals it
// into out.
func (p *OpenAIProvider) InvokeStructured(ctx context.Context, prompt string, schema map[string]interface{}, out interface{}, params config.CallParams) error {
	request := p.buildRequest(prompt, params, false)
	request.ResponseFormat = &openAIResponseFormat{
		Type: "json_schema",
		JSONSchema: &openAIJSONSchema{
			Name:   "response",
			Schema: schema,
			Strict: true,
		},
	}

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return err
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return NewError(KindEmptyResponse, "no completion content returned", 0, nil)
	}

	content := response.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return NewError(KindSchemaViolation,
			fmt.Sprintf("completion does not match schema: %v", err), 0, err)
	}

	return nil
}

// Stream sends prompt and delivers completion text incrementally.
func (p *OpenAIProvider) Stream(ctx context.Context, prompt string, params config.CallParams) (<-chan StreamChunk, error) {
	request := p.buildRequest(prompt, params, true)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		if err := p.makeStreamingRequest(ctx, request, outputCh); err != nil {
			// The consumer may be gone; never block on the terminal chunk.
			select {
			case outputCh <- StreamChunk{Error: err}:
			case <-ctx.Done():
			}
		}
	}()

	return outputCh, nil
}

func (p *OpenAIProvider) buildRequest(prompt string, params config.CallParams, stream bool) openAIRequest {
	request := openAIRequest{
		Model: p.config.Model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stop:        params.Stop,
		Stream:      stream,
	}

	if params.MaxTokens > 0 {
		maxTokens := params.MaxTokens
		request.MaxTokens = &maxTokens
	}

	return request
}

func (p *OpenAIProvider) newHTTPRequest(ctx context.Context, request openAIRequest) (*http.Request, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, NewError(KindTransport, fmt.Sprintf("failed to marshal request: %v", err), 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, NewError(KindTransport, fmt.Sprintf("failed to create HTTP request: %v", err), 0, err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")

	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	return req, nil
}

// classifyHTTPFailure turns a non-2xx response or transport error into a
// typed Error. The body is consulted because overflow is reported as prose.
func classifyHTTPFailure(resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		message := string(body)

		if apiErr := parseErrorResponse(body); apiErr != nil {
			message = apiErr.Message
		}

		if looksLikeOverflow(resp.StatusCode, string(body)) {
			return NewError(KindContextOverflow, message, resp.StatusCode, err)
		}
		return NewError(KindUpstream, message, resp.StatusCode, err)
	}

	if err != nil {
		return NewError(KindTransport, err.Error(), 0, err)
	}

	return NewError(KindTransport, "no response received", 0, nil)
}

// parseErrorResponse extracts structured error details from an API error body.
func parseErrorResponse(body []byte) *apiError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	req, err := p.newHTTPRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	// The client may return both a response and an error for non-2xx codes.
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil || resp == nil || resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPFailure(resp, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindTransport, fmt.Sprintf("failed to read response: %v", err), 0, err)
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, NewError(KindUpstream, fmt.Sprintf("failed to unmarshal response: %v", err), resp.StatusCode, err)
	}

	if response.Error != nil {
		return nil, NewError(KindUpstream, response.Error.Message, resp.StatusCode, nil)
	}

	return &response, nil
}

func (p *OpenAIProvider) makeStreamingRequest(ctx context.Context, request openAIRequest, outputCh chan<- StreamChunk) error {
	req, err := p.newHTTPRequest(ctx, request)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil || resp == nil || resp.StatusCode != http.StatusOK {
		return classifyHTTPFailure(resp, err)
	}

	reader := bufio.NewReader(resp.Body)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return NewError(KindTransport, fmt.Sprintf("failed to read stream: %v", err), 0, err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]

		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var streamResp openAIStreamResponse
		if err := json.Unmarshal(line, &streamResp); err != nil {
			continue
		}

		if streamResp.Error != nil {
			return NewError(KindUpstream, streamResp.Error.Message, 0, nil)
		}

		if len(streamResp.Choices) == 0 {
			continue
		}

		choice := streamResp.Choices[0]

		if choice.Delta.Content != "" {
			select {
			case outputCh <- StreamChunk{Text: choice.Delta.Content}:
			case <-ctx.Done():
				return NewError(KindTransport, "stream cancelled", 0, ctx.Err())
			}
		}

		if choice.FinishReason == "stop" {
			break
		}
	}

	return nil
}
