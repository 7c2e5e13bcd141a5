package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL targets the mainland endpoint; api.coze.com serves the
	// international one.
	DefaultBaseURL = "https://api.coze.cn"

	defaultTimeout   = 60 * time.Second
	streamingTimeout = 300 * time.Second
)

// TokenFunc supplies the current bearer token for each request. Indirection
// keeps the client unaware of how credentials are stored or refreshed.
type TokenFunc func() string

// Client issues authenticated requests against the Coze v3 chat API.
type Client struct {
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL. token may be nil for
// clients that only use the unauthenticated OAuth token endpoint.
func NewClient(baseURL string, token TokenFunc) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			// No client-wide timeout: streaming responses stay open for the
			// life of a turn. Per-call contexts bound everything else.
			Timeout: 0,
		},
	}
}

// ChatResult is the outcome of a submit call. Exactly one delivery shape is
// populated: Stream for an event-stream response (caller closes it), or the
// envelope fields for a plain JSON response.
type ChatResult struct {
	Stream io.ReadCloser

	Code int
	Msg  string
	Chat *ChatData
}

// chatEnvelope mirrors the JSON body of a non-streaming chat response.
type chatEnvelope struct {
	Code int      `json:"code"`
	Msg  string   `json:"msg"`
	Data ChatData `json:"data"`
}

// CreateChat submits a turn via POST /v3/chat. The service answers either
// with an open SSE body (when streaming was requested and accepted) or with
// a JSON envelope carrying a business code and the conversation handle.
func (c *Client) CreateChat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, streamingTimeout)

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/v3/chat", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("executing chat request: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		// Hand the open body to the stream decoder; cancel the timeout
		// context when the caller closes it.
		return &ChatResult{Stream: &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}}, nil
	}

	defer cancel()
	defer resp.Body.Close()

	var env chatEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	return &ChatResult{Code: env.Code, Msg: env.Msg, Chat: &env.Data}, nil
}

// cancelOnClose wraps a ReadCloser and cancels a context on Close.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Retrieve queries the lifecycle status of one turn.
func (c *Client) Retrieve(ctx context.Context, conversationID, chatID string) (*RetrieveResult, error) {
	var env struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	q := url.Values{"conversation_id": {conversationID}, "chat_id": {chatID}}
	if err := c.getJSON(ctx, "/v3/chat/retrieve?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	return &RetrieveResult{Code: env.Code, Msg: env.Msg, Status: env.Data.Status}, nil
}

// MessageList fetches the full message detail for a completed turn.
func (c *Client) MessageList(ctx context.Context, conversationID, chatID string) (*MessageListResult, error) {
	var env struct {
		Code int           `json:"code"`
		Msg  string        `json:"msg"`
		Data []MessageItem `json:"data"`
	}
	q := url.Values{"conversation_id": {conversationID}, "chat_id": {chatID}}
	if err := c.getJSON(ctx, "/v3/chat/message/list?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	return &MessageListResult{Code: env.Code, Msg: env.Msg, Items: env.Data}, nil
}

// UploadFile posts one file as a multipart form to /v1/files/upload.
// Business-level failures (non-zero code) are reported in the result, not as
// an error; the retry decision belongs to the caller.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading file contents: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing form: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/v1/files/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing upload request: %w", err)
	}
	defer resp.Body.Close()

	var env struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	return &UploadResult{Code: env.Code, Msg: env.Msg, FileID: env.Data.ID}, nil
}

// tokenResponse mirrors the OAuth token endpoint body for both grant types.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ErrorMessage string `json:"error_message"`
}

// ExchangeCode redeems an authorization code (PKCE flow) for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, clientID, code, verifier, redirectURI string) (*TokenPair, error) {
	return c.tokenRequest(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     clientID,
		"code":          code,
		"redirect_uri":  redirectURI,
		"code_verifier": verifier,
	})
}

// RefreshToken trades a refresh token for a fresh token pair.
func (c *Client) RefreshToken(ctx context.Context, clientID, refreshToken string) (*TokenPair, error) {
	return c.tokenRequest(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     clientID,
		"refresh_token": refreshToken,
	})
}

func (c *Client) tokenRequest(ctx context.Context, form map[string]string) (*TokenPair, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("marshaling token request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/api/permission/oauth2/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	// The endpoint signals failure by omitting access_token.
	if tr.AccessToken == "" {
		if tr.ErrorMessage != "" {
			return nil, fmt.Errorf("token request rejected: %s", tr.ErrorMessage)
		}
		return nil, fmt.Errorf("token request rejected: no access token in response")
	}
	return &TokenPair{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != nil {
		req.Header.Set("Authorization", "Bearer "+c.token())
	}
}
