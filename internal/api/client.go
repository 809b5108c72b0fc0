package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.imgur.com"
	DefaultAuthURL = "https://api.imgur.com/oauth2"

	// RegistrationURL is where a user registers an application to obtain a
	// client id and secret.
	RegistrationURL = "https://api.imgur.com/oauth2/addclient"

	defaultHTTPTimeout = 2 * time.Minute
	httpTimeoutEnvKey  = "IMGUP_HTTP_TIMEOUT"

	imageFieldName = "image"
)

// Client is a small HTTP client for the image-hosting API.
type Client struct {
	baseURL string
	authURL string
	http    *http.Client
}

// NewClient creates a new API client. Empty URLs fall back to the defaults.
func NewClient(baseURL, authURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(authURL) == "" {
		authURL = DefaultAuthURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		authURL: strings.TrimRight(authURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Ping checks whether the API host answers at all. Any HTTP response,
// including an error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.Body.Close()
}

// AuthorizeURL returns the page on which the user obtains a PIN.
func (c *Client) AuthorizeURL(clientID string) string {
	query := url.Values{}
	query.Set("client_id", clientID)
	query.Set("response_type", "pin")
	return c.authURL + "/authorize?" + query.Encode()
}

// RequestToken posts a token grant. bearer, when set, is sent as the
// Authorization header.
func (c *Client) RequestToken(ctx context.Context, form url.Values, bearer string) (TokenResponse, error) {
	var resp TokenResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("%w: decode token response: %v", ErrMalformedResponse, err)
	}
	return resp, nil
}

// UploadImage streams r as a multipart upload authenticated with
// accessToken.
func (c *Client) UploadImage(ctx context.Context, accessToken, filename string, r io.Reader) (ImageData, error) {
	var image ImageData

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeImageForm(mw, filename, r))
	}()
	// r must not be read after we return.
	defer func() {
		_ = pr.Close()
		<-done
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/3/image", pr)
	if err != nil {
		return image, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	if err := c.doEnvelope(req, &image); err != nil {
		return image, err
	}
	if image.Link == "" || image.DeleteHash == "" {
		return image, fmt.Errorf("%w: upload response missing link or deletehash", ErrMalformedResponse)
	}
	return image, nil
}

// DeleteImage removes an image identified by its delete handle. Only the
// client id is needed.
func (c *Client) DeleteImage(ctx context.Context, clientID, deleteHash string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/3/image/"+url.PathEscape(deleteHash), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Client-ID "+clientID)
	return c.doEnvelope(req, nil)
}

func writeImageForm(mw *multipart.Writer, filename string, r io.Reader) error {
	part, err := mw.CreateFormFile(imageFieldName, filepath.Base(filename))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	if err := mw.WriteField("type", "file"); err != nil {
		return err
	}
	if err := mw.WriteField("name", filepath.Base(filename)); err != nil {
		return err
	}
	return mw.Close()
}

func (c *Client) doEnvelope(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !env.Success {
		return envelopeError(resp.StatusCode, env)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		return envelopeError(resp.StatusCode, env)
	}

	var oauthErr oauthError
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		return &APIError{Status: resp.StatusCode, Code: oauthErr.Error, Message: oauthErr.ErrorDescription}
	}

	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func envelopeError(status int, env envelope) error {
	if env.Status > 0 {
		status = env.Status
	}
	apiErr := &APIError{Status: status}

	var data errorData
	if err := json.Unmarshal(env.Data, &data); err == nil && len(data.Error) > 0 {
		var message string
		if err := json.Unmarshal(data.Error, &message); err == nil {
			apiErr.Message = message
		} else {
			var nested struct {
				Code    any    `json:"code"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(data.Error, &nested); err == nil {
				apiErr.Message = nested.Message
				if nested.Code != nil {
					apiErr.Code = fmt.Sprint(nested.Code)
				}
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = string(bytes.TrimSpace(env.Data))
	}
	return apiErr
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
