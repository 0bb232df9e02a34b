package client

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
)

// HTTPClient implements Client over the server's JSON API. The balanced-tier
// key fragment travels in the X-Key-Fragment header, the session token as a
// bearer token.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) SetToken(token string) { c.token = token }

// do issues one request. Transport failures map to ErrUnavailable, 401 to
// ErrSessionExpired so the session layer can trigger re-authentication.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, extraHeader http.Header) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+c.token)
	}
	for k, vs := range extraHeader {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, common.ErrSessionExpired
	case resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, common.ErrorUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, common.ErrorNotFound
	case resp.StatusCode == http.StatusConflict:
		resp.Body.Close()
		return nil, common.ErrorConflict
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}

func decodeInto[T any](resp *http.Response, out *T) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) AdminKey(ctx context.Context) (*rsa.PublicKey, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/admin-key", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	pem, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, err
	}
	return cryptox.ParsePublicKeyPEM(pem)
}

func (c *HTTPClient) Register(ctx context.Context, username string, enrollment *cryptox.Enrollment, profile []byte) error {
	body := struct {
		Username   string              `json:"username"`
		Enrollment *cryptox.Enrollment `json:"enrollment"`
		Profile    []byte              `json:"profile,omitempty"`
	}{username, enrollment, profile}

	resp, err := c.do(ctx, http.MethodPost, "/api/register", body, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) GetSaltParams(ctx context.Context, username string) ([]byte, cryptox.KDFParams, error) {
	body := struct {
		Username string `json:"username"`
	}{username}

	resp, err := c.do(ctx, http.MethodPost, "/api/salt", body, nil)
	if err != nil {
		return nil, cryptox.KDFParams{}, err
	}

	var out struct {
		Salt   []byte            `json:"salt"`
		Params cryptox.KDFParams `json:"params"`
	}
	if err := decodeInto(resp, &out); err != nil {
		return nil, cryptox.KDFParams{}, err
	}
	return out.Salt, out.Params, nil
}

func (c *HTTPClient) Login(ctx context.Context, username string, verifier []byte, tier common.Tier) (*LoginResult, error) {
	body := struct {
		Username string `json:"username"`
		Verifier []byte `json:"verifier"`
		Tier     string `json:"tier"`
	}{username, verifier, string(tier)}

	resp, err := c.do(ctx, http.MethodPost, "/api/login", body, nil)
	if err != nil {
		return nil, err
	}

	var out LoginResult
	if err := decodeInto(resp, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	c.token = ""
	return nil
}

func (c *HTTPClient) ChangePassword(ctx context.Context, oldVerifier []byte, rewrapped *cryptox.Rewrapped) error {
	body := struct {
		OldVerifier []byte             `json:"old_verifier"`
		Rewrapped   *cryptox.Rewrapped `json:"rewrapped"`
	}{oldVerifier, rewrapped}

	resp, err := c.do(ctx, http.MethodPost, "/api/password", body, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) PutFragment(ctx context.Context, fragment []byte) error {
	header := http.Header{}
	header.Set(common.KeyFragmentHeaderName, base64.StdEncoding.EncodeToString(fragment))

	resp, err := c.do(ctx, http.MethodPut, "/api/session/fragment", nil, header)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) GetFragment(ctx context.Context) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/session/fragment", nil, nil)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	fragment, err := base64.StdEncoding.DecodeString(resp.Header.Get(common.KeyFragmentHeaderName))
	if err != nil || len(fragment) == 0 {
		return nil, fmt.Errorf("malformed fragment header")
	}
	return fragment, nil
}

func (c *HTTPClient) SaveRecord(ctx context.Context, period, subkey string, payload []byte) (*Record, error) {
	body := struct {
		Period  string `json:"period"`
		Subkey  string `json:"subkey,omitempty"`
		Payload []byte `json:"payload"`
	}{period, subkey, payload}

	resp, err := c.do(ctx, http.MethodPost, "/api/records", body, nil)
	if err != nil {
		return nil, err
	}

	var out Record
	if err := decodeInto(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func recordPath(period, subkey string) string {
	path := "/api/records/" + url.PathEscape(period)
	if subkey != "" {
		path += "?subkey=" + url.QueryEscape(subkey)
	}
	return path
}

func (c *HTTPClient) GetRecord(ctx context.Context, period, subkey string) (*Record, error) {
	resp, err := c.do(ctx, http.MethodGet, recordPath(period, subkey), nil, nil)
	if err != nil {
		return nil, err
	}

	var out Record
	if err := decodeInto(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListRecords(ctx context.Context) ([]Record, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/records", nil, nil)
	if err != nil {
		return nil, err
	}

	var out []Record
	if err := decodeInto(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, period, subkey string) error {
	resp, err := c.do(ctx, http.MethodDelete, recordPath(period, subkey), nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) AdminListRecords(ctx context.Context) ([]AdminBundle, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/admin/records", nil, nil)
	if err != nil {
		return nil, err
	}

	var out []AdminBundle
	if err := decodeInto(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}
