package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/nacl/box"
)

const (
	defaultAPIBaseURL  = "https://api.github.com"
	defaultKeyCacheLen = 64
	apiAcceptHeader    = "application/vnd.github+json"
)

// ErrMissingToken marks the configuration error of an API transport built
// without a token. Every SetSecret call fails with it until one is supplied.
var ErrMissingToken = errors.New("github token not configured")

// repoPublicKey is a repository's actions public key, used to seal secret
// values before transmission.
type repoPublicKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"`
}

// API pushes secrets through the GitHub REST API: fetch the repository's
// public key, seal the value with an anonymous NaCl box, and PUT the result
// to the per-repo secret endpoint. Public keys rotate rarely, so they are
// cached per repository in an LRU.
type API struct {
	baseURL string
	token   string
	client  *http.Client
	keys    *lru.Cache[string, repoPublicKey]
	logger  *slog.Logger
}

// APIOption configures an API transport.
type APIOption func(*API)

// WithBaseURL overrides the API base URL (GitHub Enterprise, tests).
func WithBaseURL(url string) APIOption {
	return func(a *API) { a.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) APIOption {
	return func(a *API) { a.client = client }
}

// WithAPILogger sets the logger.
func WithAPILogger(logger *slog.Logger) APIOption {
	return func(a *API) { a.logger = logger }
}

// NewAPI creates an API transport authenticating with token.
func NewAPI(token string, opts ...APIOption) *API {
	keys, _ := lru.New[string, repoPublicKey](defaultKeyCacheLen)
	a := &API{
		baseURL: defaultAPIBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		keys:    keys,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetSecret seals value with the target repository's public key and uploads
// it. Success is any 2xx status; on failure the error text is the response
// body, verbatim.
func (a *API) SetSecret(ctx context.Context, target, name, value string) error {
	if a.token == "" {
		return ErrMissingToken
	}

	key, err := a.publicKey(ctx, target)
	if err != nil {
		return err
	}

	sealed, err := sealValue(value, key.Key)
	if err != nil {
		return fmt.Errorf("seal secret for %s: %w", target, err)
	}

	payload, err := json.Marshal(map[string]string{
		"encrypted_value": sealed,
		"key_id":          key.KeyID,
	})
	if err != nil {
		return fmt.Errorf("encode secret payload: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/actions/secrets/%s", a.baseURL, target, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build secret request: %w", err)
	}
	a.addHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		a.logger.Debug("secret uploaded",
			slog.String("target", target),
			slog.String("secret", name),
			slog.Int("status", resp.StatusCode))
		return nil
	}
	return responseError(resp)
}

// publicKey returns the target repository's actions public key, consulting
// the cache first.
func (a *API) publicKey(ctx context.Context, target string) (repoPublicKey, error) {
	if key, ok := a.keys.Get(target); ok {
		return key, nil
	}

	url := fmt.Sprintf("%s/repos/%s/actions/secrets/public-key", a.baseURL, target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return repoPublicKey{}, fmt.Errorf("build public key request: %w", err)
	}
	a.addHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return repoPublicKey{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return repoPublicKey{}, responseError(resp)
	}

	var key repoPublicKey
	if err := json.NewDecoder(resp.Body).Decode(&key); err != nil {
		return repoPublicKey{}, fmt.Errorf("decode public key for %s: %w", target, err)
	}
	if key.Key == "" || key.KeyID == "" {
		return repoPublicKey{}, fmt.Errorf("incomplete public key response for %s", target)
	}

	a.keys.Add(target, key)
	return key, nil
}

func (a *API) addHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Accept", apiAcceptHeader)
}

// responseError turns a non-2xx response into an error carrying the response
// body verbatim, falling back to the status line for empty bodies.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if len(bytes.TrimSpace(body)) > 0 {
		return errors.New(string(bytes.TrimSpace(body)))
	}
	return errors.New(resp.Status)
}

// sealValue encrypts value for the base64-encoded X25519 public key using an
// anonymous sealed box, returning the base64 ciphertext GitHub expects.
func sealValue(value, publicKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("public key is %d bytes, want 32", len(raw))
	}

	var key [32]byte
	copy(key[:], raw)

	sealed, err := box.SealAnonymous(nil, []byte(value), &key, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("seal value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
