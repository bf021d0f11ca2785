// Package auth runs the OAuth2 installed-app flow for Google and caches the token.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// ClientSecretsFile is the Google API credentials.json downloaded from the console.
	ClientSecretsFile = "credentials.json"
	// TokenFile caches the access and refresh token.
	TokenFile = "token.json"
	// LocalhostAuthPort receives the OAuth redirect.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// Flow locates credentials and the token cache under Dir.
type Flow struct {
	Dir    string
	Port   string
	Logger *zap.Logger
	// Prompt shows the authorization URL to the user.
	Prompt func(authURL string)
}

// NewFlow returns a flow using dir for credentials and the cached token.
func NewFlow(dir string, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		Dir:    dir,
		Port:   LocalhostAuthPort,
		Logger: logger,
		Prompt: func(authURL string) {
			fmt.Printf("Please open the following URL in your browser to authorize zenkai:\n%s\n", authURL)
		},
	}
}

func (f *Flow) TokenPath() string {
	return filepath.Join(f.Dir, TokenFile)
}

// Config reads the client secrets and points localhost and out-of-band
// redirects at the local callback server.
func (f *Flow) Config(scopes []string) (*oauth2.Config, error) {
	path := filepath.Join(f.Dir, ClientSecretsFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read client secret file %s", path)
	}
	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse client secret file to config")
	}

	callback := fmt.Sprintf("http://localhost:%s/oauth2callback", f.Port)
	if config.RedirectURL == "urn:ietf:wg:oauth:2.0:oob" {
		config.RedirectURL = callback
		return config, nil
	}
	parsed, err := url.Parse(config.RedirectURL)
	if err != nil {
		f.Logger.Warn("could not parse redirect URL, using it as is", zap.String("redirect_url", config.RedirectURL), zap.Error(err))
		return config, nil
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1":
		if parsed.Port() != f.Port {
			parsed.Host = net.JoinHostPort(parsed.Hostname(), f.Port)
			config.RedirectURL = parsed.String()
		}
	default:
		f.Logger.Warn("redirect URL is not a localhost callback", zap.String("redirect_url", config.RedirectURL))
	}
	return config, nil
}

// Client returns an HTTP client that refreshes its token automatically. A
// missing token starts the browser authorization flow.
func (f *Flow) Client(ctx context.Context, scopes []string) (*http.Client, error) {
	config, err := f.Config(scopes)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(f.TokenPath())
	if err != nil {
		f.Logger.Info("no cached token, starting web authorization flow", zap.String("token_file", f.TokenPath()))
		tok, err = f.tokenFromWeb(ctx, config)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get token from web")
		}
		if err := saveToken(f.TokenPath(), tok); err != nil {
			return nil, err
		}
	}

	source := &savingSource{
		base: config.TokenSource(ctx, tok),
		last: tok,
		path: f.TokenPath(),
		log:  f.Logger,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, source)), nil
}

// Reset removes the cached token so the next Client call authorizes again.
func (f *Flow) Reset() error {
	err := os.Remove(f.TokenPath())
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not delete token file '%s'", f.TokenPath())
	}
	return nil
}

// savingSource writes refreshed tokens back to the cache file.
type savingSource struct {
	base oauth2.TokenSource
	last *oauth2.Token
	path string
	log  *zap.Logger
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			s.log.Warn("could not save refreshed token", zap.Error(err))
		}
		s.last = tok
	}
	return tok, nil
}

func (f *Flow) tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", f.Port))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start listener on port %s", f.Port)
	}
	defer listener.Close()

	state := fmt.Sprintf("zenkai-%d", time.Now().UnixNano())
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "State mismatch", http.StatusBadRequest)
				return
			}
			code := q.Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				errCh <- errors.New("authorization code not found in redirect URL")
				return
			}
			fmt.Fprint(w, "Authentication successful! You can close this window.")
			codeCh <- code
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- errors.Wrap(err, "HTTP server error")
		}
	}()
	defer server.Shutdown(context.Background())

	f.Prompt(config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")))
	f.Logger.Info("waiting for authorization code", zap.String("redirect_url", config.RedirectURL))

	select {
	case code := <-codeCh:
		exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exchangeCtx, code)
		if err != nil {
			return nil, errors.Wrap(err, "unable to retrieve token from Google")
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out, please try again")
	}
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, errors.Wrapf(err, "failed to decode token from file %s", path)
	}
	return tok, nil
}

// saveToken writes the token readable by its owner only.
func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrapf(err, "could not create token directory %s", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "unable to cache OAuth token to %s", path)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
