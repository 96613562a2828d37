package authflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

// ErrUserAbandoned is returned when the flow ends without the user completing
// provider login (context cancelled before the redirect arrived).
var ErrUserAbandoned = fmt.Errorf("authflow: user abandoned login")

type callback struct {
	code string
	err  error
}

// Flow runs the interactive half of the authorization-code flow: it opens the
// provider's authorization URL in the browser and captures the redirect back
// to the registered loopback callback URL.
type Flow struct {
	redirectURI *url.URL
	browser     Browser
}

func New(redirectURI string, browser Browser) (*Flow, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("[authflow.New] parse redirect URI: %w", err)
	}
	if parsed.Host == "" || parsed.Path == "" {
		return nil, fmt.Errorf("[authflow.New] redirect URI %q needs a host and path", redirectURI)
	}
	if browser == nil {
		return nil, fmt.Errorf("[authflow.New] browser is required")
	}
	return &Flow{redirectURI: parsed, browser: browser}, nil
}

// Authorize blocks until the provider redirects back with an authorization
// code or ctx is cancelled. The flow is user-paced: no timeout is imposed
// here. The state parameter of the redirect must echo the one passed in.
func (f *Flow) Authorize(ctx context.Context, authURL, state string) (string, error) {
	results := make(chan callback, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("GET %s", f.redirectURI.Path), callbackHandler(state, results))

	server := &http.Server{Addr: f.redirectURI.Host, Handler: mux}
	defer server.Close()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case results <- callback{err: fmt.Errorf("callback listener: %w", err)}:
			default:
			}
		}
	}()

	log.Debug().Str("callback", f.redirectURI.String()).Msg("waiting for authorization redirect")
	if err := f.browser.OpenURL(authURL); err != nil {
		return "", fmt.Errorf("[Flow.Authorize] open browser: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ErrUserAbandoned
	case cb := <-results:
		if cb.err != nil {
			return "", fmt.Errorf("[Flow.Authorize] %w", cb.err)
		}
		return cb.code, nil
	}
}

func callbackHandler(state string, results chan<- callback) http.HandlerFunc {
	deliver := func(cb callback) {
		select {
		case results <- cb:
		default: // a result already arrived; drop duplicates
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errParam := query.Get("error"); errParam != "" {
			http.Error(w, "Authorization failed. You can close this window.", http.StatusBadRequest)
			deliver(callback{err: fmt.Errorf("provider returned %s: %s", errParam, query.Get("error_description"))})
			return
		}
		if query.Get("state") != state {
			http.Error(w, "Invalid state parameter.", http.StatusBadRequest)
			deliver(callback{err: fmt.Errorf("state mismatch in callback")})
			return
		}
		code := query.Get("code")
		if code == "" {
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			deliver(callback{err: fmt.Errorf("authorization code missing in callback")})
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><p>Signed in. You can close this window and return to Strongroom.</p></body></html>")
		deliver(callback{code: code})
	}
}
