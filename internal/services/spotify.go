package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/soundprint-app/soundprint/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyBaseURL     = "https://api.spotify.com/v1"
	spotifyAccountsURL = "https://accounts.spotify.com"

	// maxAttempts bounds how often a single request is retried after 429s.
	maxAttempts = 5
	// cooldownMargin is added on top of the provider's Retry-After value.
	cooldownMargin = 500 * time.Millisecond
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist. Genres and images are only
// populated on the full artist object, not on the simplified references
// embedded in albums and tracks.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AlbumType   string          `json:"album_type"`
	TotalTracks int             `json:"total_tracks"`
	ReleaseDate string          `json:"release_date"`
	Images      []SpotifyImage  `json:"images"`
	Artists     []SpotifyArtist `json:"artists"`
}

// ReleaseYear extracts the year from the release date, which the provider
// reports as YYYY, YYYY-MM or YYYY-MM-DD depending on precision.
func (a SpotifyAlbum) ReleaseYear() int {
	year, err := strconv.Atoi(strings.SplitN(a.ReleaseDate, "-", 2)[0])
	if err != nil {
		return 0
	}
	return year
}

// ArtworkURL returns the first album image, or an empty string.
func (a SpotifyAlbum) ArtworkURL() string {
	if len(a.Images) == 0 {
		return ""
	}
	return a.Images[0].URL
}

// SpotifyTrack represents a Spotify track. The album field is absent on the
// simplified track objects returned by the album-tracks listing.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	DurationMS int             `json:"duration_ms"`
	Album      SpotifyAlbum    `json:"album"`
	Artists    []SpotifyArtist `json:"artists"`
}

// SpotifyPlayHistoryItem is one entry from the recently-played endpoint.
type SpotifyPlayHistoryItem struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt string       `json:"played_at"`
}

// PlayedAtTime parses the provider-reported timestamp.
func (i SpotifyPlayHistoryItem) PlayedAtTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, i.PlayedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse played_at %q: %w", i.PlayedAt, err)
	}
	return t.UTC(), nil
}

// SpotifyPaginatedTracks represents one page of an album's tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyTrack `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// SpotifyPaginatedAlbums represents one page of an artist's albums.
type SpotifyPaginatedAlbums struct {
	Items  []SpotifyAlbum `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// TokenResponse is the provider's answer to a token endpoint call. The
// refresh token is only present when the provider decided to rotate it.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// standardError is the error body shape of resource calls.
type standardError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// authError is the error body shape of token endpoint calls.
type authError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// SpotifyClient performs rate-limited calls against the Spotify Web API and
// its accounts (token) host.
type SpotifyClient struct {
	httpClient   *http.Client
	limiter      *RateLimiter
	clock        clockwork.Clock
	logger       *log.Logger
	clientID     string
	clientSecret string
	baseURL      string
	accountsURL  string
}

// SpotifyClientOpts contains configuration options for creating a SpotifyClient.
type SpotifyClientOpts struct {
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	Limiter      *RateLimiter
	Clock        clockwork.Clock
	Logger       *log.Logger
	BaseURL      string // overridable for tests
	AccountsURL  string // overridable for tests
}

// NewSpotifyClient creates a SpotifyClient with the given options.
func NewSpotifyClient(opts SpotifyClientOpts) (*SpotifyClient, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("missing client credentials: %w", shared.ErrInvalidInput)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Limiter == nil {
		opts.Limiter = NewRateLimiter(opts.Clock)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.AccountsURL == "" {
		opts.AccountsURL = spotifyAccountsURL
	}

	return &SpotifyClient{
		httpClient:   opts.HTTPClient,
		limiter:      opts.Limiter,
		clock:        opts.Clock,
		logger:       opts.Logger,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		baseURL:      opts.BaseURL,
		accountsURL:  opts.AccountsURL,
	}, nil
}

// Limiter exposes the shared cooldown gate.
func (c *SpotifyClient) Limiter() *RateLimiter {
	return c.limiter
}

// AuthorizationURL builds the provider authorization URL that starts the
// user-facing OAuth flow.
func (c *SpotifyClient) AuthorizationURL(redirectURI, state string) string {
	conf := &oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: redirectURI,
		Scopes:      []string{"user-read-recently-played"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.accountsURL + "/authorize",
			TokenURL: c.accountsURL + "/api/token",
		},
	}
	return conf.AuthCodeURL(state)
}

// get performs a rate-limited GET against the resource API, decoding the
// JSON response into result. 429 responses set the shared cooldown and the
// request is retried up to maxAttempts times.
func (c *SpotifyClient) get(ctx context.Context, endpoint, accessToken string, result any) error {
	apiURL := c.baseURL + endpoint

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		retry, err := c.handleResponse(resp, result)
		if !retry {
			return err
		}
	}

	return fmt.Errorf("giving up on %s after %d attempts: %w", endpoint, maxAttempts, shared.ErrRateLimited)
}

// handleResponse classifies a resource API response. It returns retry=true
// only for 429, after arming the cooldown gate.
func (c *SpotifyClient) handleResponse(resp *http.Response, result any) (retry bool, err error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return false, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return false, nil

	case resp.StatusCode == http.StatusUnauthorized:
		// The caller owns token refresh; no silent retry here.
		return false, fmt.Errorf("status 401: %w", shared.ErrAccessToken)

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		cooldown := time.Duration(retryAfter)*time.Second + cooldownMargin
		c.limiter.SetCooldown(cooldown)
		c.logger.Warn("provider rate limit hit", "cooldown", cooldown)
		return true, nil

	default:
		var body standardError
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false, &shared.ProviderError{Status: resp.StatusCode}
		}
		return false, &shared.ProviderError{Status: body.Error.Status, Message: body.Error.Message}
	}
}

// token performs a form-encoded POST against the accounts host using HTTP
// Basic client credentials.
func (c *SpotifyClient) token(ctx context.Context, form url.Values) (*TokenResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body authError
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("status %d: %w", resp.StatusCode, shared.ErrProviderAuth)
		}
		return nil, fmt.Errorf("%s: %w", body.ErrorDescription, shared.ErrProviderAuth)
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &token, nil
}

// ExchangeAuthorizationCode trades a one-time authorization code for the
// first access/refresh token pair.
func (c *SpotifyClient) ExchangeAuthorizationCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	return c.token(ctx, form)
}

// RefreshAccessToken requests a fresh access token using a stored refresh
// token. The response may or may not carry a rotated refresh token.
func (c *SpotifyClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.token(ctx, form)
}

// RecentlyPlayed retrieves up to limit recently played items. A non-nil
// after cursor restricts results to plays strictly newer than that instant
// (epoch milliseconds on the wire).
func (c *SpotifyClient) RecentlyPlayed(ctx context.Context, accessToken string, limit int, after *time.Time) ([]SpotifyPlayHistoryItem, error) {
	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", limit)
	if after != nil {
		endpoint += fmt.Sprintf("&after=%d", after.UnixMilli())
	}

	var response struct {
		Items []SpotifyPlayHistoryItem `json:"items"`
	}
	if err := c.get(ctx, endpoint, accessToken, &response); err != nil {
		return nil, err
	}

	return response.Items, nil
}

// Artist retrieves the full artist object by id.
func (c *SpotifyClient) Artist(ctx context.Context, accessToken, artistID string) (*SpotifyArtist, error) {
	var artist SpotifyArtist
	endpoint := fmt.Sprintf("/artists/%s", url.PathEscape(artistID))
	if err := c.get(ctx, endpoint, accessToken, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// AlbumTracks retrieves one page of an album's tracks.
func (c *SpotifyClient) AlbumTracks(ctx context.Context, accessToken, albumID string, limit, offset int) (*SpotifyPaginatedTracks, error) {
	var response SpotifyPaginatedTracks
	endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d&offset=%d", url.PathEscape(albumID), limit, offset)
	if err := c.get(ctx, endpoint, accessToken, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// ArtistAlbums retrieves one page of an artist's studio albums.
func (c *SpotifyClient) ArtistAlbums(ctx context.Context, accessToken, artistID string, limit, offset int) (*SpotifyPaginatedAlbums, error) {
	var response SpotifyPaginatedAlbums
	endpoint := fmt.Sprintf("/artists/%s/albums?include_groups=album&limit=%d&offset=%d", url.PathEscape(artistID), limit, offset)
	if err := c.get(ctx, endpoint, accessToken, &response); err != nil {
		return nil, err
	}
	return &response, nil
}
