package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/platform/crypto"
	"waste_portal_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	// GoogleUserInfoURL is a variable so tests can point it at a fake server.
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	// GoogleEndpoint is a variable for the same reason.
	GoogleEndpoint = google.Endpoint
)

// setOAuthCookie sets a short-lived cookie for the OAuth state.
func setOAuthCookie(c *gin.Context, cfg *config.Config, name, value string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.OAuthCookieDomain,
		MaxAge:   cfg.OAuthCookieMaxAgeMinutes * 60,
		Secure:   cfg.OAuthCookieSecure,
		HttpOnly: cfg.OAuthCookieHTTPOnly,
		SameSite: parseSameSite(cfg.OAuthCookieSameSite),
	})
}

// getOAuthCookie retrieves and deletes an OAuth cookie.
func getOAuthCookie(c *gin.Context, cfg *config.Config, name string) (string, error) {
	cookie, err := c.Request.Cookie(name)
	if err != nil {
		return "", fmt.Errorf("%s cookie not found: %w", name, err)
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   cfg.OAuthCookieDomain,
		MaxAge:   -1,
		Secure:   cfg.OAuthCookieSecure,
		HttpOnly: cfg.OAuthCookieHTTPOnly,
		SameSite: parseSameSite(cfg.OAuthCookieSameSite),
	})
	return cookie.Value, nil
}

func parseSameSite(s string) http.SameSite {
	switch s {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func generateAndSetOAuthState(c *gin.Context, cfg *config.Config) (string, error) {
	state, err := crypto.GenerateSecureRandomString(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	setOAuthCookie(c, cfg, cfg.OAuthStateCookieName, state)
	return state, nil
}

func getGoogleOAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     GoogleEndpoint,
	}
}

// frontendRedirectURL appends the session to the fragment so tokens never reach server logs.
func frontendRedirectURL(base string, token *shared.TokenResponse, landingRoute string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	fragment := url.Values{}
	fragment.Set("access_token", token.AccessToken)
	fragment.Set("refresh_token", token.RefreshToken)
	fragment.Set("expires_at", strconv.FormatInt(token.ExpiresAt.Unix(), 10))
	fragment.Set("token_type", token.TokenType)
	fragment.Set("landing_route", landingRoute)
	u.Fragment = ""
	return u.String() + "#" + fragment.Encode(), nil
}
