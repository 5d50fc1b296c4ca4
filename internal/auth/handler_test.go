package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"waste_portal_backend/internal/middleware"
	"waste_portal_backend/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

type AuthHandlerSuite struct {
	suite.Suite
	auth       *authSuite
	router     *gin.Engine
	google     *httptest.Server
	prevInfo   string
	prevGoogle oauth2.Endpoint
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"google-access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"g-123","email":"Google.User@x.io","email_verified":true,"name":"Google User"}`))
	})
	s.google = httptest.NewServer(mux)
	s.prevInfo, s.prevGoogle = GoogleUserInfoURL, GoogleEndpoint
	GoogleUserInfoURL = s.google.URL + "/userinfo"
	GoogleEndpoint = oauth2.Endpoint{AuthURL: s.google.URL + "/auth", TokenURL: s.google.URL + "/token"}
}

func (s *AuthHandlerSuite) TearDownSuite() {
	GoogleUserInfoURL, GoogleEndpoint = s.prevInfo, s.prevGoogle
	s.google.Close()
}

func (s *AuthHandlerSuite) SetupTest() {
	s.auth = setupAuthServiceTestSuite(s.T())
	cfg := s.auth.cfg
	cfg.GoogleClientID = "client-id"
	cfg.GoogleClientSecret = "client-secret"
	cfg.GoogleRedirectURI = "http://localhost/api/v1/auth/oauth/google/callback"

	logger := zap.NewNop()
	oauthSvc := NewOAuthService(cfg, s.auth.profileSvc, s.auth.service, nil, logger)
	handler := NewHandler(s.auth.service, oauthSvc, user.NewHandler(s.auth.profileSvc, logger), cfg, logger)

	s.router = gin.New()
	authMW := middleware.AuthMiddleware(s.auth.tokens, s.auth.blocklist, s.auth.profileSvc, logger)
	handler.RegisterRoutes(s.router.Group("/api/v1"), authMW, func(c *gin.Context) { c.Next() })
}

func (s *AuthHandlerSuite) request(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (s *AuthHandlerSuite) TestEmailSignupVerifyAndMe() {
	w, env := s.request(http.MethodPost, "/api/v1/auth/signup/email", gin.H{
		"name": "Ada", "email": "ada@x.io", "password": "password123", "area": "North Ward",
	}, "")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Contains(string(env.Data), `"resend_after_seconds"`)

	w, env = s.request(http.MethodPost, "/api/v1/auth/verify/email", gin.H{
		"email": "ada@x.io", "code": s.auth.sender.last("ada@x.io"),
	}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var session SessionResponse
	s.Require().NoError(json.Unmarshal(env.Data, &session))
	s.Require().NotNil(session.Token)
	s.Equal("/dashboard", session.LandingRoute)

	w, env = s.request(http.MethodGet, "/api/v1/auth/me", nil, session.Token.AccessToken)
	s.Require().Equal(http.StatusOK, w.Code)
	var me user.ProfileResponse
	s.Require().NoError(json.Unmarshal(env.Data, &me))
	s.Equal("North Ward", me.Area)

	w, _ = s.request(http.MethodPost, "/api/v1/auth/logout", gin.H{"refresh_token": session.Token.RefreshToken}, session.Token.AccessToken)
	s.Equal(http.StatusOK, w.Code)
	w, _ = s.request(http.MethodGet, "/api/v1/auth/me", nil, session.Token.AccessToken)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *AuthHandlerSuite) TestVerifyRejectsNonSixDigitCode() {
	_, _ = s.request(http.MethodPost, "/api/v1/auth/signup/email", gin.H{
		"name": "Ada", "email": "ada@x.io", "password": "password123", "area": "North Ward",
	}, "")

	w, env := s.request(http.MethodPost, "/api/v1/auth/verify/email", gin.H{"email": "ada@x.io", "code": "12345"}, "")
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("INVALID_CODE", env.Code)
}

func (s *AuthHandlerSuite) TestOfficialSignupCreatesInactiveAccount() {
	_, _ = s.request(http.MethodPost, "/api/v1/auth/signup/phone", gin.H{
		"name": "Officer", "phone": "+15551234567", "password": "password123", "role": "official",
	}, "")
	w, env := s.request(http.MethodPost, "/api/v1/auth/verify/phone", gin.H{
		"phone": "+15551234567", "code": s.auth.sender.last("+15551234567"),
	}, "")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.NotContains(string(env.Data), "access_token")

	w, env = s.request(http.MethodPost, "/api/v1/auth/login", gin.H{"identifier": "+15551234567", "password": "password123"}, "")
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("ACCOUNT_INACTIVE", env.Code)
}

func (s *AuthHandlerSuite) TestSignupValidation() {
	w, env := s.request(http.MethodPost, "/api/v1/auth/signup/email", gin.H{"name": "A", "email": "nope", "password": "short"}, "")
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("VALIDATION_ERROR", env.Code)
}

func (s *AuthHandlerSuite) TestCheckEmail() {
	w, env := s.request(http.MethodGet, "/api/v1/auth/check-email?email=free@x.io", nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"exists":false}`, string(env.Data))
}

func (s *AuthHandlerSuite) TestFirebaseDisabled() {
	w, _ := s.request(http.MethodPost, "/api/v1/auth/oauth/firebase", gin.H{"id_token": "abc"}, "")
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *AuthHandlerSuite) TestGoogleLoginFlow() {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/google/login", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(http.StatusTemporaryRedirect, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	s.Require().NoError(err)
	s.True(strings.HasPrefix(location.String(), s.google.URL+"/auth"))
	state := location.Query().Get("state")
	s.Require().NotEmpty(state)

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == s.auth.cfg.OAuthStateCookieName {
			stateCookie = c
		}
	}
	s.Require().NotNil(stateCookie)

	callback := "/api/v1/auth/oauth/google/callback?code=abc&state=" + url.QueryEscape(state)
	req = httptest.NewRequest(http.MethodGet, callback, nil)
	req.AddCookie(stateCookie)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	var session SessionResponse
	s.Require().NoError(json.Unmarshal(env.Data, &session))
	s.Equal("google", session.Profile.AuthProvider)
	s.True(session.Profile.ProfileIncomplete)
	s.Require().NotNil(session.Profile.Email)
	s.Equal("google.user@x.io", *session.Profile.Email)

	// A forged state is rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/google/callback?code=abc&state=forged", nil)
	req.AddCookie(stateCookie)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}
