// File: internal/auth/handler.go
package auth

import (
	"net/http"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/registration"
	"waste_portal_backend/internal/shared"
	"waste_portal_backend/internal/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	service      Service
	oauthService OAuthService
	profiles     *user.Handler
	cfg          *config.Config
	logger       *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(service Service, oauthService OAuthService, profiles *user.Handler, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		service:      service,
		oauthService: oauthService,
		profiles:     profiles,
		cfg:          cfg,
		logger:       logger.Named("AuthHandler"),
	}
}

// RegisterRoutes sets up the routes for authentication operations.
// limitMW throttles the endpoints that can be used to probe or spam.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc, limitMW gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", limitMW, h.login)
		authGroup.POST("/signup/email", limitMW, h.signupEmail)
		authGroup.POST("/signup/phone", limitMW, h.signupPhone)
		authGroup.POST("/verify/email", limitMW, h.verifyEmail)
		authGroup.POST("/verify/phone", limitMW, h.verifyPhone)
		authGroup.POST("/resend", limitMW, h.resendCode)
		authGroup.POST("/refresh", h.refreshToken)
		authGroup.GET("/check-email", limitMW, h.checkEmail)
		authGroup.GET("/check-phone", limitMW, h.checkPhone)

		authGroup.GET("/oauth/google/login", h.googleLogin)
		authGroup.GET("/oauth/google/callback", h.googleCallback)
		authGroup.POST("/oauth/firebase", limitMW, h.firebaseSignIn)

		authGroup.POST("/logout", authMW, h.logout)
		authGroup.GET("/me", authMW, h.profiles.GetMe)
		authGroup.DELETE("/account", authMW, h.profiles.DeleteMe)
	}
}

func (h *Handler) respondSession(c *gin.Context, session *Session, message string) {
	if session.Token == nil {
		common.RespondCreated(c, "Account created. An administrator must activate it before you can sign in.",
			ToSessionResponse(session))
		return
	}
	common.RespondOK(c, message, ToSessionResponse(session))
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	session, err := h.service.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.respondSession(c, session, "Login successful.")
}

func (h *Handler) respondPending(c *gin.Context, reg *registration.PendingRegistration, message string) {
	common.RespondCreated(c, message,
		registration.ToPendingResponse(reg, reg.LastSentAt, h.cfg.OTPResendCooldown))
}

func (h *Handler) signupEmail(c *gin.Context) {
	var req SignupEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	reg, err := h.service.SignupWithEmail(c.Request.Context(), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.respondPending(c, reg, "Verification code sent to your email.")
}

func (h *Handler) signupPhone(c *gin.Context) {
	var req SignupPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	reg, err := h.service.SignupWithPhone(c.Request.Context(), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.respondPending(c, reg, "Verification code sent to your phone.")
}

func (h *Handler) verifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	session, err := h.service.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.respondSession(c, session, "Email verified. Welcome!")
}

func (h *Handler) verifyPhone(c *gin.Context) {
	var req VerifyPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	session, err := h.service.VerifyPhone(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.respondSession(c, session, "Phone verified. Welcome!")
}

func (h *Handler) resendCode(c *gin.Context) {
	var req ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	reg, err := h.service.ResendCode(c.Request.Context(), registration.Channel(req.Channel), req.Identifier)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.respondPending(c, reg, "A new verification code was sent.")
}

func (h *Handler) refreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	session, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Token refreshed successfully.", ToSessionResponse(session))
}

func (h *Handler) logout(c *gin.Context) {
	var req LogoutRequest
	// The body is optional.
	_ = c.ShouldBindJSON(&req)

	var claims *shared.Claims
	if v, ok := c.Get(common.TokenClaimsKey); ok {
		claims, _ = v.(*shared.Claims)
	}
	if err := h.service.Logout(c.Request.Context(), claims, req.RefreshToken); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Signed out.", nil)
}

func (h *Handler) checkEmail(c *gin.Context) {
	exists, err := h.service.CheckEmailExists(c.Request.Context(), c.Query("email"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", ExistsResponse{Exists: exists})
}

func (h *Handler) checkPhone(c *gin.Context) {
	exists, err := h.service.CheckPhoneExists(c.Request.Context(), c.Query("phone"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", ExistsResponse{Exists: exists})
}

func (h *Handler) googleLogin(c *gin.Context) {
	authURL, err := h.oauthService.GetGoogleLoginURL(c)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

func (h *Handler) googleCallback(c *gin.Context) {
	if errorParam := c.Query("error"); errorParam != "" {
		h.logger.Warn("Google OAuth callback error", zap.String("error", errorParam))
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Google login failed: "+c.Query("error_description")))
		return
	}
	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Missing authorization code or state from Google."))
		return
	}

	session, err := h.oauthService.HandleGoogleCallback(c, code, state)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	if h.cfg.OAuthFrontendRedirectURL != "" {
		target, err := frontendRedirectURL(h.cfg.OAuthFrontendRedirectURL, session.Token, session.LandingRoute)
		if err != nil {
			h.logger.Error("Invalid OAUTH_FRONTEND_REDIRECT_URL", zap.Error(err))
			common.RespondWithError(c, common.ErrInternalServer)
			return
		}
		c.Redirect(http.StatusFound, target)
		return
	}
	common.RespondOK(c, "Google login processed successfully.", ToSessionResponse(session))
}

func (h *Handler) firebaseSignIn(c *gin.Context) {
	var req FirebaseSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	session, err := h.oauthService.SignInWithFirebase(c.Request.Context(), req.IDToken)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Firebase sign-in successful.", ToSessionResponse(session))
}
