package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lumenreads/lumen/internal/groups"
	"github.com/lumenreads/lumen/internal/progress"
	"github.com/lumenreads/lumen/internal/rankings"
	"github.com/lumenreads/lumen/internal/users"
	"go.uber.org/zap"
)

const userIDContextKey = "lumen_user_id"

var (
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingUsersService    = errors.New("users service dependency required")
	errMissingProgressService = errors.New("progress service dependency required")
	errMissingGroupsService   = errors.New("groups service dependency required")
	errMissingRankingService  = errors.New("rankings service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// SessionTokenManager issues and validates session tokens for the API.
type SessionTokenManager interface {
	IssueToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP surface to the domain services.
type Dependencies struct {
	TokenManager     SessionTokenManager
	Users            *users.Service
	Progress         *progress.Service
	Groups           *groups.Service
	Rankings         *rankings.Service
	Realtime         *RealtimeDispatcher
	Logger           *zap.Logger
	Clock            func() time.Time
	LeaderboardLimit int
	RisingStarsTopN  int
}

// NewHTTPHandler builds the gin router for the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Progress == nil {
		return nil, errMissingProgressService
	}
	if deps.Groups == nil {
		return nil, errMissingGroupsService
	}
	if deps.Rankings == nil {
		return nil, errMissingRankingService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	leaderboardLimit := deps.LeaderboardLimit
	if leaderboardLimit <= 0 {
		leaderboardLimit = 10
	}
	risingStarsTopN := deps.RisingStarsTopN
	if risingStarsTopN <= 0 {
		risingStarsTopN = 3
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		tokens:           deps.TokenManager,
		users:            deps.Users,
		progress:         deps.Progress,
		groups:           deps.Groups,
		rankings:         deps.Rankings,
		realtime:         realtime,
		logger:           logger,
		clock:            clock,
		leaderboardLimit: leaderboardLimit,
		risingStarsTopN:  risingStarsTopN,
	}

	router.POST("/auth/signup", handler.handleSignup)
	router.POST("/auth/login", handler.handleLogin)
	// The stream endpoint validates its token from the query string, so it
	// sits outside the protected group.
	router.GET("/progress/stream", handler.handleProgressStream)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/catalog", handler.handleCatalog)
	protected.GET("/progress", handler.handleGetProgress)
	protected.POST("/progress/toggles", handler.handleApplyToggles)
	protected.GET("/progress/streak", handler.handleStreak)
	protected.GET("/leaderboard", handler.handleLeaderboard)
	protected.GET("/rising-stars", handler.handleRisingStars)
	protected.GET("/groups", handler.handleListGroups)
	protected.POST("/groups", handler.handleCreateGroup)
	protected.POST("/groups/join", handler.handleJoinGroup)
	protected.POST("/groups/leave", handler.handleLeaveGroup)
	protected.PATCH("/groups/:id", handler.handleRenameGroup)
	protected.GET("/profile", handler.handleGetProfile)
	protected.PUT("/profile", handler.handleUpdateProfile)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	tokens           SessionTokenManager
	users            *users.Service
	progress         *progress.Service
	groups           *groups.Service
	rankings         *rankings.Service
	realtime         *RealtimeDispatcher
	logger           *zap.Logger
	clock            func() time.Time
	leaderboardLimit int
	risingStarsTopN  int
}

type signupRequestPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var request signupRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), request.Email, request.Password, request.DisplayName)
	if errors.Is(err, users.ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		return
	}
	if errors.Is(err, users.ErrInvalidRegistration) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err != nil {
		h.logger.Error("signup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup_failed"})
		return
	}

	h.issueSession(c, user.ID, http.StatusCreated)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	h.issueSession(c, user.ID, http.StatusOK)
}

func (h *httpHandler) issueSession(c *gin.Context, userID string, status int) {
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(status, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		UserID:      userID,
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// serviceErrorCode extracts the stable operation code from progress service
// failures so clients can distinguish them.
func serviceErrorCode(err error) string {
	var svcErr *progress.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code()
	}
	return ""
}

func (h *httpHandler) respondServiceError(c *gin.Context, errorLabel string, err error) {
	payload := gin.H{"error": errorLabel}
	if code := serviceErrorCode(err); code != "" {
		payload["code"] = code
	}
	c.JSON(http.StatusInternalServerError, payload)
}
