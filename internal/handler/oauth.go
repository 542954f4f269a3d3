package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/utils"
)

const stateCookie = "oauth_state"

// RequesterResolver maps an external identity to its profile.
type RequesterResolver interface {
	ResolveRequester(ctx context.Context, id model.Identity) (model.User, error)
}

// OAuthHandler signs users in with Google and issues the same token pair
// as credential login.
type OAuthHandler struct {
	oauth       *oauth2.Config
	userInfoURL string
	client      *http.Client // used for the token exchange and userinfo
	resolver    RequesterResolver
	auth        *AuthHandler
	log         *zap.Logger
}

func NewOAuthHandler(oauth *oauth2.Config, userInfoURL string, client *http.Client, resolver RequesterResolver, auth *AuthHandler, log *zap.Logger) *OAuthHandler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OAuthHandler{
		oauth:       oauth,
		userInfoURL: userInfoURL,
		client:      client,
		resolver:    resolver,
		auth:        auth,
		log:         log.Named("oauth"),
	}
}

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Login redirects to Google's consent page with a random state that is
// echoed back in a short-lived cookie.
func (h *OAuthHandler) Login(c echo.Context) error {
	state, err := utils.RandomState()
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/v1/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// Callback exchanges the code, reads the userinfo endpoint and returns a
// token pair for the resolved profile.
func (h *OAuthHandler) Callback(c echo.Context) error {
	ck, err := c.Cookie(stateCookie)
	if err != nil || ck.Value == "" || ck.Value != c.QueryParam("state") {
		return badRequest(c, "invalid oauth state")
	}
	c.SetCookie(&http.Cookie{Name: stateCookie, Path: "/v1/auth/google", MaxAge: -1})
	code := c.QueryParam("code")
	if code == "" {
		return badRequest(c, "missing code")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client)

	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("code exchange failed", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google sign-in failed", "code": "unauthorized"})
	}
	gu, err := h.fetchUser(ctx, tok)
	if err != nil {
		h.log.Warn("userinfo failed", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google sign-in failed", "code": "unauthorized"})
	}
	if gu.Sub == "" || !gu.EmailVerified {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "google account email not verified", "code": "unauthorized"})
	}

	u, err := h.resolver.ResolveRequester(ctx, model.Identity{Subject: "google:" + gu.Sub, Email: gu.Email, Name: gu.Name})
	if err != nil {
		return writeError(c, h.log, err)
	}
	resp, err := h.auth.issuePair(ctx, u)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *OAuthHandler) fetchUser(ctx context.Context, tok *oauth2.Token) (googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return googleUser{}, err
	}
	res, err := h.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return googleUser{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return googleUser{}, fmt.Errorf("userinfo status %d", res.StatusCode)
	}
	var gu googleUser
	if err := json.NewDecoder(res.Body).Decode(&gu); err != nil {
		return googleUser{}, fmt.Errorf("decode userinfo: %w", err)
	}
	return gu, nil
}
