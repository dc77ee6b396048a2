package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renderfleet/renderfleet/pkg/account"
	"github.com/renderfleet/renderfleet/pkg/apiresponses"
	"github.com/renderfleet/renderfleet/pkg/audit"
	"github.com/renderfleet/renderfleet/pkg/auth"
	"github.com/renderfleet/renderfleet/pkg/config"
	"github.com/renderfleet/renderfleet/pkg/version"
)

// WebController serves the operator-facing HTML routes: login form, dashboard
// shell and logout. It lives at the engine root rather than under /api, so it
// is registered through Server.RegisterWeb instead of the controller list.
type WebController struct {
	log           *zap.SugaredLogger
	authenticator *auth.Authenticator
	audit         *audit.Service
	registry      *account.Registry
	sessionMaxAge int
	secureCookie  bool
}

func NewWebController(log *zap.SugaredLogger, authenticator *auth.Authenticator, auditService *audit.Service, registry *account.Registry, cfg config.Config) *WebController {
	return &WebController{
		log:           log,
		authenticator: authenticator,
		audit:         auditService,
		registry:      registry,
		sessionMaxAge: int(cfg.Session.GetTTL().Seconds()),
		secureCookie:  cfg.Server.TLSCertFile != "",
	}
}

func (w *WebController) register(engine *gin.Engine) {
	engine.GET("/", instrumentedHandler("/", w.home))
	engine.GET("/login", instrumentedHandler("/login", w.loginForm))
	engine.POST("/login", instrumentedHandler("/login", w.login))
	engine.GET("/logout", instrumentedHandler("/logout", w.logout))
	engine.POST("/logout", instrumentedHandler("/logout", w.logout))
}

// home renders the dashboard when the request carries a live session and the
// login form otherwise. Browsers landing here unauthenticated get a form, not
// a 401; the hard rejection is reserved for the JSON API.
func (w *WebController) home(c *gin.Context) {
	if token := auth.ExtractSessionToken(c.GetHeader("Cookie")); token != "" {
		if sess, err := w.authenticator.Verify(c.Request.Context(), token); err == nil {
			c.HTML(http.StatusOK, "dashboard.html", DashboardPageParams{
				Username:     sess.Username,
				Version:      version.Version,
				AccountCount: w.registry.Len(),
			})
			return
		}
	}
	c.HTML(http.StatusOK, "login.html", LoginPageParams{})
}

func (w *WebController) loginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", LoginPageParams{})
}

// loginRequest carries JSON credentials. No binding:"required" on purpose:
// empty credentials are a failed login (401), not a malformed request (400).
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// login accepts both the browser form and a JSON body (used by rfctl). Both
// set the session cookie; the JSON response additionally carries the token so
// CLI clients can store it without a cookie jar.
func (w *WebController) login(c *gin.Context) {
	ctx := c.Request.Context()
	wantsJSON := c.ContentType() == "application/json"

	var username, password string
	if wantsJSON {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apiresponses.RespondBadRequest(c, "request body must be a JSON object with username and password")
			return
		}
		username, password = req.Username, req.Password
	} else {
		username = c.PostForm("username")
		password = c.PostForm("password")
	}

	token, err := w.authenticator.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			w.audit.RecordLoginFailed(ctx, username, c.ClientIP(), c.Request.UserAgent())
			if wantsJSON {
				apiresponses.RespondUnauthorized(c)
				return
			}
			c.HTML(http.StatusUnauthorized, "login.html", LoginPageParams{Error: "Invalid username or password."})
			return
		}
		w.log.Errorw("Failed to create session", "error", err)
		if wantsJSON {
			apiresponses.RespondInternalErrorSimple(c, "failed to create session")
			return
		}
		c.HTML(http.StatusInternalServerError, "login.html", LoginPageParams{Error: "Login failed, please try again."})
		return
	}

	w.setSessionCookie(c, token, w.sessionMaxAge)
	w.audit.RecordLogin(ctx, username, c.ClientIP(), c.Request.UserAgent())

	if wantsJSON {
		apiresponses.RespondOK(c, gin.H{"token": token, "username": username})
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// logout invalidates the session server-side and expires the cookie. Safe to
// call without a session; the redirect to the login form happens either way.
func (w *WebController) logout(c *gin.Context) {
	ctx := c.Request.Context()
	if token := auth.ExtractSessionToken(c.GetHeader("Cookie")); token != "" {
		if sess, err := w.authenticator.Verify(ctx, token); err == nil {
			w.audit.RecordLogout(ctx, sess.Username, c.ClientIP())
		}
		if err := w.authenticator.Logout(ctx, token); err != nil {
			w.log.Errorw("Failed to invalidate session", "error", err)
		}
	}
	w.setSessionCookie(c, "", -1)
	c.Redirect(http.StatusFound, "/login")
}

func (w *WebController) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.SessionCookieName, token, maxAge, "/", "", w.secureCookie, true)
}
