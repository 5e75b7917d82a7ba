package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"

	"github.com/DrorShokoPeer/ttydx/internal/auth"
	"github.com/DrorShokoPeer/ttydx/internal/config"
	"github.com/DrorShokoPeer/ttydx/internal/middleware"
)

// Authority is set from main.go during init.
var Authority *auth.Authority

const (
	loginRedirect  = "/terminal"
	logoutRedirect = "/"
)

func secureCookie(r *http.Request) bool {
	return r.TLS != nil || config.Cfg.SecureCookies
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sess *auth.AuthSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secureCookie(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(Authority.Sessions().TTL().Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secureCookie(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// decodeLogin accepts a JSON body or a form post.
func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var body loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return body, err
		}
		body.Username = r.PostForm.Get("username")
		body.Password = r.PostForm.Get("password")
		return body, nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body)
	return body, err
}

func Login(w http.ResponseWriter, r *http.Request) {
	body, err := decodeLogin(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, err := Authority.Login(body.Username, body.Password, middleware.ClientKey(r))
	if err != nil {
		if rl, ok := auth.IsRateLimited(err); ok {
			writeRateLimited(w, rl.RetryAfter, "Too many login attempts, please try again later")
			return
		}
		switch {
		case errors.Is(err, auth.ErrBadRequest):
			writeError(w, http.StatusBadRequest, "Username and password required")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			log.Printf("[auth] login error: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to create session")
		}
		return
	}

	setSessionCookie(w, r, sess)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"redirect": loginRedirect,
		"user":     auth.PrincipalInfo{Username: sess.Username, Role: sess.Role},
	})
}

func Logout(w http.ResponseWriter, r *http.Request) {
	Authority.Logout(middleware.SessionToken(r), middleware.ClientKey(r))
	clearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"redirect": logoutRedirect,
	})
}

func AuthStatus(w http.ResponseWriter, r *http.Request) {
	st := Authority.Status(middleware.SessionToken(r))
	resp := map[string]interface{}{"authenticated": st.Authenticated}
	if st.Principal != nil {
		resp["user"] = st.Principal
	}
	writeJSON(w, http.StatusOK, resp)
}

// Verify answers a reverse proxy's sub-request for the terminal backend.
// It must sit behind middleware.RequireAuth.
func Verify(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	w.Header().Set("X-Auth-User", sess.Username)
	w.Header().Set("X-Auth-Role", string(sess.Role))
	w.WriteHeader(http.StatusNoContent)
}

func AdminPing(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"user":   auth.PrincipalInfo{Username: sess.Username, Role: sess.Role},
	})
}
