package handlers

import (
	"html/template"
	"io/fs"
	"log"
	"net/http"

	"github.com/DrorShokoPeer/ttydx/internal/config"
	"github.com/DrorShokoPeer/ttydx/internal/middleware"
)

// Pages holds login.html and terminal.html. Set from main.go during init.
var Pages fs.FS

type terminalPage struct {
	Username       string
	Role           string
	TerminalPrefix string
}

func servePage(w http.ResponseWriter, name string, data interface{}) {
	tmpl, err := template.ParseFS(Pages, name)
	if err != nil {
		log.Printf("[pages] parse %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := tmpl.Execute(w, data); err != nil {
		log.Printf("[pages] render %s: %v", name, err)
	}
}

// Index sends authenticated browsers to the terminal and everyone else to
// the login form.
func Index(w http.ResponseWriter, r *http.Request) {
	if _, ok := Authority.Validate(middleware.SessionToken(r)); ok {
		http.Redirect(w, r, loginRedirect, http.StatusFound)
		return
	}
	servePage(w, "login.html", nil)
}

// Terminal renders the protected view. It must sit behind
// middleware.RequirePage.
func Terminal(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)
	if sess == nil {
		http.Redirect(w, r, logoutRedirect, http.StatusFound)
		return
	}
	servePage(w, "terminal.html", terminalPage{
		Username:       sess.Username,
		Role:           string(sess.Role),
		TerminalPrefix: config.Cfg.TerminalPrefix,
	})
}
