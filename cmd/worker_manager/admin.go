package main

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
	"golang.org/x/sys/unix"

	"github.com/skyforge-astro/boom/internal/adminauth"
	"github.com/skyforge-astro/boom/internal/nlog"
)

// scaleUp spawns one more worker of kind, running the binary named kind
// with the args given in the request, per SPEC_FULL.md §6's POST
// /admin/scale.
func (m *manager) scaleUp(kind string, args []string) error {
	return m.spawn(kind, kind, args)
}

// scaleDown interrupts and drops the most recently spawned worker of kind.
func (m *manager) scaleDown(kind string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.children) - 1; i >= 0; i-- {
		if m.children[i].kind != kind {
			continue
		}
		c := m.children[i]
		if c.cmd.Process != nil {
			unix.Kill(c.cmd.Process.Pid, unix.SIGINT)
		}
		m.children = append(m.children[:i], m.children[i+1:]...)
		return true
	}
	return false
}

type loginRequest struct {
	Passphrase string `json:"passphrase"`
}

type scaleRequest struct {
	Kind  string `json:"kind"`  // "alert_worker" | "ml_worker" | "filter_worker"
	Delta int    `json:"delta"` // +1 spawns one more, -1 stops the newest one
	Args  []string `json:"args,omitempty"`
}

// adminServer wires worker_manager's /admin/login and /admin/scale routes
// behind adminauth; every other path gets 404. It is separate from the
// Prometheus
// listener so the mutating surface can be bound to a different address
// (typically loopback-only) in production.
func adminServer(auth *adminauth.Authenticator, m *manager) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case path == "/admin/login" && ctx.IsPost():
			handleLogin(ctx, auth)
		case path == "/admin/scale" && ctx.IsPost():
			handleScale(ctx, auth, m)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}

func handleLogin(ctx *fasthttp.RequestCtx, auth *adminauth.Authenticator) {
	var req loginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	token, err := auth.Login(req.Passphrase)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}
	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(map[string]string{"token": token})
}

func handleScale(ctx *fasthttp.RequestCtx, auth *adminauth.Authenticator, m *manager) {
	token := bearerToken(ctx)
	if token == "" || auth.Verify(token) != nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}
	var req scaleRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	switch {
	case req.Delta > 0:
		if err := m.scaleUp(req.Kind, req.Args); err != nil {
			nlog.Warningf("worker_manager: admin scale-up failed: %v", err)
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
	case req.Delta < 0:
		if !m.scaleDown(req.Kind) {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
}

func bearerToken(ctx *fasthttp.RequestCtx) string {
	h := string(ctx.Request.Header.Peek("Authorization"))
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}
