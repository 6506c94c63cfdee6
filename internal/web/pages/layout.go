// Package pages renders the server-side portal pages as templ components.
package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/residents/internal/core"
)

// printer writes formatted HTML and keeps the first error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) f(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// esc escapes text for HTML element content and quoted attributes.
func esc(s string) string {
	return templ.EscapeString(s)
}

func render(fn func(ctx context.Context, p *printer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		fn(ctx, p)
		return p.err
	})
}

const styles = `body{font-family:system-ui,sans-serif;margin:0;color:#1f2937;background:#f9fafb}
header{background:#1e3a8a;color:#fff;padding:.75rem 1.5rem;display:flex;gap:1.5rem;align-items:center}
header a{color:#fff;text-decoration:none}header form{margin-left:auto}
main{padding:1.5rem;max-width:72rem;margin:auto}
table{border-collapse:collapse;width:100%;background:#fff}th,td{border:1px solid #e5e7eb;padding:.4rem .6rem;text-align:left;font-size:.9rem}
.cards{display:grid;grid-template-columns:repeat(auto-fill,minmax(10rem,1fr));gap:1rem;margin-bottom:1.5rem}
.card{background:#fff;border:1px solid #e5e7eb;border-radius:.5rem;padding:1rem}.card b{display:block;font-size:1.5rem}
.alert{background:#fee2e2;border:1px solid #fca5a5;padding:.75rem;border-radius:.5rem;margin-bottom:1rem}
.muted{color:#6b7280;font-size:.85rem}progress{width:20rem}`

// Layout wraps body in the portal chrome. actor may be nil on the login page.
func Layout(title string, actor *core.Actor, body templ.Component) templ.Component {
	return render(func(ctx context.Context, p *printer) {
		p.f(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.f(`<title>%s · Resident Registry</title><style>%s</style></head><body>`, esc(title), styles)
		if actor != nil {
			p.f(`<header><strong>Resident Registry</strong><a href="/">Dashboard</a><a href="/residents">Residents</a>`)
			if actor.IsAdmin() {
				p.f(`<a href="/imports">Imports</a><a href="/users">Users</a>`)
			}
			p.f(`<form method="post" action="/logout"><span>%s (%s)</span> <button type="submit">Sign out</button></form></header>`,
				esc(displayName(*actor)), esc(RoleLabel(actor.Role)))
		}
		p.f(`<main>`)
		if p.err == nil {
			p.err = body.Render(ctx, p.w)
		}
		p.f(`</main></body></html>`)
	})
}

func displayName(a core.Actor) string {
	if a.FullName != "" {
		return a.FullName
	}
	return a.Username
}

// RoleLabel returns the display name of a role.
func RoleLabel(role string) string {
	switch role {
	case core.RoleAdmin:
		return "Administrator"
	case core.RoleFieldOfficer:
		return "Field Officer"
	case core.RolePanchayatSecretary:
		return "Panchayat Secretary"
	}
	return role
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return render(func(_ context.Context, p *printer) {
		p.f(`<div class="alert" role="alert"><strong>%s</strong>`, esc(message))
		if action != "" {
			p.f(` %s`, esc(action))
		}
		if code != "" {
			p.f(` <span class="muted">(Code: %s)</span>`, esc(code))
		}
		p.f(`</div>`)
	})
}

// Login renders the sign-in form.
func Login(errMsg, username string) templ.Component {
	body := render(func(ctx context.Context, p *printer) {
		p.f(`<h1>Sign in</h1>`)
		if errMsg != "" && p.err == nil {
			p.err = ErrorAlert(errMsg, "", "").Render(ctx, p.w)
		}
		p.f(`<form method="post" action="/login">`)
		p.f(`<p><label>Username<br><input name="username" value="%s" autocomplete="username" required></label></p>`, esc(username))
		p.f(`<p><label>Password<br><input type="password" name="password" autocomplete="current-password" required></label></p>`)
		p.f(`<p><button type="submit">Sign in</button></p></form>`)
	})
	return Layout("Sign in", nil, body)
}
