package pages

import (
	"context"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/residents/internal/core"
	"github.com/JonMunkholm/residents/internal/database"
)

// Portal renders the role dashboard: totals, update progress against the
// cutoff and a per-location breakdown.
func Portal(actor core.Actor, sum core.Summary, breakdown core.Breakdown) templ.Component {
	body := render(func(_ context.Context, p *printer) {
		p.f(`<h1>%s dashboard</h1>`, esc(RoleLabel(actor.Role)))
		if !actor.IsAdmin() {
			if len(actor.Secretariats) == 0 {
				p.f(`<p class="muted">No secretariats are assigned to your account yet.</p>`)
			} else {
				p.f(`<p class="muted">Secretariats:`)
				for _, s := range actor.Secretariats {
					p.f(` %s`, esc(s))
				}
				p.f(`</p>`)
			}
		}

		p.f(`<div class="cards">`)
		card(p, "Residents", sum.Total)
		card(p, "Households", sum.Households)
		card(p, "With UID", sum.WithUID)
		card(p, "With mobile", sum.WithMobile)
		card(p, "With health ID", sum.WithHealthID)
		card(p, "Updated", sum.Updated)
		card(p, "Pending", sum.Pending)
		p.f(`</div>`)

		if sum.Cutoff != nil {
			p.f(`<p class="muted">Counting updates made on or after %s.</p>`, esc(sum.Cutoff.Format(core.CutoffLayout)))
		}

		p.f(`<h2>By %s</h2>`, esc(breakdown.By))
		p.f(`<table><thead><tr><th>%s</th><th>Residents</th><th>With UID</th><th>With mobile</th><th>With health ID</th><th>Updated</th></tr></thead><tbody>`, esc(breakdown.By))
		for _, row := range breakdown.Rows {
			key := row.Key
			if key == "" {
				key = "(blank)"
			}
			p.f(`<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
				esc(key), row.Total, row.WithUID, row.WithMobile, row.WithHealthID, row.Updated)
		}
		if len(breakdown.Rows) == 0 {
			p.f(`<tr><td colspan="6" class="muted">No residents</td></tr>`)
		}
		p.f(`</tbody></table>`)
	})
	return Layout("Dashboard", &actor, body)
}

func card(p *printer, label string, n int64) {
	p.f(`<div class="card">%s<b>%d</b></div>`, esc(label), n)
}

// Residents renders a filtered page of residents with export controls.
func Residents(actor core.Actor, page core.ResidentPage, q core.ResidentQuery) templ.Component {
	filters := url.Values{}
	for k, v := range map[string]string{"mandal": q.Mandal, "secretariat": q.Secretariat, "phc": q.PHC, "q": q.Search} {
		if v != "" {
			filters.Set(k, v)
		}
	}

	body := render(func(_ context.Context, p *printer) {
		p.f(`<h1>Residents</h1>`)
		p.f(`<form method="get" action="/residents">`)
		p.f(`<input name="q" placeholder="Name, resident or household ID" value="%s"> `, esc(q.Search))
		p.f(`<input name="mandal" placeholder="Mandal" value="%s"> `, esc(q.Mandal))
		p.f(`<input name="secretariat" placeholder="Secretariat" value="%s"> `, esc(q.Secretariat))
		p.f(`<input name="phc" placeholder="PHC" value="%s"> `, esc(q.PHC))
		p.f(`<button type="submit">Filter</button></form>`)

		p.f(`<p>%d residents. Export: <a href="#" data-export="csv">CSV</a> · <a href="#" data-export="xlsx">Excel</a>`, page.Total)
		if actor.IsAdmin() {
			p.f(` <label><input type="checkbox" id="unmasked"> full UID</label>`)
		}
		p.f(` <progress id="export-progress" max="100" value="0" hidden></progress> <span id="export-status" class="muted"></span></p>`)

		p.f(`<table><thead><tr><th>Resident ID</th><th>Household</th><th>Name</th><th>Gender</th><th>UID</th><th>Mobile</th><th>Health ID</th><th>Mandal</th><th>Secretariat</th><th>PHC</th><th>Updated</th></tr></thead><tbody>`)
		for _, r := range page.Residents {
			p.f(`<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				esc(r.ResidentID), esc(r.HouseholdID), esc(r.Name), esc(r.Gender),
				esc(deref(r.UID)), esc(deref(r.MobileNumber)), esc(deref(r.HealthID)),
				esc(r.Mandal), esc(r.Secretariat), esc(r.PHC), esc(r.UpdatedAt.Format("2006-01-02")))
		}
		if len(page.Residents) == 0 {
			p.f(`<tr><td colspan="11" class="muted">No residents match</td></tr>`)
		}
		p.f(`</tbody></table>`)

		p.f(`<p>Page %d of %d`, page.Page, max(page.TotalPages, 1))
		if page.Page > 1 {
			p.f(` · <a href="%s">Previous</a>`, esc(pageLink(filters, page.Page-1)))
		}
		if page.Page < page.TotalPages {
			p.f(` · <a href="%s">Next</a>`, esc(pageLink(filters, page.Page+1)))
		}
		p.f(`</p>`)

		p.f(`<script>const exportFilters=%q;%s</script>`, filters.Encode(), exportScript)
	})
	return Layout("Residents", &actor, body)
}

func pageLink(filters url.Values, page int) string {
	v := url.Values{}
	for k, vs := range filters {
		v[k] = vs
	}
	v.Set("page", strconv.Itoa(page))
	return "/residents?" + v.Encode()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// exportScript starts a download with a fresh session id and follows its
// progress over SSE.
const exportScript = `
document.querySelectorAll('[data-export]').forEach(a => a.addEventListener('click', ev => {
  ev.preventDefault();
  const session = crypto.randomUUID();
  const params = new URLSearchParams(exportFilters);
  params.set('session', session);
  const full = document.getElementById('unmasked');
  if (full && full.checked) params.set('unmasked', '1');
  const bar = document.getElementById('export-progress');
  const status = document.getElementById('export-status');
  bar.hidden = false; bar.value = 0;
  const es = new EventSource('/api/export/progress/' + session + '/stream');
  es.addEventListener('progress', e => {
    const p = JSON.parse(e.data);
    bar.value = p.totalRecords ? Math.round(100 * p.processedRecords / p.totalRecords) : 0;
    status.textContent = p.message;
    if (p.status === 'completed') bar.value = 100;
  });
  es.addEventListener('complete', () => es.close());
  es.addEventListener('error', () => es.close());
  window.location = '/api/export/residents.' + a.dataset.export + '?' + params.toString();
}));`

// Imports renders the upload form and recent import runs.
func Imports(actor core.Actor, logs []database.ImportLog) templ.Component {
	body := render(func(_ context.Context, p *printer) {
		p.f(`<h1>Import residents</h1>`)
		p.f(`<form id="import-form" enctype="multipart/form-data">`)
		p.f(`<p><label>Health file (.csv, .xlsx)<br><input type="file" name="health" accept=".csv,.xlsx"></label></p>`)
		p.f(`<p><label>Demographic file (.csv, .xlsx)<br><input type="file" name="demographic" accept=".csv,.xlsx"></label></p>`)
		p.f(`<p><label>Mode <select name="mode"><option value="add">Add new residents</option><option value="update">Update existing</option><option value="upsert">Add and update</option></select></label></p>`)
		p.f(`<p><button type="submit">Import</button> <progress id="import-progress" max="100" value="0" hidden></progress> <span id="import-status" class="muted"></span></p></form>`)
		p.f(`<pre id="import-result"></pre>`)

		p.f(`<h2>Recent imports</h2><table><thead><tr><th>Started</th><th>Mode</th><th>Status</th><th>Files</th><th>Total</th><th>Inserted</th><th>Updated</th><th>Skipped</th><th>Failed</th></tr></thead><tbody>`)
		for _, l := range logs {
			p.f(`<tr><td>%s</td><td>%s</td><td>%s</td><td>%s %s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
				esc(l.StartedAt.Format("2006-01-02 15:04")), esc(l.Mode), esc(l.Status),
				esc(l.HealthFile), esc(l.DemographicFile),
				l.TotalRecords, l.Inserted, l.Updated, l.Skipped, l.Failed)
		}
		if len(logs) == 0 {
			p.f(`<tr><td colspan="9" class="muted">No imports yet</td></tr>`)
		}
		p.f(`</tbody></table><script>%s</script>`, importScript)
	})
	return Layout("Imports", &actor, body)
}

const importScript = `
document.getElementById('import-form').addEventListener('submit', async ev => {
  ev.preventDefault();
  const data = new FormData(ev.target);
  const session = crypto.randomUUID();
  data.set('session', session);
  const bar = document.getElementById('import-progress');
  const status = document.getElementById('import-status');
  bar.hidden = false; bar.value = 0;
  const es = new EventSource('/api/export/progress/' + session + '/stream');
  es.addEventListener('progress', e => {
    const p = JSON.parse(e.data);
    bar.value = p.totalRecords ? Math.round(100 * p.processedRecords / p.totalRecords) : 0;
    status.textContent = p.message;
  });
  es.addEventListener('complete', () => es.close());
  const res = await fetch('/api/import', {method: 'POST', body: data});
  es.close();
  bar.value = 100;
  document.getElementById('import-result').textContent = JSON.stringify(await res.json(), null, 2);
});`

// Users renders the account list.
func Users(actor core.Actor, users []core.UserView) templ.Component {
	body := render(func(_ context.Context, p *printer) {
		p.f(`<h1>Users</h1><p class="muted">Accounts are managed through the /api/users endpoints and the residentadm tool.</p>`)
		p.f(`<table><thead><tr><th>Username</th><th>Name</th><th>Role</th><th>Secretariats</th><th>Active</th><th>Created</th></tr></thead><tbody>`)
		for _, u := range users {
			active := "yes"
			if !u.Active {
				active = "no"
			}
			p.f(`<tr><td>%s</td><td>%s</td><td>%s</td><td>`, esc(u.Username), esc(u.FullName), esc(RoleLabel(u.Role)))
			for i, s := range u.Secretariats {
				if i > 0 {
					p.f(`, `)
				}
				p.f(`%s`, esc(s))
			}
			p.f(`</td><td>%s</td><td>%s</td></tr>`, active, esc(u.CreatedAt.Format("2006-01-02")))
		}
		p.f(`</tbody></table>`)
	})
	return Layout("Users", &actor, body)
}
