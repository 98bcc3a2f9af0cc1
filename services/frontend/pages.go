package frontend

import (
	"context"
	"html"
	"io"

	"github.com/a-h/templ"
)

// StatusPage is the minimal landing page served at the admin API root. The
// real dashboard UI lives in a separate frontend deployment; this page only
// points operators at the machine endpoints.
func StatusPage() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, statusPageHTML)
		return err
	})
}

// NotFoundPage renders a plain 404 body for unknown non-API paths.
func NotFoundPage(path string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w,
			`<!DOCTYPE html><html><head><link rel="stylesheet" href="/static/styles.css"></head>`+
				`<body><h1>Not found</h1><p class="muted">`+html.EscapeString(path)+`</p></body></html>`)
		return err
	})
}

const statusPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Loyalty Admin API</title>
  <link rel="stylesheet" href="/static/styles.css">
</head>
<body>
  <h1>Loyalty Admin API</h1>
  <p class="muted">Backend for the loyalty admin dashboard.</p>
  <ul class="endpoints">
    <li><code>GET /api/v1/loyalty/timeline</code> unified activity feed</li>
    <li><code>GET /healthz</code> liveness</li>
    <li><code>GET /readyz</code> readiness (Postgres)</li>
    <li><code>GET /metrics</code> Prometheus text metrics</li>
  </ul>
</body>
</html>
`
