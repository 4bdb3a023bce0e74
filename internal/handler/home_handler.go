package handler

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Welcome to {{.}} API</title>
    <style>
      body { font-family: Arial, sans-serif; background-color: #f4f4f4; color: #333; padding: 20px; }
      h1 { color: #2c3e50; }
      p { font-size: 1.2em; }
    </style>
  </head>
  <body>
    <h1>Welcome to {{.}} API</h1>
    <p>This is an API for managing your tasks.</p>
  </body>
</html>
`))

// HealthChecker はデータベース接続の疎通確認を行う。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Home はウェルカムページを返す。
// GET /
func Home(appName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := homeTemplate.Execute(w, appName); err != nil {
			slog.Error("failed to render home page", slog.String("error", err.Error()))
		}
	}
}

// Health はDB疎通を確認し、結果を返す。
// GET /health
func Health(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
