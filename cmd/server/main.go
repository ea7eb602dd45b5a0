package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/api"
	"github.com/dhia123zeiri/crm-app1-sub001/internal/middleware"
	"github.com/dhia123zeiri/crm-app1-sub001/internal/utils"
)

func main() {
	addr := utils.SafeEnv("CRM_ADDR", ":8080")
	commit := os.Getenv("CRM_COMMIT")
	buildTime := os.Getenv("CRM_BUILD_TIME")

	mux := http.NewServeMux()
	api.NewRouter().Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		locale := middleware.LocaleFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "CRM portal API",
			"locale":     locale,
			"msg":        utils.T(locale, "health.ok"),
			"commit":     commit,
			"build_time": buildTime,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	// Frontend serving: static files when CRM_STATIC_DIR is set, dev proxy
	// when CRM_DEV_FRONTEND_URL points at the frontend dev server.
	if staticDir := os.Getenv("CRM_STATIC_DIR"); staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	} else if devURL := os.Getenv("CRM_DEV_FRONTEND_URL"); devURL != "" {
		if u, err := url.Parse(devURL); err == nil {
			rp := httputil.NewSingleHostReverseProxy(u)
			rp.ModifyResponse = func(res *http.Response) error {
				res.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
				return nil
			}
			mux.Handle("/", rp)
		} else {
			log.Printf("invalid CRM_DEV_FRONTEND_URL=%q: %v", devURL, err)
		}
	}

	handler := middleware.NoStore(
		middleware.SecureHeaders(
			middleware.CORS(
				middleware.LocaleMiddleware(
					middleware.WithAuth(mux)))))

	log.Printf("CRM portal listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
