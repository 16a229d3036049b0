package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/internal/ratelimit"
	"github.com/sells-group/prospector-cli/internal/store"
	"github.com/sells-group/prospector-cli/internal/verify"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discovery HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		driver, err := initDriver()
		if err != nil {
			return err
		}

		limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window())
		go limiter.Run(ctx)

		router := newRouter(ctx, st, driver, limiter)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(ctx context.Context, st store.Store, driver *verify.Driver, limiter *ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/discover", func(w http.ResponseWriter, req *http.Request) {
		if err := limiter.Check(clientKey(req)); err != nil {
			var limitErr *ratelimit.LimitError
			if errors.As(err, &limitErr) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(limitErr.RetryAfter.Seconds())))
			}
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
			return
		}

		var body struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Domain    string `json:"domain"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.FirstName == "" || body.LastName == "" || body.Domain == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "first_name, last_name, and domain are required"})
			return
		}

		run, err := st.CreateRun(req.Context(), model.Prospect{
			FirstName: body.FirstName,
			LastName:  body.LastName,
			Domain:    body.Domain,
		})
		if err != nil {
			zap.L().Error("create run failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create run"})
			return
		}

		// Discovery can poll the vendor for a long time; run it detached from
		// the request and let clients fetch the outcome from the run log.
		go func() {
			log := zap.L().With(zap.String("run_id", run.ID), zap.String("domain", body.Domain))
			if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusVerifying); err != nil {
				log.Warn("failed to update run status", zap.Error(err))
			}

			report, err := driver.VerifyEmails(ctx, run.ID, body.FirstName, body.LastName, body.Domain)
			if err != nil {
				log.Error("discovery failed", zap.Error(err))
				if failErr := st.FailRun(ctx, run.ID, err); failErr != nil {
					log.Warn("failed to record run failure", zap.Error(failErr))
				}
				return
			}
			if err := st.CompleteRun(ctx, run.ID, &model.RunResult{
				ValidEmails:      report.ValidEmails,
				TotalValid:       report.TotalValid,
				TotalGenerated:   report.TotalGenerated,
				BatchesProcessed: report.BatchesProcessed,
			}); err != nil {
				log.Warn("failed to record run result", zap.Error(err))
			}
			log.Info("discovery complete", zap.Int("valid", report.TotalValid))
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"run_id": run.ID,
		})
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	return r
}

// clientKey identifies the caller for rate limiting: the API key header when
// present, otherwise the remote address.
func clientKey(req *http.Request) string {
	if key := req.Header.Get("X-API-Key"); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}
