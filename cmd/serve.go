package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pranavgnn/thirdeye/internal/config"
	"github.com/pranavgnn/thirdeye/internal/model"
	"github.com/pranavgnn/thirdeye/internal/notify"
	"github.com/pranavgnn/thirdeye/internal/store"
	"github.com/pranavgnn/thirdeye/pkg/whatsapp"
)

var servePort int

// processor is the slice of the pipeline the HTTP layer needs.
type processor interface {
	Process(ctx context.Context, imageRef string, reporterIdentity *string) (*model.ProcessResult, error)
}

// webhookImageConcurrency bounds concurrent media downloads and pipeline
// runs triggered by one webhook delivery.
const webhookImageConcurrency = 4

// maxUploadBytes caps multipart uploads to the analyze endpoint.
const maxUploadBytes = 10 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook and API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		router := newRouter(ctx, cfg, env.Pipeline, env.Store, env.WhatsApp, env.Notifier)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP routes. baseCtx outlives individual requests and
// scopes the background pipeline runs spawned by webhook deliveries.
func newRouter(baseCtx context.Context, cfg *config.Config, proc processor, st store.Store, wa whatsapp.Client, notifier *notify.Notifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/webhook/whatsapp", func(w http.ResponseWriter, req *http.Request) {
		challenge, ok := whatsapp.VerifyToken(req.URL.Query(), cfg.WhatsApp.VerifyToken)
		if !ok {
			http.Error(w, "verification failed", http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, challenge)
	})

	r.Post("/webhook/whatsapp", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxUploadBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		if !whatsapp.ValidateSignature(body, req.Header.Get("X-Hub-Signature-256"), cfg.WhatsApp.AppSecret) {
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}

		images, err := whatsapp.ParseWebhook(body)
		if err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		// Meta expects a prompt 200; processing continues in the background.
		w.WriteHeader(http.StatusOK)

		if len(images) == 0 {
			return
		}

		go handleInboundImages(baseCtx, images, proc, wa, notifier)
	})

	r.Post("/api/v1/analyze", func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
			return
		}

		file, header, err := req.FormFile("image")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image file is required"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read image"})
			return
		}

		imageRef := fmt.Sprintf("data:%s;base64,%s",
			mediaTypeFor(header.Filename, data),
			base64.StdEncoding.EncodeToString(data))

		var reporter *string
		if v := req.FormValue("reporter"); v != "" {
			reporter = &v
		}

		result, err := proc.Process(req.Context(), imageRef, reporter)
		if err != nil {
			zap.L().Error("analyze request failed", zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "analysis failed"})
			return
		}

		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/api/v1/reports", func(w http.ResponseWriter, req *http.Request) {
		limit := 50
		if v := req.URL.Query().Get("limit"); v != "" {
			n := 0
			if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = n
		}

		reports, err := st.ListReports(req.Context(), limit)
		if err != nil {
			zap.L().Error("list reports failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list reports"})
			return
		}
		if reports == nil {
			reports = []model.StoredReport{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	})

	return r
}

// handleInboundImages downloads and analyzes each image from a webhook
// delivery and replies to the sender. Failures are per image.
func handleInboundImages(ctx context.Context, images []whatsapp.InboundImage, proc processor, wa whatsapp.Client, notifier *notify.Notifier) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(webhookImageConcurrency)

	for _, img := range images {
		g.Go(func() error {
			runID := uuid.NewString()
			logger := zap.L().With(
				zap.String("run_id", runID),
				zap.String("from", img.From),
				zap.String("media_id", img.MediaID))

			if wa == nil {
				logger.Warn("whatsapp client not configured, dropping inbound image")
				return nil
			}

			mediaURL, err := wa.MediaURL(ctx, img.MediaID)
			if err != nil {
				logger.Error("media url lookup failed", zap.Error(err))
				return nil
			}

			data, contentType, err := wa.DownloadMedia(ctx, mediaURL)
			if err != nil {
				logger.Error("media download failed", zap.Error(err))
				return nil
			}

			imageRef := fmt.Sprintf("data:%s;base64,%s",
				contentType, base64.StdEncoding.EncodeToString(data))

			reporter := img.From
			result, err := proc.Process(ctx, imageRef, &reporter)
			if err != nil {
				logger.Error("pipeline run failed", zap.Error(err))
				if notifier != nil {
					notifier.Send(ctx, img.From,
						"Sorry, this image could not be analyzed. Please try again with a clearer photo.")
				}
				return nil
			}

			logger.Info("inbound image processed",
				zap.Bool("violation", result.Report.Analysis.ViolationConfirmed()),
				zap.Bool("stored", result.Storage.Stored))

			if notifier != nil {
				notifier.Send(ctx, img.From, result.Narration)
			}
			return nil
		})
	}

	_ = g.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
