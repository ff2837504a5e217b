// Package designs exposes the HTTP endpoints for design generation,
// retrieval, sharing, and the before/after video feature.
package designs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"autoscapeAi/internal/catalog"
	"autoscapeAi/internal/credits"
	"autoscapeAi/internal/design"
	"autoscapeAi/internal/events"
	"autoscapeAi/internal/imaging"
	"autoscapeAi/internal/media"
	"autoscapeAi/internal/pipeline"
	"autoscapeAi/internal/storage"
	"autoscapeAi/internal/video"
)

const maxStyleImages = 4

// Generator runs the design pipeline. Satisfied by *pipeline.Pipeline.
type Generator interface {
	Generate(ctx context.Context, req design.Request, onProgress pipeline.ProgressFunc) (design.Generated, error)
}

// Handler bundles dependencies for design endpoints.
type Handler struct {
	Store    storage.Store
	Ledger   *credits.Ledger
	Pipeline Generator
	Broker   *events.Broker
	Uploader media.Uploader
	Video    video.Generator
	Catalog  catalog.Enhancer

	// RunTimeout bounds the detached generation goroutine. The pipeline
	// applies its own overall deadline inside this one.
	RunTimeout func(ctx context.Context) (context.Context, context.CancelFunc)
}

// createRequest describes the JSON payload for starting a generation run.
// Multipart form submissions map onto the same fields.
type createRequest struct {
	Image       string   `json:"image"`
	StyleImages []string `json:"style_images,omitempty"`
	Preferences string   `json:"preferences"`
	Style       string   `json:"style"`
	Budget      string   `json:"budget"`
	Region      string   `json:"region"`
	UserID      string   `json:"user_id"`
	SkipCatalog bool     `json:"skip_catalog"`
	RequestID   string   `json:"request_id"`
}

// Create handles POST /api/designs. It reserves a credit, starts the
// pipeline in the background, and returns the record's identifiers
// immediately; progress arrives over the event stream.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, dreq, err := h.parseCreate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reservationID := ""
	if req.UserID != "" {
		reservationID, err = h.Ledger.Reserve(r.Context(), req.UserID, req.RequestID)
		if err != nil {
			if errors.Is(err, storage.ErrInsufficientCredits) {
				http.Error(w, "insufficient credits", http.StatusPaymentRequired)
				return
			}
			http.Error(w, "could not reserve credit", http.StatusInternalServerError)
			return
		}
	}

	yardURL := h.persistYardImage(r.Context(), dreq)

	record, err := h.Store.SaveDesign(r.Context(), design.Record{
		OwnerID:      req.UserID,
		YardImageURL: yardURL,
		Style:        req.Style,
	})
	if err != nil {
		if reservationID != "" {
			if rerr := h.Ledger.Refund(r.Context(), req.UserID, reservationID); rerr != nil {
				log.Printf("refund reservation %s: %v", reservationID, rerr)
			}
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	go h.run(record, dreq, reservationID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"id":       record.ID,
		"short_id": record.ShortID,
	})
}

// run executes the pipeline detached from the request and settles the
// credit reservation from its outcome.
func (h Handler) run(record design.Record, dreq design.Request, reservationID string) {
	ctx := context.Background()
	if h.RunTimeout != nil {
		var cancel context.CancelFunc
		ctx, cancel = h.RunTimeout(ctx)
		defer cancel()
	}

	result, err := h.Pipeline.Generate(ctx, dreq, func(snapshot design.Generated) {
		if !snapshot.Partial() {
			return
		}
		h.Broker.Publish(events.Event{
			DesignID: record.ID,
			OwnerID:  record.OwnerID,
			Stage:    events.StagePartial,
			Result:   &snapshot,
		})
	})
	if err != nil {
		log.Printf("design %s failed: %v", record.ID, err)
		if reservationID != "" {
			if rerr := h.Ledger.Refund(ctx, record.OwnerID, reservationID); rerr != nil {
				log.Printf("refund reservation %s: %v", reservationID, rerr)
			}
		}
		h.Broker.Publish(events.Event{
			DesignID: record.ID,
			OwnerID:  record.OwnerID,
			Stage:    events.StageFailed,
			Error:    err.Error(),
		})
		return
	}

	record.Result = result
	if _, err := h.Store.SaveDesign(ctx, record); err != nil {
		log.Printf("save design %s: %v", record.ID, err)
	}
	if reservationID != "" {
		if err := h.Ledger.Complete(ctx, reservationID); err != nil {
			log.Printf("complete reservation %s: %v", reservationID, err)
		}
	}
	h.Broker.Publish(events.Event{
		DesignID: record.ID,
		OwnerID:  record.OwnerID,
		Stage:    events.StageDone,
		Result:   &result,
	})
}

// Get handles GET /api/designs/{shortID}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortID")
	record, err := h.Store.GetDesign(r.Context(), shortID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "design not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
}

// List handles GET /api/designs.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListDesigns(r.Context(), r.URL.Query().Get("owner_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

// Delete handles DELETE /api/designs/{shortID}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	record, err := h.Store.GetDesign(r.Context(), chi.URLParam(r, "shortID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "design not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.Store.DeleteDesign(r.Context(), record.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "design not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type videoRequest struct {
	OriginalImage string `json:"original_image"`
	RedesignImage string `json:"redesign_image"`
}

// GenerateVideo handles POST /api/designs/{shortID}/video. The redesign
// image defaults to the stored render when the body omits it.
func (h Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	if h.Video == nil || !h.Video.Enabled() {
		http.Error(w, "video generation not configured", http.StatusServiceUnavailable)
		return
	}

	var req videoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	shortID := chi.URLParam(r, "shortID")
	record, err := h.Store.GetDesign(r.Context(), shortID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "design not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if req.RedesignImage == "" {
		if len(record.Result.RenderImages) == 0 {
			http.Error(w, "design has no render image", http.StatusConflict)
			return
		}
		req.RedesignImage = record.Result.RenderImages[0]
	}
	if req.OriginalImage == "" && record.YardImageURL != "" {
		data, mime, err := imaging.FetchRemote(r.Context(), nil, record.YardImageURL)
		if err != nil {
			log.Printf("fetch yard image for %s: %v", record.ID, err)
		} else {
			req.OriginalImage = imaging.DataURI(mime, data)
		}
	}
	if req.OriginalImage == "" {
		http.Error(w, "original image is required", http.StatusBadRequest)
		return
	}

	result, err := h.Video.Transform(r.Context(), req.OriginalImage, req.RedesignImage)
	if err != nil {
		log.Printf("video for design %s: %v", record.ID, err)
		http.Error(w, "video generation failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// Balance handles GET /api/credits/{userID}.
func (h Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	balance, err := h.Ledger.Balance(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"user_id": userID, "credits": balance})
}

type grantRequest struct {
	UserID         string `json:"user_id"`
	Amount         int    `json:"amount"`
	Type           string `json:"type"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Grant handles POST /api/credits. Purchases and promotional grants share
// the endpoint; payment verification happens upstream.
func (h Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Amount <= 0 {
		http.Error(w, "user_id and a positive amount are required", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = storage.TxPurchase
	}

	if err := h.Ledger.Grant(r.Context(), req.UserID, req.Amount, req.Type, req.IdempotencyKey); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	balance, err := h.Ledger.Balance(r.Context(), req.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"user_id": req.UserID, "credits": balance})
}

// CatalogHealth handles GET /api/catalog/health.
func (h Handler) CatalogHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.Catalog == nil || !h.Catalog.Enabled() {
		_ = json.NewEncoder(w).Encode(map[string]any{"configured": false, "healthy": false})
		return
	}
	err := h.Catalog.Health(r.Context())
	_ = json.NewEncoder(w).Encode(map[string]any{"configured": true, "healthy": err == nil})
}

// StreamEvents handles GET /api/events as a server-sent event stream.
// Callers scope the stream with ?design_id= and/or ?owner_id=; events from
// other designs are dropped before they reach the wire.
func (h Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	designID := strings.TrimSpace(r.URL.Query().Get("design_id"))
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch := h.Broker.Subscribe()
	defer h.Broker.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if designID != "" && evt.DesignID != designID {
				continue
			}
			if ownerID != "" && evt.OwnerID != ownerID {
				continue
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				log.Printf("encode event: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (h Handler) parseCreate(r *http.Request) (createRequest, design.Request, error) {
	var req createRequest
	var dreq design.Request

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parsed, err := h.parseMultipart(r)
		if err != nil {
			return createRequest{}, design.Request{}, err
		}
		req = parsed.meta
		dreq = parsed.request
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return createRequest{}, design.Request{}, fmt.Errorf("invalid request body")
		}
		data, mime, err := imaging.DecodeDataURI(strings.TrimSpace(req.Image))
		if err != nil {
			return createRequest{}, design.Request{}, fmt.Errorf("invalid yard image: %w", err)
		}
		dreq.YardImage = data
		dreq.YardMIME = mime
		for i, uri := range req.StyleImages {
			if i >= maxStyleImages {
				break
			}
			data, mime, err := imaging.DecodeDataURI(strings.TrimSpace(uri))
			if err != nil {
				return createRequest{}, design.Request{}, fmt.Errorf("invalid style image: %w", err)
			}
			dreq.StyleImages = append(dreq.StyleImages, design.StyleImage{Data: data, MIME: mime})
		}
	}

	dreq.Preferences = strings.TrimSpace(req.Preferences)
	dreq.Style = strings.TrimSpace(req.Style)
	dreq.Budget = strings.TrimSpace(req.Budget)
	dreq.Region = strings.TrimSpace(req.Region)
	dreq.SkipCatalog = req.SkipCatalog
	req.UserID = strings.TrimSpace(req.UserID)

	if len(dreq.YardImage) == 0 {
		return createRequest{}, design.Request{}, fmt.Errorf("yard photo is required")
	}
	if len(dreq.YardImage) > imaging.MaxImageBytes {
		return createRequest{}, design.Request{}, fmt.Errorf("yard photo is too large (max %d MB)", imaging.MaxImageBytes/(1024*1024))
	}

	return req, dreq, nil
}

type parsedMultipart struct {
	meta    createRequest
	request design.Request
}

func (h Handler) parseMultipart(r *http.Request) (parsedMultipart, error) {
	const maxFormMemory = imaging.MaxImageBytes + (1 << 20)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return parsedMultipart{}, fmt.Errorf("invalid multipart payload: %w", err)
	}

	out := parsedMultipart{
		meta: createRequest{
			Preferences: r.FormValue("preferences"),
			Style:       r.FormValue("style"),
			Budget:      r.FormValue("budget"),
			Region:      r.FormValue("region"),
			UserID:      r.FormValue("user_id"),
			RequestID:   r.FormValue("request_id"),
			SkipCatalog: r.FormValue("skip_catalog") == "true",
		},
	}

	data, mime, err := readFormImage(r, "photo")
	if err != nil {
		return parsedMultipart{}, err
	}
	out.request.YardImage = data
	out.request.YardMIME = mime

	if r.MultipartForm != nil {
		for i, header := range r.MultipartForm.File["style_images"] {
			if i >= maxStyleImages {
				break
			}
			file, err := header.Open()
			if err != nil {
				return parsedMultipart{}, fmt.Errorf("read style image: %w", err)
			}
			data, err := io.ReadAll(io.LimitReader(file, imaging.MaxImageBytes+1))
			file.Close()
			if err != nil {
				return parsedMultipart{}, fmt.Errorf("read style image: %w", err)
			}
			if len(data) == 0 || len(data) > imaging.MaxImageBytes {
				continue
			}
			out.request.StyleImages = append(out.request.StyleImages, design.StyleImage{
				Data: data,
				MIME: imaging.DetectMIME(data, header.Header.Get("Content-Type")),
			})
		}
	}

	return out, nil
}

func readFormImage(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("could not read image: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, imaging.MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > imaging.MaxImageBytes {
		return nil, "", fmt.Errorf("image is too large (max %d MB)", imaging.MaxImageBytes/(1024*1024))
	}
	if len(data) == 0 {
		return nil, "", nil
	}

	return data, imaging.DetectMIME(data, header.Header.Get("Content-Type")), nil
}

// persistYardImage uploads the input photo for later sharing and video
// generation. Failure is tolerated; the pipeline holds the bytes in memory.
func (h Handler) persistYardImage(ctx context.Context, dreq design.Request) string {
	if h.Uploader == nil {
		return ""
	}
	result, err := h.Uploader.Upload(ctx, media.UploadInput{
		Filename:    "yard" + imaging.ExtensionFor(dreq.YardMIME),
		ContentType: dreq.YardMIME,
		Body:        bytes.NewReader(dreq.YardImage),
		Size:        int64(len(dreq.YardImage)),
	})
	if err != nil {
		if !errors.Is(err, media.ErrUploaderDisabled) {
			log.Printf("upload yard image: %v", err)
		}
		return ""
	}
	return result.URL
}
