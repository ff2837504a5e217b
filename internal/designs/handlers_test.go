package designs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoscapeAi/internal/credits"
	"autoscapeAi/internal/design"
	"autoscapeAi/internal/events"
	"autoscapeAi/internal/imaging"
	"autoscapeAi/internal/media"
	"autoscapeAi/internal/pipeline"
	"autoscapeAi/internal/storage"
	"autoscapeAi/internal/video"
)

type fakeGenerator struct {
	result design.Generated
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, _ design.Request, onProgress pipeline.ProgressFunc) (design.Generated, error) {
	if f.err != nil {
		return design.Generated{}, f.err
	}
	if onProgress != nil {
		onProgress(design.Generated{RenderImages: f.result.RenderImages})
	}
	return f.result, nil
}

func generatedFixture() design.Generated {
	return design.Generated{
		RenderImages: []string{imaging.DataURI("image/png", []byte("render"))},
		PlanImage:    imaging.DataURI("image/png", []byte("plan")),
		Estimates:    design.CostEstimate{TotalCost: 9000, Currency: "USD"},
	}
}

func newHandler(t *testing.T, gen Generator) (Handler, *storage.InMemoryStore) {
	t.Helper()
	store := storage.NewInMemoryStore()
	return Handler{
		Store:    store,
		Ledger:   credits.NewLedger(store),
		Pipeline: gen,
		Broker:   events.NewBroker(),
		Uploader: media.Disabled(),
	}, store
}

func createBody(userID string) *bytes.Reader {
	payload, _ := json.Marshal(map[string]any{
		"image":   imaging.DataURI("image/jpeg", []byte("yard")),
		"style":   "modern",
		"budget":  "$10,000",
		"user_id": userID,
	})
	return bytes.NewReader(payload)
}

func waitForEvent(t *testing.T, ch chan events.Event, stage string) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Stage == stage {
				return evt
			}
		case <-deadline:
			t.Fatalf("no %q event arrived", stage)
		}
	}
}

func TestCreateRunsGenerationAndPublishesProgress(t *testing.T) {
	handler, store := newHandler(t, &fakeGenerator{result: generatedFixture()})
	ch := handler.Broker.Subscribe()
	defer handler.Broker.Unsubscribe(ch)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/designs", createBody(""))
	handler.Create(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.NotEmpty(t, accepted["id"])
	assert.Len(t, accepted["short_id"], 8)

	partial := waitForEvent(t, ch, events.StagePartial)
	assert.Equal(t, accepted["id"], partial.DesignID)
	require.NotNil(t, partial.Result)
	assert.True(t, partial.Result.Partial())

	done := waitForEvent(t, ch, events.StageDone)
	require.NotNil(t, done.Result)
	assert.Equal(t, 9000.0, done.Result.Estimates.TotalCost)

	saved, err := store.GetDesign(t.Context(), accepted["short_id"])
	require.NoError(t, err)
	assert.Equal(t, 9000.0, saved.Result.Estimates.TotalCost)
}

func TestCreateSettlesCreditOnSuccess(t *testing.T) {
	handler, _ := newHandler(t, &fakeGenerator{result: generatedFixture()})
	require.NoError(t, handler.Ledger.Grant(t.Context(), "user-1", 2, storage.TxPurchase, ""))
	ch := handler.Broker.Subscribe()
	defer handler.Broker.Unsubscribe(ch)

	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/designs", createBody("user-1")))
	require.Equal(t, http.StatusAccepted, rec.Code)

	waitForEvent(t, ch, events.StageDone)
	balance, err := handler.Ledger.Balance(t.Context(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
}

func TestCreateRefundsCreditOnFailure(t *testing.T) {
	handler, _ := newHandler(t, &fakeGenerator{err: errors.New("render failed")})
	require.NoError(t, handler.Ledger.Grant(t.Context(), "user-1", 2, storage.TxPurchase, ""))
	ch := handler.Broker.Subscribe()
	defer handler.Broker.Unsubscribe(ch)

	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/designs", createBody("user-1")))
	require.Equal(t, http.StatusAccepted, rec.Code)

	failed := waitForEvent(t, ch, events.StageFailed)
	assert.Contains(t, failed.Error, "render failed")

	balance, err := handler.Ledger.Balance(t.Context(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
}

func TestCreateInsufficientCredits(t *testing.T) {
	handler, _ := newHandler(t, &fakeGenerator{result: generatedFixture()})

	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/designs", createBody("broke-user")))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestCreateRejectsMissingImage(t *testing.T) {
	handler, _ := newHandler(t, &fakeGenerator{})

	payload, _ := json.Marshal(map[string]any{"style": "modern"})
	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/designs", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func routeCtx(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetAndDeleteByShortID(t *testing.T) {
	handler, store := newHandler(t, &fakeGenerator{})
	saved, err := store.SaveDesign(t.Context(), design.Record{Style: "cottage", Result: generatedFixture()})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.Get(rec, routeCtx(httptest.NewRequest(http.MethodGet, "/", nil), "shortID", saved.ShortID))
	require.Equal(t, http.StatusOK, rec.Code)
	var got design.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "cottage", got.Style)

	rec = httptest.NewRecorder()
	handler.Delete(rec, routeCtx(httptest.NewRequest(http.MethodDelete, "/", nil), "shortID", saved.ShortID))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.Get(rec, routeCtx(httptest.NewRequest(http.MethodGet, "/", nil), "shortID", saved.ShortID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGrantAndBalance(t *testing.T) {
	handler, _ := newHandler(t, &fakeGenerator{})

	payload, _ := json.Marshal(map[string]any{"user_id": "u", "amount": 5})
	rec := httptest.NewRecorder()
	handler.Grant(rec, httptest.NewRequest(http.MethodPost, "/api/credits", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.Balance(rec, routeCtx(httptest.NewRequest(http.MethodGet, "/", nil), "userID", "u"))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5.0, resp["credits"])
}

func TestGenerateVideoUsesStoredRender(t *testing.T) {
	videoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["original_image"])
		assert.NotEmpty(t, body["redesign_image"])
		fmt.Fprint(w, `{"status": "success", "video_url": "https://cdn.example.com/clip.mp4"}`)
	}))
	defer videoSrv.Close()

	handler, store := newHandler(t, &fakeGenerator{})
	handler.Video = video.NewClient(video.Config{BaseURL: videoSrv.URL})

	saved, err := store.SaveDesign(t.Context(), design.Record{Result: generatedFixture()})
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]string{
		"original_image": imaging.DataURI("image/jpeg", []byte("before")),
	})
	rec := httptest.NewRecorder()
	req := routeCtx(httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload)), "shortID", saved.ShortID)
	handler.GenerateVideo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result video.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "https://cdn.example.com/clip.mp4", result.VideoURL)
}

func TestGenerateVideoUnconfigured(t *testing.T) {
	handler, _ := newHandler(t, &fakeGenerator{})
	rec := httptest.NewRecorder()
	handler.GenerateVideo(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamEventsFiltersByDesignID(t *testing.T) {
	handler, _ := newHandler(t, &fakeGenerator{})

	srv := httptest.NewServer(http.HandlerFunc(handler.StreamEvents))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?design_id=wanted")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Events published before the subscriber registers are dropped, so keep
	// publishing an interleaved pair until the stream yields a line.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				handler.Broker.Publish(events.Event{DesignID: "other", Stage: events.StageDone})
				handler.Broker.Publish(events.Event{DesignID: "wanted", Stage: events.StageDone})
			}
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt events.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt))
		// With the "other" design published first on every tick, an
		// unfiltered stream would deliver it ahead of the wanted one.
		assert.Equal(t, "wanted", evt.DesignID)
		return
	}
	t.Fatalf("stream closed without delivering an event: %v", scanner.Err())
}
