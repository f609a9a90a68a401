package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/arena2api/arena2api/internal/profile"
	"github.com/arena2api/arena2api/internal/runtime/executor"
	"github.com/arena2api/arena2api/internal/translator/arena"
)

const maxListedModels = 20

// ChatCompletions serves POST /v1/chat/completions: select a profile,
// translate the request, call upstream, and translate the event stream
// back, streamed or buffered.
func (h *Handler) ChatCompletions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, errorBody("Invalid JSON", "invalid_request_error"))
		return
	}
	flavor := detectClientFlavor(c.GetHeader("User-Agent"))
	modelName := gjson.GetBytes(body, "model").String()
	stream := gjson.GetBytes(body, "stream").Bool()

	if len(gjson.GetBytes(body, "messages").Array()) == 0 {
		c.JSON(http.StatusBadRequest, errorBody("messages is required", "invalid_request_error"))
		return
	}

	selected, err := h.registry.Select(modelName)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(
			"Extension not connected. Please open arena.ai in Chrome with the extension installed.",
			"service_unavailable"))
		return
	}

	resolved, ok := selected.Catalog().Resolve(modelName)
	if !ok {
		names := h.registry.ModelNames()
		if len(names) > maxListedModels {
			names = names[:maxListedModels]
		}
		c.JSON(http.StatusNotFound, errorBody(
			fmt.Sprintf("Model '%s' not found. Available: %s", modelName, strings.Join(names, ", ")),
			"model_not_found"))
		return
	}

	prompt, err := arena.BuildConversationPrompt(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error(), "invalid_request_error"))
		return
	}

	creds := selected.RequestCredentials()
	params := arena.PayloadParams{
		ModelID:  resolved.UpstreamID,
		Prompt:   prompt,
		Modality: string(resolved.Modality),
		UserID:   creds.UserID,
	}
	tok, _, haveToken := h.registry.PopTokenFor(selected)
	switch {
	case !haveToken:
		log.Warnf("profile %s: no challenge token available, sending without one", selected.ID())
	case tok.Kind == profile.KindV2:
		params.V2Token = tok.Value
	default:
		params.V3Token = tok.Value
	}

	payload, evalID := arena.BuildEvaluationPayload(params)
	created := time.Now().Unix()
	log.Infof("create evaluation: model=%s profile=%s eval=%s stream=%v has_token=%v",
		resolved.PublicName, selected.ID(), evalID, stream, haveToken)

	if stream {
		h.streamCompletion(c, creds, payload, evalID, resolved.PublicName, created, flavor)
		return
	}
	h.bufferedCompletion(c, creds, payload, evalID, resolved.PublicName, created, flavor, prompt)
}

// streamCompletion relays the upstream exchange as SSE. Once headers are
// out, every failure becomes an in-band terminal chunk followed by the done
// marker, so the client always sees a valid terminating sequence.
func (h *Handler) streamCompletion(c *gin.Context, creds profile.Credentials, payload []byte, evalID, model string, created int64, flavor string) {
	st := arena.NewStreamState(evalID, model, created)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	chunks, err := h.executor.ExecuteStream(ctx, creds, payload, st)
	writeSSEHeaders(c)
	if err != nil {
		msg := "[Stream Error: " + err.Error() + "]"
		var statusErr executor.StatusError
		if errors.As(err, &statusErr) {
			log.Errorf("arena API error: %d %s", statusErr.Code, statusErr.Msg)
			msg = fmt.Sprintf("[Error: Arena API returned %d]", statusErr.Code)
		}
		writeSSE(c, decorateChunk(st.ErrorChunk(msg), flavor))
		writeDone(c)
		return
	}
	h.forwardStream(c, st, chunks, flavor)
}

// forwardStream pumps translated chunks to the client until the channel
// closes or the client disconnects. A disconnect cancels the upstream call
// through the request context.
func (h *Handler) forwardStream(c *gin.Context, st *arena.StreamState, chunks <-chan executor.StreamChunk, flavor string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return
	}
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case chunk, open := <-chunks:
			if !open {
				writeDone(c)
				flusher.Flush()
				return
			}
			if chunk.Err != nil {
				log.WithError(chunk.Err).Error("stream error")
				writeSSE(c, decorateChunk(st.ErrorChunk("[Stream Error: "+chunk.Err.Error()+"]"), flavor))
				writeDone(c)
				flusher.Flush()
				return
			}
			writeSSE(c, decorateChunk(string(chunk.Payload), flavor))
			flusher.Flush()
		}
	}
}

// bufferedCompletion aggregates the whole exchange into one response. No
// bytes have reached the client yet, so failures surface as plain HTTP
// errors here.
func (h *Handler) bufferedCompletion(c *gin.Context, creds profile.Credentials, payload []byte, evalID, model string, created int64, flavor, prompt string) {
	agg, err := h.executor.Execute(c.Request.Context(), creds, payload)
	if err != nil {
		var statusErr executor.StatusError
		if errors.As(err, &statusErr) {
			log.Errorf("arena API error: %d %s", statusErr.Code, statusErr.Msg)
			c.JSON(statusErr.Code, errorBody("Arena API error: "+statusErr.Msg, "upstream_error"))
			return
		}
		log.WithError(err).Error("buffered completion failed")
		c.JSON(http.StatusInternalServerError, errorBody(err.Error(), "api_error"))
		return
	}

	var fallback arena.Usage
	if h.store.Snapshot().UsageEstimateEnabled() && !agg.HasUsage() {
		fallback = arena.EstimateUsage(prompt, agg.Content())
	}
	resp := decorateResponse(agg.Response(evalID, model, created, fallback), flavor, agg.Content())
	c.Data(http.StatusOK, "application/json", []byte(resp))
}

func writeSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
}

func writeSSE(c *gin.Context, payload string) {
	_, _ = c.Writer.WriteString("data: " + payload + "\n\n")
}

func writeDone(c *gin.Context) {
	_, _ = c.Writer.WriteString("data: [DONE]\n\n")
}
