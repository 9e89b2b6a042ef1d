package reports

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/southerniot/dashboard/internal/platform/auth"
	"github.com/southerniot/dashboard/internal/platform/voice"
)

// Dictation limits. The upper bound matches the transcription service's own
// cap; the lower bound filters out accidental taps on the record button.
const (
	maxAudioBytes = 25 * 1024 * 1024
	minAudioBytes = 1000
)

// reportFields are the report columns dictation can target.
var reportFields = map[string]bool{
	"specimen":                true,
	"gross_examination":       true,
	"microscopic_examination": true,
	"diagnosis":               true,
	"special_stains":          true,
	"immunohistochemistry":    true,
	"comments":                true,
}

type TranscriptionResponse struct {
	RawTranscription string  `json:"raw_transcription"`
	EnhancedText     *string `json:"enhanced_text,omitempty"`
	FieldType        string  `json:"field_type"`
	WasEnhanced      bool    `json:"was_enhanced"`
}

type EnhanceTextRequest struct {
	Text      string  `json:"text"`
	FieldType string  `json:"field_type"`
	Context   *string `json:"context"`
}

type EnhanceTextResponse struct {
	OriginalText string `json:"original_text"`
	EnhancedText string `json:"enhanced_text"`
	FieldType    string `json:"field_type"`
}

// VoiceHandler serves report dictation: audio transcription and AI cleanup
// of dictated text, both delegated to the configured voice service.
type VoiceHandler struct {
	client *voice.Client
}

func NewVoiceHandler(client *voice.Client) *VoiceHandler {
	return &VoiceHandler{client: client}
}

func (h *VoiceHandler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/voice", auth.RequireRealm(auth.RealmHisto))
	g.POST("/transcribe", h.Transcribe)
	g.POST("/enhance-text", h.EnhanceText)
	g.GET("/status", h.Status)
}

func (h *VoiceHandler) Transcribe(c echo.Context) error {
	if !h.client.Configured() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Voice transcription service is not configured")
	}

	fieldType := c.FormValue("field_type")
	if !reportFields[fieldType] {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid field_type: "+fieldType)
	}

	enhance := true
	if v := c.FormValue("enhance"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid enhance")
		}
		enhance = parsed
	}
	existingText := c.FormValue("existing_text")

	fh, err := c.FormFile("audio")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "audio file is required")
	}

	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		return echo.NewHTTPError(http.StatusBadRequest,
			"Unsupported audio format: "+contentType+". Supported: webm, mp3, wav, ogg, flac, m4a")
	}
	if fh.Size > maxAudioBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Audio file too large. Maximum size: 25MB")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read audio upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxAudioBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read audio upload")
	}
	if len(data) > maxAudioBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Audio file too large. Maximum size: 25MB")
	}
	if len(data) < minAudioBytes {
		return echo.NewHTTPError(http.StatusBadRequest,
			"Audio recording too short. Please record at least 1 second of audio.")
	}

	ctx := c.Request().Context()
	raw, err := h.client.Transcribe(ctx, fh.Filename, contentType, bytes.NewReader(data))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Transcription failed: "+err.Error())
	}
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "No speech detected in audio. Please try again.")
	}

	resp := TranscriptionResponse{
		RawTranscription: raw,
		FieldType:        fieldType,
	}
	if enhance {
		enhanced, err := h.client.EnhanceText(ctx, voice.EnhanceRequest{
			Text:      raw,
			FieldType: fieldType,
			Context:   existingText,
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Transcription failed: "+err.Error())
		}
		resp.EnhancedText = &enhanced
		resp.WasEnhanced = true
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *VoiceHandler) EnhanceText(c echo.Context) error {
	if !h.client.Configured() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI enhancement service is not configured")
	}

	var req EnhanceTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if !reportFields[req.FieldType] {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid field_type: "+req.FieldType)
	}

	er := voice.EnhanceRequest{Text: req.Text, FieldType: req.FieldType}
	if req.Context != nil {
		er.Context = *req.Context
	}

	enhanced, err := h.client.EnhanceText(c.Request().Context(), er)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Enhancement failed: "+err.Error())
	}

	return c.JSON(http.StatusOK, EnhanceTextResponse{
		OriginalText: req.Text,
		EnhancedText: enhanced,
		FieldType:    req.FieldType,
	})
}

func (h *VoiceHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"available": h.client.Configured()})
}
