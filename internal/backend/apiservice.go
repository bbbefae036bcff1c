package backend

import (
	"log/slog"
	"net/http"

	"github.com/jo-hoe/emotionmirror/internal/backend/database"
	"github.com/jo-hoe/emotionmirror/internal/common"
	"github.com/jo-hoe/emotionmirror/internal/core"
	"github.com/labstack/echo/v4"
)

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
}

// JourneyEntry is the wire form of a reflection. imageUrl is a base64 data URL.
type JourneyEntry struct {
	ID          string `json:"id"`
	Emotion     string `json:"emotion"`
	Affirmation string `json:"affirmation"`
	ImageURL    string `json:"imageUrl"`
	Timestamp   string `json:"timestamp"`
}

type StateResponse struct {
	State         string        `json:"state"`
	Tab           string        `json:"tab"`
	CaptureSource string        `json:"captureSource,omitempty"`
	HasImage      bool          `json:"hasImage"`
	LoadingStep   string        `json:"loadingStep,omitempty"`
	LoaderMessage string        `json:"loaderMessage,omitempty"`
	Error         string        `json:"error,omitempty"`
	Current       *JourneyEntry `json:"current,omitempty"`
}

type journeyQuery struct {
	Limit int `query:"limit" validate:"min=0,max=100"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "Emotion Mirror is running")
	})

	api := e.Group("/api", common.SessionMiddleware(s.config.Session.CookieName))
	api.GET("/journey", s.journeyHandler)
	api.GET("/state", s.stateHandler)
}

func toJourneyEntry(entry *database.Entry) *JourneyEntry {
	if entry == nil {
		return nil
	}
	return &JourneyEntry{
		ID:          entry.ID,
		Emotion:     entry.Emotion,
		Affirmation: entry.Affirmation,
		ImageURL:    entry.DataURL(),
		Timestamp:   entry.TimestampISO(),
	}
}

// journeyHandler returns the session's journey, newest first
func (s *APIService) journeyHandler(ctx echo.Context) error {
	var query journeyQuery
	if err := common.BindAndValidate(ctx, &query); err != nil {
		slog.Warn("journeyHandler: invalid query", "status", http.StatusBadRequest, "error", err)
		return err
	}

	entries, err := s.coreService.Journey(ctx.Request().Context(), common.SessionID(ctx))
	if err != nil {
		slog.Error("journeyHandler: failed to load journey", "status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load journey")
	}
	if query.Limit > 0 && len(entries) > query.Limit {
		entries = entries[:query.Limit]
	}

	journey := make([]*JourneyEntry, 0, len(entries))
	for _, entry := range entries {
		journey = append(journey, toJourneyEntry(entry))
	}
	return ctx.JSON(http.StatusOK, journey)
}

func (s *APIService) stateHandler(ctx echo.Context) error {
	view := s.coreService.View(common.SessionID(ctx))
	return ctx.JSON(http.StatusOK, StateResponse{
		State:         string(view.State),
		Tab:           string(view.Tab),
		CaptureSource: string(view.Source),
		HasImage:      view.HasImage,
		LoadingStep:   view.LoadingStep,
		LoaderMessage: view.LoaderMessage,
		Error:         view.Error,
		Current:       toJourneyEntry(view.Current),
	})
}
