package frontend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/httprate"
	"github.com/jo-hoe/emotionmirror/internal/backend/commands"
	"github.com/jo-hoe/emotionmirror/internal/backend/database"
	"github.com/jo-hoe/emotionmirror/internal/common"
	"github.com/jo-hoe/emotionmirror/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName = "index.html"
	viewName     = "view"
	mimePNG      = "image/png"
	iconPNGSize  = 192
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig

	iconOnce sync.Once
	iconPNG  []byte
	iconErr  error
}

// pageData is what every view template receives
type pageData struct {
	View     core.SessionView
	Journey  []*database.Entry
	Notice   string
	Headline string
}

type captureRequest struct {
	Image string `form:"image"`
}

type cameraErrorRequest struct {
	Message string `form:"message" validate:"max=1024"`
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
	}
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplate()

	e.GET("/", service.rootRedirectHandler)

	app := e.Group("", common.SessionMiddleware(service.config.Session.CookieName))
	app.GET("/"+MainPageName, service.indexHandler)
	app.GET("/htmx/view", service.htmxViewHandler)
	app.POST("/htmx/camera", service.htmxUseCameraHandler)
	app.POST("/htmx/capture", service.htmxCaptureHandler)
	app.POST("/htmx/camera-error", service.htmxCameraErrorHandler)
	app.POST("/htmx/upload", service.htmxUploadImageHandler)
	app.POST("/htmx/transform", service.htmxTransformHandler, echo.WrapMiddleware(service.transformRateLimit()))
	app.POST("/htmx/reset", service.htmxResetHandler)
	app.POST("/htmx/start-over", service.htmxStartOverHandler)
	app.POST("/htmx/tab/:tab", service.htmxSelectTabHandler)

	app.GET("/htmx/preview", service.htmxPreviewHandler)
	app.GET("/htmx/journey/:id/image", service.htmxJourneyImageHandler)
	app.GET("/htmx/journey/:id/thumb", service.htmxJourneyThumbnailHandler)
	app.GET("/htmx/journey/:id/download", service.htmxJourneyDownloadHandler)

	e.GET("/icon.svg", service.iconHandler)
	e.GET("/icon.png", service.iconPNGHandler)
	e.StaticFS("/static", echo.MustSubFS(assetsFS, "static"))
}

func (service *FrontendService) transformRateLimit() func(http.Handler) http.Handler {
	window := service.config.RateLimit.Window
	return httprate.Limit(
		service.config.RateLimit.Requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("htmxTransformHandler: rate limit exceeded", "status", http.StatusTooManyRequests, "remote", r.RemoteAddr)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("Too many reflections requested. Please try again later."))
		}),
	)
}

func (service *FrontendService) pageData(ctx echo.Context, notice string) (pageData, error) {
	id := common.SessionID(ctx)
	data := pageData{
		View:     service.coreService.View(id),
		Notice:   notice,
		Headline: core.LoaderHeadline,
	}
	if data.View.ShowJourney() {
		journey, err := service.coreService.Journey(ctx.Request().Context(), id)
		if err != nil {
			return data, err
		}
		data.Journey = journey
	}
	return data, nil
}

func (service *FrontendService) render(ctx echo.Context, name, notice string) error {
	data, err := service.pageData(ctx, notice)
	if err != nil {
		slog.Error("render: failed to load journey",
			"status", http.StatusInternalServerError, "session", common.SessionID(ctx), "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load journey")
	}
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, name, data)
}

func (service *FrontendService) renderView(ctx echo.Context) error {
	return service.render(ctx, viewName, "")
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	return service.render(ctx, MainPageName, "")
}

func (service *FrontendService) htmxViewHandler(ctx echo.Context) error {
	return service.renderView(ctx)
}

func (service *FrontendService) htmxUseCameraHandler(ctx echo.Context) error {
	service.coreService.UseCamera(common.SessionID(ctx))
	return service.renderView(ctx)
}

func (service *FrontendService) htmxCaptureHandler(ctx echo.Context) error {
	var req captureRequest
	if err := common.BindAndValidate(ctx, &req); err != nil {
		slog.Warn("htmxCaptureHandler: invalid request", "status", http.StatusBadRequest, "error", err)
		return err
	}

	err := service.coreService.CaptureImage(common.SessionID(ctx), req.Image)
	if errors.Is(err, core.ErrInvalidState) {
		slog.Warn("htmxCaptureHandler: capture ignored", "session", common.SessionID(ctx), "error", err)
	}
	return service.renderView(ctx)
}

func (service *FrontendService) htmxCameraErrorHandler(ctx echo.Context) error {
	var req cameraErrorRequest
	if err := common.BindAndValidate(ctx, &req); err != nil {
		slog.Warn("htmxCameraErrorHandler: invalid request", "status", http.StatusBadRequest, "error", err)
		return err
	}
	_ = service.coreService.ReportCameraError(common.SessionID(ctx), req.Message)
	return ctx.NoContent(http.StatusNoContent)
}

func (service *FrontendService) htmxUploadImageHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		slog.Error("htmxUploadImageHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to get uploaded file")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("htmxUploadImageHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to open uploaded file")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("htmxUploadImageHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	image, err := io.ReadAll(src)
	if err != nil {
		slog.Error("htmxUploadImageHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to read uploaded file")
	}

	if err := service.coreService.UploadImage(common.SessionID(ctx), file.Filename, image); err != nil {
		return service.render(ctx, viewName, core.UserMessage(err))
	}
	return service.renderView(ctx)
}

func (service *FrontendService) htmxTransformHandler(ctx echo.Context) error {
	err := service.coreService.StartTransformation(common.SessionID(ctx))
	switch {
	case errors.Is(err, core.ErrClosed):
		return ctx.String(http.StatusServiceUnavailable, "Service is shutting down")
	case err != nil:
		slog.Warn("htmxTransformHandler: transformation not started",
			"status", http.StatusOK, "session", common.SessionID(ctx), "error", err)
	}
	return service.renderView(ctx)
}

func (service *FrontendService) htmxResetHandler(ctx echo.Context) error {
	service.coreService.Reset(common.SessionID(ctx))
	return service.renderView(ctx)
}

func (service *FrontendService) htmxStartOverHandler(ctx echo.Context) error {
	service.coreService.StartOver(common.SessionID(ctx))
	return service.renderView(ctx)
}

func (service *FrontendService) htmxSelectTabHandler(ctx echo.Context) error {
	tab, err := core.ParseTab(ctx.Param("tab"))
	if err != nil {
		slog.Warn("htmxSelectTabHandler: invalid tab", "status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Invalid tab")
	}
	service.coreService.SelectTab(common.SessionID(ctx), tab)
	return service.renderView(ctx)
}

func (service *FrontendService) htmxPreviewHandler(ctx echo.Context) error {
	img, err := service.coreService.CapturedImage(common.SessionID(ctx))
	if err != nil {
		slog.Warn("htmxPreviewHandler: no captured image",
			"status", http.StatusNotFound, "session", common.SessionID(ctx), "error", err)
		return ctx.String(http.StatusNotFound, "Image not available")
	}
	service.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, img.MimeType, img.Data)
}

// journeyEntry loads the entry named by the :id route parameter of the current session
func (service *FrontendService) journeyEntry(ctx echo.Context) (*database.Entry, error) {
	id := ctx.Param("id")
	if id == "" {
		slog.Warn("journeyEntry: missing entry id", "status", http.StatusBadRequest, "route", ctx.Path())
		return nil, ctx.String(http.StatusBadRequest, "Missing entry ID")
	}

	entry, err := service.coreService.JourneyEntry(ctx.Request().Context(), common.SessionID(ctx), id)
	if err != nil || entry == nil {
		slog.Warn("journeyEntry: entry not available",
			"status", http.StatusNotFound, "entry_id", id, "route", ctx.Path(), "error", err)
		return nil, ctx.String(http.StatusNotFound, "Image not available")
	}
	return entry, nil
}

func (service *FrontendService) htmxJourneyImageHandler(ctx echo.Context) error {
	entry, err := service.journeyEntry(ctx)
	if entry == nil {
		return err
	}
	// entries are immutable
	ctx.Response().Header().Set("Cache-Control", "private, max-age=3600, immutable")
	return ctx.Blob(http.StatusOK, entry.MimeType, entry.Image)
}

func (service *FrontendService) htmxJourneyThumbnailHandler(ctx echo.Context) error {
	entry, err := service.journeyEntry(ctx)
	if entry == nil {
		return err
	}
	thumbnail, err := service.coreService.Thumbnail(entry)
	if err != nil || len(thumbnail) == 0 {
		slog.Warn("htmxJourneyThumbnailHandler: thumbnail not available",
			"status", http.StatusNotFound, "entry_id", entry.ID, "error", err)
		return ctx.String(http.StatusNotFound, "Thumbnail not available")
	}
	ctx.Response().Header().Set("Cache-Control", "private, max-age=3600, immutable")
	return ctx.Blob(http.StatusOK, mimePNG, thumbnail)
}

func (service *FrontendService) htmxJourneyDownloadHandler(ctx echo.Context) error {
	entry, err := service.journeyEntry(ctx)
	if entry == nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", core.DownloadFilename(entry)))
	return ctx.Blob(http.StatusOK, mimePNG, entry.Image)
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

// iconPNGHandler serves the icon rasterized for platforms without SVG favicon support
func (service *FrontendService) iconPNGHandler(ctx echo.Context) error {
	service.iconOnce.Do(func() {
		data, err := assetsFS.ReadFile("views/icon.svg")
		if err != nil {
			service.iconErr = err
			return
		}
		service.iconPNG, service.iconErr = commands.NewPngConverterCommandDirect(iconPNGSize, iconPNGSize).Execute(data)
	})
	if service.iconErr != nil {
		slog.Error("iconPNGHandler: failed to rasterize icon", "status", http.StatusInternalServerError, "error", service.iconErr)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, mimePNG, service.iconPNG)
}
