package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskzen-api/domain"
	"taskzen-api/mentor"
	"taskzen-api/session"
)

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, adviser Adviser, logger *log.Logger) {
	h := &handlers{
		store:    store,
		auth:     auth,
		adviser:  adviser,
		logger:   logger,
		sessions: session.NewRegistry(store),
	}

	e.POST("/api/session", h.signIn)
	e.DELETE("/api/session", h.signOut)

	e.GET("/api/objectives", h.getObjectives)
	e.POST("/api/objectives", h.addObjective)
	e.PATCH("/api/objectives/:id/status", h.toggleStatus)
	e.PATCH("/api/objectives/:id/subtasks/:subtaskId", h.toggleSubtask)
	e.DELETE("/api/objectives/:id", h.deleteObjective)

	e.GET("/api/missions/today", h.todaysMissions)
	e.GET("/api/missions/recommended", h.recommendedMissions)
	e.GET("/api/progress", h.overallProgress)

	e.GET("/api/settings", h.getSettings)
	e.PUT("/api/settings", h.putSettings)

	e.POST("/api/mentorship", h.mentorship)

	e.GET("/healthz", h.healthz)
}

type handlers struct {
	store    Storage
	auth     Authenticator
	adviser  Adviser
	logger   *log.Logger
	sessions *session.Registry
}

type errorResponse struct {
	Error       string `json:"error"`
	Recoverable bool   `json:"recoverable,omitempty"`
}

type objectivesResponse struct {
	Objectives []domain.Objective `json:"objectives"`
}

type missionsResponse struct {
	Missions []domain.Mission `json:"missions"`
}

type progressResponse struct {
	Progress []domain.Progress `json:"progress"`
}

type mutationResponse struct {
	Result string `json:"result"`
}

type addObjectiveRequest struct {
	Title         string `json:"title"`
	Tasks         string `json:"tasks"`
	Separator     string `json:"separator"`
	PreferredDays []int  `json:"preferredDays"`
}

type toggleSubtaskRequest struct {
	Completed bool `json:"completed"`
}

type mentorshipResponse struct {
	Mentorship string `json:"mentorship"`
}

func (h *handlers) userID(c echo.Context) (string, error) {
	return h.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

// sessionFor fetches the caller's session, hydrating a fresh one when the
// server lost it (restart, first request after sign-in elsewhere). A session
// whose earlier hydration failed is retried here rather than served empty.
// A signed in client never sees a missing-session error.
func (h *handlers) sessionFor(c echo.Context, userID string) (*session.Session, error) {
	sess, _ := h.sessions.GetOrCreate(userID)
	if !sess.Hydrated() {
		if skipped, err := sess.Hydrate(c.Request().Context()); err != nil {
			return nil, err
		} else if skipped > 0 {
			h.logger.WithFields(log.Fields{"user": userID, "skipped": skipped}).Warn("quarantined malformed objective rows")
		}
	}
	return sess, nil
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// storeFailure maps a persistence error to the recoverable-error response
// the UI retries from.
func storeFailure(c echo.Context, err error) error {
	c.Logger().Error(err)
	return c.JSON(http.StatusBadGateway, errorResponse{Error: "the change could not be saved", Recoverable: true})
}

func (h *handlers) signIn(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	sess, _ := h.sessions.GetOrCreate(userID)
	skipped, err := sess.Hydrate(c.Request().Context())
	if err != nil {
		return storeFailure(c, err)
	}
	if skipped > 0 {
		h.logger.WithFields(log.Fields{"user": userID, "skipped": skipped}).Warn("quarantined malformed objective rows")
	}
	return c.JSON(http.StatusOK, objectivesResponse{Objectives: sess.Objectives()})
}

func (h *handlers) signOut(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	h.sessions.Delete(userID)
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) getObjectives(c echo.Context) (err error) {
	metrics, spanCtx := newObjectivesRequestMetrics(c.Request().Context(), h.logger)
	if spanCtx != nil {
		c.SetRequest(c.Request().WithContext(spanCtx))
	}
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	authStart := time.Now()
	userID, authErr := h.userID(c)
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		err = c.String(http.StatusUnauthorized, authErr.Error())
		return err
	}

	fetchStart := time.Now()
	sess, fetchErr := h.sessionFor(c, userID)
	metrics.ObserveFetch(time.Since(fetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("storage")
		err = storeFailure(c, fetchErr)
		return err
	}

	objectives := sess.Objectives()
	metrics.SetObjectivesReturned(len(objectives))
	err = c.JSON(http.StatusOK, objectivesResponse{Objectives: objectives})
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

func (h *handlers) addObjective(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	var req addObjectiveRequest
	if err := decodeBody(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
	}

	sess, err := h.sessionFor(c, userID)
	if err != nil {
		return storeFailure(c, err)
	}

	obj, err := sess.AddObjective(c.Request().Context(), req.Title, req.Tasks, req.Separator, req.PreferredDays)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Msg})
		}
		return storeFailure(c, err)
	}
	return c.JSON(http.StatusCreated, obj)
}

func (h *handlers) toggleStatus(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	sess, err := h.sessionFor(c, userID)
	if err != nil {
		return storeFailure(c, err)
	}

	state, err := sess.ToggleStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeFailure(c, err)
	}
	return c.JSON(http.StatusOK, mutationResponse{Result: state.String()})
}

func (h *handlers) toggleSubtask(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	var req toggleSubtaskRequest
	if err := decodeBody(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
	}

	sess, err := h.sessionFor(c, userID)
	if err != nil {
		return storeFailure(c, err)
	}

	state, err := sess.ToggleSubtask(c.Request().Context(), c.Param("id"), c.Param("subtaskId"), req.Completed)
	if err != nil {
		// Rolled back: local state already matches the store again, the
		// client should re-render from it and may retry.
		c.Logger().Error(err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "the change could not be saved", Recoverable: true})
	}
	return c.JSON(http.StatusOK, mutationResponse{Result: state.String()})
}

func (h *handlers) deleteObjective(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	sess, err := h.sessionFor(c, userID)
	if err != nil {
		return storeFailure(c, err)
	}

	state, err := sess.DeleteObjective(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeFailure(c, err)
	}
	return c.JSON(http.StatusOK, mutationResponse{Result: state.String()})
}

func (h *handlers) todaysMissions(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	sess, err := h.sessionFor(c, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	return c.JSON(http.StatusOK, missionsResponse{Missions: sess.TodaysMissions()})
}

func (h *handlers) recommendedMissions(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	sess, err := h.sessionFor(c, userID)
	if err != nil {
		return storeFailure(c, err)
	}

	missions, err := sess.RecommendedMissions()
	if errors.Is(err, session.ErrNotHydrated) {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "objectives are still loading", Recoverable: true})
	}
	if err != nil {
		return storeFailure(c, err)
	}
	return c.JSON(http.StatusOK, missionsResponse{Missions: missions})
}

func (h *handlers) overallProgress(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	sess, err := h.sessionFor(c, userID)
	if err != nil {
		return storeFailure(c, err)
	}
	return c.JSON(http.StatusOK, progressResponse{Progress: sess.OverallProgress()})
}

func (h *handlers) getSettings(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	settings, err := h.store.FetchSettings(c.Request().Context(), userID)
	if err != nil {
		return storeFailure(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *handlers) putSettings(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	var settings domain.Settings
	if err := decodeBody(c, &settings); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
	}
	if settings.WeeklyCreditGoal <= 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "weekly credit goal must be positive"})
	}

	if err := h.store.SaveSettings(c.Request().Context(), userID, settings); err != nil {
		return storeFailure(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *handlers) mentorship(c echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	sess, err := h.sessionFor(c, userID)
	if err != nil {
		return storeFailure(c, err)
	}

	titles := sess.ActiveTitles()
	if titles == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "no active objectives to ask about"})
	}

	advice, err := h.adviser.AdviseFor(c.Request().Context(), userID, titles)
	if err != nil {
		if errors.Is(err, mentor.ErrEmptyObjectives) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "no active objectives to ask about"})
		}
		c.Logger().Error(err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "mentorship is unavailable right now", Recoverable: true})
	}
	return c.JSON(http.StatusOK, mentorshipResponse{Mentorship: advice})
}

func (h *handlers) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
