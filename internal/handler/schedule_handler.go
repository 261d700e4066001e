package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/weatherpost/internal/middleware"
	"github.com/hitoshi/weatherpost/internal/model"
	"github.com/hitoshi/weatherpost/internal/notification"
	"github.com/hitoshi/weatherpost/internal/repository"
)

// ScheduleHandler はスケジュール管理のHTTPハンドラー。
// スケジュールの作成・一覧・キャンセルを担う。状態遷移の実行はワーカーの責務。
type ScheduleHandler struct {
	schedules repository.ScheduleRepository
	users     UserEmailFinder
	resolver  *CityResolver
	zone      *time.Location

	// nowFunc はテスト用に現在時刻を差し替え可能にする
	nowFunc func() time.Time
}

// NewScheduleHandler はScheduleHandlerを生成する。
// zone は初回next_run_at計算に使うローカルタイムゾーン。
func NewScheduleHandler(schedules repository.ScheduleRepository, users UserEmailFinder, resolver *CityResolver, zone *time.Location) *ScheduleHandler {
	return &ScheduleHandler{
		schedules: schedules,
		users:     users,
		resolver:  resolver,
		zone:      zone,
		nowFunc:   time.Now,
	}
}

// createScheduleRequest はスケジュール作成リクエストのボディ。
type createScheduleRequest struct {
	Email    string `json:"email"`
	CityID   string `json:"city_id"`
	CityName string `json:"city_name"`
	Province string `json:"province"`
	Type     string `json:"type"`
	Time     string `json:"time"`
	Date     string `json:"date"`
	Timezone string `json:"timezone"`
}

// scheduleResponse はスケジュール情報のAPIレスポンス。
type scheduleResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CityID    string `json:"city_id"`
	CityName  string `json:"city_name"`
	Province  string `json:"province,omitempty"`
	Type      string `json:"type"`
	Time      string `json:"time"`
	Date      string `json:"date,omitempty"`
	Timezone  string `json:"timezone"`
	NextRunAt string `json:"next_run_at"`
	Status    string `json:"status"`
	LastRunAt string `json:"last_run_at,omitempty"`
}

// Create はスケジュール作成を処理する。
// POST /api/notifications/schedules
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	// 種別未指定はDAILYとして扱う
	schedType := model.ScheduleType(req.Type)
	if req.Type == "" {
		schedType = model.ScheduleTypeDaily
	}
	if !model.ValidScheduleType(schedType) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidScheduleError("typeはONCEまたはDAILY"))
		return
	}
	if req.Time == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidScheduleError("timeは必須"))
		return
	}

	// 宛先未指定の場合はアカウントの既定メールアドレスを使う
	email := req.Email
	if email == "" {
		user, err := h.users.FindByID(r.Context(), userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if user != nil {
			email = user.Email
		}
	}
	if email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewEmailNotDeterminedError())
		return
	}

	// スケジュール対象都市は収蔵必須
	ref, err := h.resolver.Resolve(r.Context(), userID, req.CityID, req.CityName, req.Province, true)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	locationID, err := h.resolver.LocationID(r.Context(), ref)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	nextRunAt, err := notification.NextRunFor(schedType, req.Time, req.Date, h.nowFunc(), h.zone)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidScheduleError(err.Error()))
		return
	}

	now := h.nowFunc().UTC()
	schedule := &model.Schedule{
		ID:        uuid.New().String(),
		UserID:    userID,
		Email:     email,
		CityID:    locationID,
		CityName:  ref.CityName,
		Province:  ref.Province,
		Type:      schedType,
		TimeHHMM:  req.Time,
		Date:      req.Date,
		Timezone:  req.Timezone,
		NextRunAt: nextRunAt,
		Status:    model.ScheduleStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.schedules.Create(r.Context(), schedule); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toScheduleResponse(schedule))
}

// List はユーザーのスケジュール一覧を返す。
// GET /api/notifications/schedules
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	schedules, err := h.schedules.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]scheduleResponse, 0, len(schedules))
	for _, sch := range schedules {
		resp = append(resp, toScheduleResponse(sch))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cancel はスケジュールをキャンセル状態に更新する。
// スケジュール行は削除せず、ワーカーの処理対象から外すだけに留める。
// DELETE /api/notifications/schedules/:id
func (h *ScheduleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	scheduleID := chi.URLParam(r, "id")

	schedule, err := h.schedules.FindByID(r.Context(), scheduleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	// 他ユーザーのスケジュールは存在を明かさない
	if schedule == nil || schedule.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewScheduleNotFoundError(scheduleID))
		return
	}

	if err := h.schedules.UpdateStatus(r.Context(), scheduleID, model.ScheduleStatusCancelled); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toScheduleResponse はmodel.ScheduleからAPIレスポンスに変換する。
func toScheduleResponse(sch *model.Schedule) scheduleResponse {
	resp := scheduleResponse{
		ID:        sch.ID,
		Email:     sch.Email,
		CityID:    sch.CityID,
		CityName:  sch.CityName,
		Province:  sch.Province,
		Type:      string(sch.Type),
		Time:      sch.TimeHHMM,
		Date:      sch.Date,
		Timezone:  sch.Timezone,
		NextRunAt: sch.NextRunAt.UTC().Format(time.RFC3339),
		Status:    string(sch.Status),
	}
	if sch.LastRunAt != nil {
		resp.LastRunAt = sch.LastRunAt.UTC().Format(time.RFC3339)
	}
	return resp
}
