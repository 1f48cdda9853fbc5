// Package server 在平台存储之上提供画面使用的 HTTP API。
//
// 所有响应都是 {"data": ...} 或 {"error": "..."}；非 2xx 表示操作没有发生。
// 用户通过 X-User-Id 请求头识别，缺失时返回 401。
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gonewx/closetkingdom/pkg/backend"
	"github.com/gonewx/closetkingdom/pkg/store"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 64 << 10

// Option 服务端配置项
type Option func(*Server)

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics 使用已有的指标集合
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Server API 服务端
type Server struct {
	store   *store.Store
	logger  *zap.Logger
	metrics *Metrics
	handler http.Handler
}

// New 创建服务端并注册路由
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{
		store:  st,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.logger = s.logger.Named("Server")

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+backend.RouteRackPrefix+"{id}/get", s.withUser(s.handleGetRack))
	mux.HandleFunc("GET "+backend.RouteGetUserData, s.withUser(s.handleGetUserData))
	mux.HandleFunc("POST "+backend.RouteGetUserData, s.withUser(s.handleGetUserData))
	mux.HandleFunc("POST "+backend.RouteUpdateUserData, s.withUser(s.handleUpdateUserData))
	mux.HandleFunc("POST "+backend.RouteUpdateExp, s.withUser(s.handleUpdateExp))
	mux.HandleFunc("POST "+backend.RouteUpdateStatistics, s.withUser(s.handleUpdateStatistics))
	mux.HandleFunc("POST "+backend.RouteUpdateItem, s.withUser(s.handleUpdateItem))
	mux.HandleFunc("GET "+backend.RouteLeaderboard, s.handleLeaderboard)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.handler = s.instrument(mux)
	return s
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics 返回指标集合
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// userHandler 已识别用户的处理函数
type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser 读取 X-User-Id（缺失返回 401），并登记用户显示名
func (s *Server) withUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(backend.HeaderUserID))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+backend.HeaderUserID+" header")
			return
		}
		if err := s.store.Register(userID, strings.TrimSpace(r.Header.Get(backend.HeaderUserName))); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		h(w, r, userID)
	}
}

func (s *Server) handleGetRack(w http.ResponseWriter, r *http.Request, _ string) {
	rack, err := s.store.GetRack(r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rack)
}

// handleGetUserData GET 时 key 来自查询参数 keys（可重复或逗号分隔），POST 时来自请求体
func (s *Server) handleGetUserData(w http.ResponseWriter, r *http.Request, userID string) {
	var keys []string
	if r.Method == http.MethodGet {
		for _, v := range r.URL.Query()["keys"] {
			for _, k := range strings.Split(v, ",") {
				if k = strings.TrimSpace(k); k != "" {
					keys = append(keys, k)
				}
			}
		}
	} else {
		var req backend.GetUserDataRequest
		if !decode(w, r, &req) {
			return
		}
		keys = req.Keys
	}

	flags, err := s.store.GetFlags(userID, keys)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, backend.UserData{Flags: flags})
}

func (s *Server) handleUpdateUserData(w http.ResponseWriter, r *http.Request, userID string) {
	var req backend.UpdateUserDataRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.store.SetFlag(userID, req.Key, req.Value); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.metrics.flagsSetTotal.Inc()
	writeData(w, http.StatusOK, req)
}

func (s *Server) handleUpdateExp(w http.ResponseWriter, r *http.Request, userID string) {
	var req backend.UpdateExpRequest
	if !decode(w, r, &req) {
		return
	}
	total, err := s.store.AwardExperience(userID, req.Amount)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.metrics.expAwardedTotal.Add(float64(req.Amount))
	writeData(w, http.StatusOK, backend.UpdateExpResponse{Total: total})
}

func (s *Server) handleUpdateStatistics(w http.ResponseWriter, r *http.Request, userID string) {
	var req backend.UpdateStatisticsRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.store.UpdateStatistics(userID, req.Name, req.Delta)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, backend.StatisticValue{Name: req.Name, Value: v})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, userID string) {
	var req backend.UpdateItemRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := s.store.UpdateItem(userID, req.ItemName)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.metrics.itemsAwardedTotal.WithLabelValues(req.ItemName).Inc()
	writeData(w, http.StatusOK, backend.ItemCount{ItemName: req.ItemName, Count: n})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := backend.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.store.Leaderboard(period, 0)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, entries)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"degraded": s.store.Degraded(),
	})
}

// writeStoreError 把存储错误映射为状态码
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("存储操作失败", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode 解析 JSON 请求体，失败时写入 400 并返回 false
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeData(w http.ResponseWriter, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	writeEnvelope(w, status, backend.Envelope{Data: raw})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, backend.Envelope{Error: msg})
}

func writeEnvelope(w http.ResponseWriter, status int, env backend.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
