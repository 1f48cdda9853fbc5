package backend

import "encoding/json"

// API 路由
const (
	RouteGetUserData      = "/api/getUserData"
	RouteUpdateUserData   = "/api/updateUserData"
	RouteUpdateExp        = "/api/updateExp"
	RouteUpdateStatistics = "/api/updateStatistics"
	RouteUpdateItem       = "/api/updateItem"
	RouteLeaderboard      = "/api/leaderboard"
	RouteRackPrefix       = "/api/racks/"
)

// 请求头
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
	HeaderRequestID = "X-Request-Id"
)

// Envelope 所有 API 响应的外层结构：{"data": ...} 或 {"error": "..."}
type Envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// GetUserDataRequest POST /api/getUserData
type GetUserDataRequest struct {
	Keys []string `json:"keys"`
}

// UserData getUserData 的返回
type UserData struct {
	Flags map[string]string `json:"flags"`
}

// UpdateUserDataRequest POST /api/updateUserData
type UpdateUserDataRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UpdateExpRequest POST /api/updateExp
type UpdateExpRequest struct {
	Amount int `json:"amount"`
}

// UpdateExpResponse updateExp 的返回
type UpdateExpResponse struct {
	Total int `json:"total"`
}

// UpdateStatisticsRequest POST /api/updateStatistics
type UpdateStatisticsRequest struct {
	Name  string `json:"name"`
	Delta int    `json:"delta"`
}

// StatisticValue updateStatistics 的返回
type StatisticValue struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// UpdateItemRequest POST /api/updateItem
type UpdateItemRequest struct {
	ItemName string `json:"itemName"`
}

// ItemCount updateItem 的返回
type ItemCount struct {
	ItemName string `json:"itemName"`
	Count    int    `json:"count"`
}

// RackPath 返回货架路由 /api/racks/{id}/get
func RackPath(id string) string {
	return RouteRackPrefix + id + "/get"
}
