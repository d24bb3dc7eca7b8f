package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"leasehub/internal/services"
	"leasehub/pkg/config"
	"leasehub/pkg/events"
	"leasehub/pkg/jwt"
	"leasehub/pkg/logger"
	"leasehub/pkg/queue"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 60 * time.Second
	wsPongWait     = 300 * time.Second
)

// LeaseEventsHandler 租约生命周期事件的 WebSocket 推送
type LeaseEventsHandler struct {
	upgrader   websocket.Upgrader
	queue      *queue.RedisQueue
	lifecycle  *services.LeaseLifecycleService
	jwtManager *jwt.JWTManager
	log        *logrus.Logger
}

// NewLeaseEventsHandler 创建事件推送处理器
func NewLeaseEventsHandler(q *queue.RedisQueue, lifecycle *services.LeaseLifecycleService) *LeaseEventsHandler {
	allowedOrigins := config.GetConfig().CORS.AllowOrigins

	return &LeaseEventsHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 同源请求
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if matchOrigin(origin, allowed) {
						return true
					}
				}
				logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 4,
		},
		queue:      q,
		lifecycle:  lifecycle,
		jwtManager: jwt.GetJWTManager(),
		log:        logger.GetLogger(),
	}
}

// Stream 推送单个租约文档的生命周期事件
func (h *LeaseEventsHandler) Stream(c *gin.Context) {
	reference := c.Param("reference")

	// WebSocket 不支持自定义 header，token 放在查询参数
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少认证令牌"})
		return
	}
	claims, err := h.jwtManager.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的令牌"})
		return
	}

	doc, err := h.lifecycle.GetByReference(c.Request.Context(), claims.OrgID, reference)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "租约不存在或无权访问"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("WebSocket升级失败")
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{
		"reference": reference,
		"user_id":   claims.UserID,
		"org_id":    claims.OrgID,
	})
	log.Info("租约事件连接已建立")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.queue.SubscribeChannel(ctx, events.DocumentChannel(reference))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		log.WithError(err).Error("订阅租约事件频道失败")
		return
	}

	go h.readPump(conn, cancel)

	// 先推送当前状态
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(gin.H{
		"type":      "snapshot",
		"reference": doc.Reference,
		"status":    doc.Status,
	}); err != nil {
		return
	}

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				log.WithError(err).Warn("推送租约事件失败")
				return
			}
		}
	}
}

func (h *LeaseEventsHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Warn("WebSocket异常关闭")
			}
			return
		}
	}
}

// matchOrigin 支持 * 与 *.example.com 形式的通配
func matchOrigin(origin, allowed string) bool {
	if allowed == "*" || origin == allowed {
		return true
	}
	if strings.HasPrefix(allowed, "*.") {
		host := origin
		if i := strings.Index(host, "://"); i >= 0 {
			host = host[i+3:]
		}
		return strings.HasSuffix(host, allowed[1:])
	}
	return false
}
