package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/sruthreads/storefront_backend/config"
	"github.com/sruthreads/storefront_backend/gateway"
	"github.com/sruthreads/storefront_backend/middlewares"
	"github.com/sruthreads/storefront_backend/models"
)

func claimOrAbort(c *gin.Context) (userId string, ok bool) {
	claim := middlewares.CtxValue(c.Request.Context())
	if claim == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return claim.UserId, true
}

func storeOrAbort(c *gin.Context) (*models.Store, bool) {
	store := middlewares.StoreFromContext(c)
	if store == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "store not resolved"})
		return nil, false
	}
	return store, true
}

func domainErrorStatus(err error) int {
	switch err {
	case models.ErrProductUnavailable, models.ErrOrderNotFound,
		models.ErrPaymentNotFound, models.ErrCouponNotFound,
		models.ErrMovementNotFound:
		return http.StatusNotFound
	case models.ErrOutOfStock, models.ErrInsufficientStock,
		models.ErrInvalidTransition:
		return http.StatusConflict
	}
	if models.IsCouponError(err) {
		return http.StatusUnprocessableEntity
	}
	if _, ok := err.(*gateway.GatewayError); ok {
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := storeOrAbort(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		products, total, err := models.ListProducts(c.Request.Context(), store.ID, models.ProductFilter{
			Search:     c.Query("search"),
			CategoryId: c.Query("category_id"),
			TagId:      c.Query("tag_id"),
			ActiveOnly: true,
			InStock:    c.Query("in_stock") == "true",
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products, "total": total})
	}
}

func getCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := storeOrAbort(c)
		if !ok {
			return
		}
		userId, ok := claimOrAbort(c)
		if !ok {
			return
		}
		lines, err := models.GetCartLines(c.Request.Context(), store.ID, userId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": lines})
	}
}

type cartUpdateRequest struct {
	ProductId string `json:"product_id" binding:"required"`
	Quantity  int64  `json:"quantity"`
}

func updateCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := storeOrAbort(c)
		if !ok {
			return
		}
		userId, ok := claimOrAbort(c)
		if !ok {
			return
		}
		var req cartUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		line, err := models.UpsertCartLine(c.Request.Context(), store.ID, userId, req.ProductId, req.Quantity)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		if line == nil {
			c.JSON(http.StatusOK, gin.H{"removed": req.ProductId})
			return
		}
		c.JSON(http.StatusOK, line)
	}
}

func removeCartLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := storeOrAbort(c)
		if !ok {
			return
		}
		userId, ok := claimOrAbort(c)
		if !ok {
			return
		}
		if err := models.RemoveCartLine(c.Request.Context(), store.ID, userId, c.Param("productId")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func initiateOrderHandler(gw gateway.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := storeOrAbort(c)
		if !ok {
			return
		}
		userId, ok := claimOrAbort(c)
		if !ok {
			return
		}
		var input models.CheckoutInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := models.InitiateOrder(c.Request.Context(), store, userId, input, gw, userId)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type cartCheckoutRequest struct {
	AddressId  string `json:"address_id" binding:"required"`
	CouponCode string `json:"coupon_code"`
}

func cartCheckoutHandler(gw gateway.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := storeOrAbort(c)
		if !ok {
			return
		}
		userId, ok := claimOrAbort(c)
		if !ok {
			return
		}
		var req cartCheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := models.CheckoutFromCart(c.Request.Context(), store, userId, req.AddressId, req.CouponCode, gw, userId)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// paymentWebhookHandler always acknowledges with 200, even when processing
// fails, so the gateway does not retry forever on payloads that will never
// succeed. Failures are logged inside ReconcileWebhook.
func paymentWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx, span := tracer.Start(c.Request.Context(), "payments.webhook")
		defer span.End()

		rawBody, err := c.GetRawData()
		if err != nil {
			logger.Warn("failed to read webhook body: " + err.Error())
			c.Status(http.StatusOK)
			return
		}

		var payload models.WebhookPayload
		if err := json.Unmarshal(rawBody, &payload); err != nil {
			logger.Warn("malformed webhook payload: " + err.Error())
			c.Status(http.StatusOK)
			return
		}

		if config.VerifyWebhookSignatures() {
			if !verifyWebhookCaller(c, rawBody, payload.Data.Order.OrderId) {
				logger.WithField("order_id", payload.Data.Order.OrderId).
					Warn("webhook signature verification failed; dropping event")
				c.Status(http.StatusOK)
				return
			}
		}

		// Best-effort lock per order so a webhook and a racing status poll
		// don't both hit the gateway state write at once. Correctness does
		// not depend on it; the row lock inside ApplyGatewayStatus does.
		var lock *redislock.Lock
		if redisLock := config.GetRedisLock(); redisLock != nil && payload.Data.Order.OrderId != "" {
			var err error
			lock, err = redisLock.Obtain(ctx,
				"lock:order:"+payload.Data.Order.OrderId, 30*time.Second, nil)
			if err != nil {
				lock = nil
				if err != redislock.ErrNotObtained {
					logger.Warn("error obtaining redis lock; proceeding without it: " + err.Error())
				}
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(ctx); releaseErr != nil {
				logger.Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		models.ReconcileWebhook(ctx, payload)
		c.Status(http.StatusOK)
	}
}

// verifyWebhookCaller resolves the signing secret through the order's store
// and checks the HMAC headers. An unknown order cannot be verified.
func verifyWebhookCaller(c *gin.Context, rawBody []byte, orderNumber string) bool {
	if orderNumber == "" {
		return false
	}
	order, err := models.GetOrderByNumber(c.Request.Context(), orderNumber)
	if err != nil {
		return false
	}
	store, err := models.GetStoreById(c.Request.Context(), order.StoreId)
	if err != nil {
		return false
	}
	return gateway.VerifyWebhookSignature(
		store.GatewayClientSecret,
		c.GetHeader("x-webhook-timestamp"),
		rawBody,
		c.GetHeader("x-webhook-signature"),
	)
}

type statusPollRequest struct {
	OrderNumber string `json:"order_number" binding:"required"`
}

func paymentStatusHandler(gw gateway.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := storeOrAbort(c)
		if !ok {
			return
		}
		if _, ok := claimOrAbort(c); !ok {
			return
		}
		var req statusPollRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		outcome, err := models.CheckPaymentStatus(c.Request.Context(), store, req.OrderNumber, gw)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}

func userOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := storeOrAbort(c)
		if !ok {
			return
		}
		userId, ok := claimOrAbort(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		orders, err := models.ListOrdersForUser(c.Request.Context(), store.ID, userId, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

// Admin surface. All handlers below run behind RequireAdmin; the store comes
// from the admin's token, not the client header.

func adminStoreOrAbort(c *gin.Context) (storeId string, actor string, ok bool) {
	claim := middlewares.CtxValue(c.Request.Context())
	if claim == nil || claim.StoreId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", "", false
	}
	return claim.StoreId, claim.UserId, true
}

func adminCreateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, actor, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		var input models.ProductInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), storeId, input, actor)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func adminUpdateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, actor, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		var input models.ProductInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), storeId, c.Param("id"), input, actor)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func adminDeactivateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, actor, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		if err := models.DeactivateProduct(c.Request.Context(), storeId, c.Param("id"), actor); err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func adminListProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, _, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		products, total, err := models.ListProducts(c.Request.Context(), storeId, models.ProductFilter{
			Search:     c.Query("search"),
			CategoryId: c.Query("category_id"),
			TagId:      c.Query("tag_id"),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products, "total": total})
	}
}

func adminRecordMovementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, actor, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		var input models.MovementInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		movement, err := models.RecordMovement(c.Request.Context(), storeId, input, actor)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, movement)
	}
}

func adminListMovementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, _, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		movements, total, err := models.ListMovements(c.Request.Context(), storeId, models.MovementFilter{
			ProductId: c.Query("product_id"),
			Type:      models.InventoryMovementType(c.Query("type")),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"movements": movements, "total": total})
	}
}

func adminGetMovementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, _, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		movement, err := models.GetMovementById(c.Request.Context(), storeId, c.Param("id"))
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, movement)
	}
}

func adminCreateCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, actor, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		var input models.CouponInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		coupon, err := models.CreateCoupon(c.Request.Context(), storeId, input, actor)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, coupon)
	}
}

func adminListCouponsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, _, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		coupons, err := models.ListCoupons(c.Request.Context(), storeId, c.Query("active") == "true")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"coupons": coupons})
	}
}

func adminDeactivateCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, actor, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		if err := models.DeactivateCoupon(c.Request.Context(), storeId, c.Param("id"), actor); err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func adminListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, _, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		orders, total, err := models.ListOrders(c.Request.Context(), storeId, models.OrderFilter{
			Filter: c.Query("filter"),
			Status: models.OrderStatus(c.Query("status")),
			UserId: c.Query("user_id"),
			Search: c.Query("search"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total})
	}
}

func adminGetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, _, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		order, err := models.GetOrderById(c.Request.Context(), storeId, c.Param("id"))
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		payments, err := models.GetPaymentsForOrder(c.Request.Context(), storeId, order.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order, "payments": payments})
	}
}

// adminAbandonedOrdersHandler lists orders stuck in INITIATED past the
// payment window; the sweeper job moves them to UNFULFILLED.
func adminAbandonedOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, _, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		windowMinutes, _ := strconv.Atoi(c.DefaultQuery("window_minutes", "30"))
		if windowMinutes <= 0 {
			windowMinutes = 30
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		orders, err := models.ListStaleInitiatedOrders(c.Request.Context(), storeId,
			time.Duration(windowMinutes)*time.Minute, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

type transitionRequest struct {
	Status  models.OrderStatus `json:"status" binding:"required,orderstatus"`
	Remarks string             `json:"remarks"`
}

func adminTransitionOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, actor, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		order, err := models.TransitionOrder(c.Request.Context(), storeId, c.Param("id"),
			req.Status, models.ActorAdmin, req.Remarks, actor)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

type adminOrderRequest struct {
	UserId    string                   `json:"user_id" binding:"required"`
	AddressId string                   `json:"address_id" binding:"required"`
	Products  []models.CheckoutProduct `json:"products" binding:"required,min=1,dive"`
}

func adminCreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, actor, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		store, err := models.GetStoreById(c.Request.Context(), storeId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "store not found"})
			return
		}
		var req adminOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		order, err := models.CreateAdminOrder(c.Request.Context(), store, req.UserId, req.AddressId, req.Products, actor)
		if err != nil {
			c.JSON(domainErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func adminOrderStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, _, ok := adminStoreOrAbort(c)
		if !ok {
			return
		}
		days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
		if days <= 0 || days > 365 {
			days = 30
		}
		since := time.Now().AddDate(0, 0, -days)
		stats, err := models.GetOrderStats(c.Request.Context(), storeId, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats, "since": since.Format(time.RFC3339)})
	}
}
