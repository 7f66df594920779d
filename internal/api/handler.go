package api

import (
	"net/http"
	"strconv"
	"time"

	"clearance-connect/internal/models"
	"clearance-connect/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	cartService  *service.CartService
	orderService *service.OrderService
	catalog      service.Catalog
}

// NewHandler creates a new HTTP handler
func NewHandler(cartService *service.CartService, orderService *service.OrderService, catalog service.Catalog) *Handler {
	return &Handler{
		cartService:  cartService,
		orderService: orderService,
		catalog:      catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(identityMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products/:id", h.getProduct)

		cart := v1.Group("/cart", requireRole(models.RoleCustomer))
		{
			cart.GET("", h.getCart)
			cart.POST("/add", h.addToCart)
			cart.PUT("/update", h.updateCartItem)
			cart.DELETE("/remove/:productId", h.removeCartItem)
			cart.DELETE("/clear", h.clearCart)
			cart.POST("/validate", h.validateCart)
		}

		orders := v1.Group("/orders")
		{
			orders.POST("", requireRole(models.RoleCustomer), h.createOrder)
			orders.GET("", requireRole(models.RoleCustomer), h.listOrders)
			orders.GET("/:id", requireRole(models.RoleCustomer, models.RoleSeller, models.RoleAdmin), h.getOrder)
			orders.PUT("/:id/status", requireRole(models.RoleSeller, models.RoleAdmin), h.updateOrderStatus)
			orders.POST("/:id/cancel", requireRole(models.RoleCustomer), h.cancelOrder)
			orders.GET("/:id/track", h.trackOrder)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "Invalid product ID"})
		return
	}

	product, err := h.catalog.GetProductByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "", gin.H{
		"product":             product,
		"available":           product.Available(),
		"discount_percentage": product.DiscountPercentage(),
	})
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// updateCartRequest takes quantity as a pointer so an explicit zero
// (which removes the line) survives the required check.
type updateCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  *int  `json:"quantity" binding:"required,min=0"`
}

func (h *Handler) getCart(c *gin.Context) {
	actor, _ := actorFrom(c)

	summary, err := h.cartService.Read(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", summary)
}

func (h *Handler) addToCart(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	counts, err := h.cartService.Add(c.Request.Context(), actor.ID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Item added to cart", counts)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req updateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	counts, err := h.cartService.UpdateQuantity(c.Request.Context(), actor.ID, req.ProductID, *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Cart updated", counts)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	actor, _ := actorFrom(c)

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "Invalid product ID"})
		return
	}

	if err := h.cartService.Remove(c.Request.Context(), actor.ID, productID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Item removed from cart", nil)
}

func (h *Handler) clearCart(c *gin.Context) {
	actor, _ := actorFrom(c)

	if err := h.cartService.Clear(c.Request.Context(), actor.ID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Cart cleared", nil)
}

func (h *Handler) validateCart(c *gin.Context) {
	actor, _ := actorFrom(c)

	validation, err := h.cartService.Validate(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", validation)
}

func (h *Handler) createOrder(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), actor.ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Order placed successfully", order)
}

func (h *Handler) listOrders(c *gin.Context) {
	actor, _ := actorFrom(c)

	orders, err := h.orderService.ListOrders(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	actor, _ := actorFrom(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "Invalid order ID"})
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", order)
}

type updateStatusRequest struct {
	Status         models.OrderStatus `json:"status" binding:"required"`
	Message        string             `json:"message,omitempty"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	actor, _ := actorFrom(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "Invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "Unknown order status"})
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, actor,
		req.Status, req.Message, req.TrackingNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Order status updated", order)
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) cancelOrder(c *gin.Context) {
	actor, _ := actorFrom(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "Invalid order ID"})
		return
	}

	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	order, err := h.orderService.Cancel(c.Request.Context(), orderID, actor.ID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Order cancelled", order)
}

// trackOrder is public by design: order status pages are shareable.
func (h *Handler) trackOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: "Invalid order ID"})
		return
	}

	view, err := h.orderService.Track(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", view)
}
