package httpapi

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"medmarket/internal/domain"
	"medmarket/internal/metrics"
	"medmarket/internal/repository"
	"medmarket/internal/service"
)

type Server struct {
	engine    *gin.Engine
	inventory *service.InventoryService
	carts     *service.CartService
	orders    *service.OrderService
	reports   *service.ReportService
	metrics   *metrics.Metrics
}

func NewServer(inventory *service.InventoryService, carts *service.CartService, orders *service.OrderService, reports *service.ReportService, m *metrics.Metrics) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	s := &Server{engine: r, inventory: inventory, carts: carts, orders: orders, reports: reports, metrics: m}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.engine.Group("/api/v1")
	v1.Use(s.observe(), s.identity())
	{
		v1.GET("/catalog", s.listCatalog)

		inventory := v1.Group("/inventory", s.requireRole(domain.RoleSeller))
		inventory.GET("", s.sellerInventory)
		inventory.POST("", s.upsertListing)

		cart := v1.Group("/cart", s.requireRole(domain.RoleBuyer))
		cart.GET("", s.getCart)
		cart.POST("/items", s.addCartItem)
		cart.PUT("/items/:code", s.setCartItemQuantity)
		cart.DELETE("/items/:code", s.removeCartItem)

		orders := v1.Group("/orders")
		orders.POST("", s.requireRole(domain.RoleBuyer), s.placeOrders)
		orders.GET("", s.listOrders)
		orders.GET(":id", s.getOrder)
		orders.POST(":id/accept", s.requireRole(domain.RoleSeller), s.acceptOrder)
		orders.POST(":id/reject", s.requireRole(domain.RoleSeller), s.rejectOrder)
		orders.POST(":id/complete", s.requireRole(domain.RoleSeller), s.completeOrder)

		reports := v1.Group("/reports", s.requireRole(domain.RoleSeller))
		reports.GET("/sales", s.salesReport)
	}
}

// identity доверенный внешний провайдер личности: id и роль приходят
// в заголовках, ядро их не перепроверяет
func (s *Server) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		role := domain.Role(c.GetHeader("X-User-Role"))
		if userID == "" || (role != domain.RoleBuyer && role != domain.RoleSeller) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		c.Set("userID", userID)
		c.Set("role", role)
		c.Next()
	}
}

func (s *Server) requireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.MustGet("role").(domain.Role) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.metrics.ObserveRequest(c.FullPath(), c.Writer.Status(), started)
	}
}

func userID(c *gin.Context) string { return c.MustGet("userID").(string) }

// Catalog handlers

// @Summary List catalog
// @Tags catalog
// @Produce json
// @Param q query string false "Drug or brand name contains"
// @Param in_stock query bool false "Only listings with stock"
// @Success 200 {array} domain.Listing
// @Router /catalog [get]
func (s *Server) listCatalog(c *gin.Context) {
	f := repository.CatalogFilter{Query: c.Query("q")}
	if c.Query("in_stock") == "true" {
		f.InStockOnly = true
	}
	list, err := s.inventory.Catalog(c, f)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// Inventory handlers
type upsertListingReq struct {
	MedicineCode string `json:"medicine_code"`
	DrugName     string `json:"drug_name"`
	BrandName    string `json:"brand_name"`
	Strength     string `json:"strength"`
	UnitType     string `json:"unit_type"`
	PricePerUnit string `json:"price_per_unit"`
	// nil — правка атрибутов без перезаписи остатка
	QuantityAvailable *int64 `json:"quantity_available"`
	ReorderLevel      int64  `json:"reorder_level"`
}

// @Summary Seller inventory
// @Tags inventory
// @Produce json
// @Success 200 {array} domain.Listing
// @Router /inventory [get]
func (s *Server) sellerInventory(c *gin.Context) {
	list, err := s.inventory.SellerInventory(c, userID(c))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Create or update listing
// @Tags inventory
// @Accept json
// @Produce json
// @Param input body upsertListingReq true "Listing"
// @Success 200 {object} domain.Listing
// @Failure 400 {object} map[string]string
// @Router /inventory [post]
func (s *Server) upsertListing(c *gin.Context) {
	var req upsertListingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	price, err := decimalFromString(req.PricePerUnit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}
	listing := domain.Listing{
		MedicineCode: req.MedicineCode,
		DrugName:     req.DrugName,
		BrandName:    req.BrandName,
		Strength:     req.Strength,
		UnitType:     req.UnitType,
		PricePerUnit: price,
		ReorderLevel: req.ReorderLevel,
	}
	setQuantity := req.QuantityAvailable != nil
	if setQuantity {
		listing.QuantityAvailable = *req.QuantityAvailable
	}
	l, err := s.inventory.UpsertListing(c, userID(c), listing, setQuantity)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, l)
}

// Cart handlers
type addCartItemReq struct {
	SellerID     string `json:"seller_id"`
	MedicineCode string `json:"medicine_code"`
	Quantity     int64  `json:"quantity"`
}

// @Summary Buyer cart with total
// @Tags cart
// @Produce json
// @Success 200 {object} map[string]any
// @Router /cart [get]
func (s *Server) getCart(c *gin.Context) {
	lines, err := s.carts.Lines(c, userID(c))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	total, err := s.carts.Total(c, userID(c))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines, "total": total})
}

// @Summary Add medicine to cart
// @Tags cart
// @Accept json
// @Produce json
// @Param input body addCartItemReq true "Cart line"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /cart/items [post]
func (s *Server) addCartItem(c *gin.Context) {
	var req addCartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	listing, err := s.inventory.Listing(c, domain.ListingKey{SellerID: req.SellerID, MedicineCode: req.MedicineCode})
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	if err := s.carts.AddItem(c, userID(c), *listing, req.Quantity); err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type setQuantityReq struct {
	Quantity int64 `json:"quantity"`
}

// @Summary Set cart line quantity, zero removes
// @Tags cart
// @Accept json
// @Param code path string true "Medicine code"
// @Param input body setQuantityReq true "Quantity"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /cart/items/{code} [put]
func (s *Server) setCartItemQuantity(c *gin.Context) {
	var req setQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.carts.SetQuantity(c, userID(c), c.Param("code"), req.Quantity); err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Remove cart line
// @Tags cart
// @Param code path string true "Medicine code"
// @Success 204
// @Router /cart/items/{code} [delete]
func (s *Server) removeCartItem(c *gin.Context) {
	if err := s.carts.RemoveItem(c, userID(c), c.Param("code")); err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Order handlers

// @Summary Place orders from cart
// @Tags orders
// @Produce json
// @Success 201 {array} domain.Order
// @Failure 400 {object} map[string]string
// @Router /orders [post]
func (s *Server) placeOrders(c *gin.Context) {
	created, err := s.orders.Place(c, userID(c))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary List own orders
// @Tags orders
// @Produce json
// @Param status query string false "Filter by status (seller only)"
// @Success 200 {array} domain.Order
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	var (
		list []domain.Order
		err  error
	)
	if c.MustGet("role").(domain.Role) == domain.RoleSeller {
		list, err = s.orders.SellerOrders(c, userID(c), domain.OrderStatus(c.Query("status")))
	} else {
		list, err = s.orders.BuyerOrders(c, userID(c))
	}
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	o, err := s.orders.Get(c, c.Param("id"), userID(c))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Accept pending order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/accept [post]
func (s *Server) acceptOrder(c *gin.Context) {
	o, err := s.orders.Accept(c, c.Param("id"), userID(c))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Reject pending order, reserved stock is released
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/reject [post]
func (s *Server) rejectOrder(c *gin.Context) {
	o, err := s.orders.Reject(c, c.Param("id"), userID(c))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Complete accepted order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/complete [post]
func (s *Server) completeOrder(c *gin.Context) {
	o, err := s.orders.Complete(c, c.Param("id"), userID(c))
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

// Report handlers

// @Summary Sales report by period
// @Tags reports
// @Produce json
// @Param period query string false "daily, weekly or monthly"
// @Param format query string false "csv for export"
// @Success 200 {object} service.SalesReport
// @Failure 400 {object} map[string]string
// @Router /reports/sales [get]
func (s *Server) salesReport(c *gin.Context) {
	period := service.ReportPeriod(c.DefaultQuery("period", string(service.PeriodDaily)))
	report, err := s.reports.SalesReport(c, userID(c), period)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	if c.Query("format") == "csv" {
		writeReportCSV(c, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

// writeReportCSV кодировка экспорта — забота презентационного слоя,
// здесь же и живёт
func writeReportCSV(c *gin.Context, report *service.SalesReport) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=sales-report-"+string(report.Period)+".csv")
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Period", "Revenue", "Orders", "Avg Order Value"})
	for _, b := range report.Buckets {
		_ = w.Write([]string{b.Period, b.Revenue.StringFixed(2), formatInt(b.OrderCount), b.AvgOrderValue.StringFixed(2)})
	}
	w.Flush()
}

func decimalFromString(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, repository.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
