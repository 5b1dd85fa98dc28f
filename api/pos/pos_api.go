package pos

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"pos.GO/agent"
	"pos.GO/api"
	"pos.GO/checkout"
	"pos.GO/customer"
	"pos.GO/register"
)

func init() {
	api.RegisterModule(RegisterPosRoutes)
}

// RegisterPosRoutes wires the register terminal surface under /api/pos.
// The UI is a thin client; every state change goes through the session.
func RegisterPosRoutes(apiGroup *echo.Group, s *register.Session) {
	g := apiGroup.Group("/pos")

	// GET /api/pos/lookup?q= – ranked matches for a scan or typed query
	g.GET("/lookup", func(c echo.Context) error {
		q := c.QueryParam("q")
		if strings.TrimSpace(q) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "q is required"})
		}
		ms := s.Lookup(q)
		return c.JSON(http.StatusOK, echo.Map{"matches": ms, "count": len(ms)})
	})

	// GET /api/pos/cart – lines plus per-company totals
	g.GET("/cart", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"lines":  s.Cart().Lines(),
			"totals": s.Cart().Totals(),
		})
	})

	// POST /api/pos/cart/add – {company, item_id}
	g.POST("/cart/add", func(c echo.Context) error {
		var body struct {
			Company string `json:"company"`
			ItemID  string `json:"item_id"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		k, err := agent.ParseKey(body.Company)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		ln, ok := s.AddItem(k, body.ItemID)
		if !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not in catalog: " + body.ItemID})
		}
		return c.JSON(http.StatusOK, echo.Map{"line": ln, "totals": s.Cart().Totals()})
	})

	// POST /api/pos/cart/remove – {key}
	g.POST("/cart/remove", func(c echo.Context) error {
		var body struct {
			Key string `json:"key"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		if !s.Cart().Remove(body.Key) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no such line: " + body.Key})
		}
		return c.JSON(http.StatusOK, echo.Map{"totals": s.Cart().Totals()})
	})

	// POST /api/pos/cart/qty – {key, delta}; qty floors at 1
	g.POST("/cart/qty", func(c echo.Context) error {
		var body struct {
			Key   string `json:"key"`
			Delta int    `json:"delta"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		ln, ok := s.Cart().AdjustQty(body.Key, body.Delta)
		if !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no such line: " + body.Key})
		}
		return c.JSON(http.StatusOK, echo.Map{"line": ln, "totals": s.Cart().Totals()})
	})

	g.POST("/cart/clear", func(c echo.Context) error {
		s.Cart().Clear()
		return c.JSON(http.StatusOK, echo.Map{"cleared": true})
	})

	// POST /api/pos/mode – {mode: auto|official|unofficial}
	g.POST("/mode", func(c echo.Context) error {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		m, err := checkout.ParseMode(body.Mode)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		s.SetMode(m)
		return c.JSON(http.StatusOK, echo.Map{"mode": m.String()})
	})

	// POST /api/pos/flag – {on}
	g.POST("/flag", func(c echo.Context) error {
		var body struct {
			On bool `json:"on"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		s.SetFlag(body.On)
		return c.JSON(http.StatusOK, echo.Map{"flag_to_official": body.On})
	})

	// POST /api/pos/checkout – {payment, note}
	g.POST("/checkout", func(c echo.Context) error {
		var body struct {
			Payment string `json:"payment"`
			Note    string `json:"note"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		pay, err := checkout.ParsePayment(body.Payment)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}

		res, err := s.Pay(c.Request().Context(), pay, body.Note)
		if err != nil {
			status := http.StatusBadGateway
			if checkout.IsValidation(err) {
				status = http.StatusUnprocessableEntity
			}
			resp := echo.Map{"error": err.Error()}
			if res != nil {
				resp["result"] = res
			}
			return c.JSON(status, resp)
		}
		return c.JSON(http.StatusOK, echo.Map{"result": res})
	})

	// GET /api/pos/status – session plus both agents' edge health
	g.GET("/status", func(c echo.Context) error {
		statuses := map[string]interface{}{}
		for _, k := range agent.Keys {
			st := s.Monitor().Status(k)
			statuses[k.String()] = echo.Map{
				"state":           st.State.String(),
				"edge_latency_ms": st.LatencyMs,
				"outbox_pending":  st.PendingOutbox,
				"last_error":      st.LastError,
				"checked_at":      st.CheckedAt,
				"failures":        s.Monitor().Failures(k),
			}
		}
		resp := echo.Map{
			"mode":             s.Mode().String(),
			"flag_to_official": s.Flag(),
			"busy":             s.Busy(),
			"visible":          s.Visible(),
			"agents":           statuses,
		}
		if cust := s.Customer(); cust != nil {
			resp["customer"] = cust
		}
		return c.JSON(http.StatusOK, resp)
	})

	// POST /api/pos/sync/pull | push – manual sync, marks the session busy
	g.POST("/sync/pull", func(c echo.Context) error {
		errs := s.SyncPull(c.Request().Context())
		return c.JSON(http.StatusOK, echo.Map{"errors": errStrings(errs)})
	})
	g.POST("/sync/push", func(c echo.Context) error {
		errs := s.SyncPush(c.Request().Context())
		return c.JSON(http.StatusOK, echo.Map{"errors": errStrings(errs)})
	})

	// POST /api/pos/reconnect – immediate health re-poll, backoff bypassed
	g.POST("/reconnect", func(c echo.Context) error {
		s.Reconnect(c.Request().Context())
		return c.JSON(http.StatusOK, echo.Map{
			"official":   !s.Monitor().Offline(agent.Official),
			"unofficial": !s.Monitor().Offline(agent.Unofficial),
		})
	})

	// POST /api/pos/visible – {visible}; regaining kicks a catalog refresh
	g.POST("/visible", func(c echo.Context) error {
		var body struct {
			Visible bool `json:"visible"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		s.SetVisible(body.Visible)
		return c.JSON(http.StatusOK, echo.Map{"visible": body.Visible})
	})

	registerCustomerRoutes(g, s)
	registerSalesRoutes(g, s)
}

func registerCustomerRoutes(g *echo.Group, s *register.Session) {
	// GET /api/pos/customers?company=&query=&limit= – typeahead proxy.
	// stale=true means a newer query superseded this one mid-flight; the
	// terminal drops the response instead of rendering it.
	g.GET("/customers", func(c echo.Context) error {
		k, err := agent.ParseKey(c.QueryParam("company"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		refs, stale, err := s.SearchCustomers(c.Request().Context(), k, c.QueryParam("query"), limit)
		if err != nil {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"customers": refs, "stale": stale})
	})

	// POST /api/pos/customers/create – {company, name}
	g.POST("/customers/create", func(c echo.Context) error {
		var body struct {
			Company string `json:"company"`
			Name    string `json:"name"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		if strings.TrimSpace(body.Name) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
		}
		k, err := agent.ParseKey(body.Company)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		ref, err := s.Resolver().Create(c.Request().Context(), k, customer.Ref{Name: body.Name})
		if err != nil {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"customer": ref})
	})

	// POST /api/pos/customers/bind – {company, customer_id}; verifies first
	g.POST("/customers/bind", func(c echo.Context) error {
		var body struct {
			Company    string `json:"company"`
			CustomerID string `json:"customer_id"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		k, err := agent.ParseKey(body.Company)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		ref, err := s.Resolver().Resolve(c.Request().Context(), k, body.CustomerID)
		if err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
		s.BindCustomer(*ref)
		return c.JSON(http.StatusOK, echo.Map{"customer": ref})
	})

	g.POST("/customers/clear", func(c echo.Context) error {
		s.ClearCustomer()
		return c.JSON(http.StatusOK, echo.Map{"cleared": true})
	})
}

func registerSalesRoutes(g *echo.Group, s *register.Session) {
	// GET /api/pos/sales/recent?limit= – local journal, newest first
	g.GET("/sales/recent", func(c echo.Context) error {
		if s.Store() == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "local store not configured"})
		}
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		rows, err := s.Store().RecentSales(limit)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"sales": rows})
	})

	// GET /api/pos/sales/split/:group – all legs of one split sale
	g.GET("/sales/split/:group", func(c echo.Context) error {
		if s.Store() == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "local store not configured"})
		}
		rows, err := s.Store().SalesBySplitGroup(c.Param("group"))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"sales": rows})
	})
}

func errStrings(errs map[agent.Key]error) map[string]string {
	out := map[string]string{}
	for k, err := range errs {
		if err != nil {
			out[k.String()] = err.Error()
		}
	}
	return out
}
