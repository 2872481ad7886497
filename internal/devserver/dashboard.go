package devserver

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rechart/rechart/internal/core/domain"
)

// FreeAppLimit is the number of apps a free workspace may hold.
const FreeAppLimit = 3

var fixtureDataSources = []domain.DataSource{
	{
		ID: "1", Name: "Sales_Data_2024.csv", Rows: 1250, Columns: 8, UploadDate: "2024-01-15",
		Schema: []string{"Date", "Product", "Revenue", "Quantity", "Region", "Salesperson", "Category", "Profit"},
	},
	{
		ID: "2", Name: "Customer_Analytics.csv", Rows: 890, Columns: 12, UploadDate: "2024-01-10",
		Schema: []string{"Customer_ID", "Age", "Gender", "Location", "Purchase_History", "Lifetime_Value"},
	},
	{
		ID: "3", Name: "Marketing_Campaign.csv", Rows: 456, Columns: 6, UploadDate: "2024-01-08",
		Schema: []string{"Campaign", "Channel", "Impressions", "Clicks", "Conversions", "Cost"},
	},
}

var fixtureApps = []domain.ChartApp{
	{ID: "app1", Name: "Q4 Sales Performance", DataSource: "Sales_Data_2024.csv", LastEdited: "2024-01-15", ChartType: "Bar Chart", IsPublic: true},
	{ID: "app2", Name: "Customer Demographics", DataSource: "Customer_Analytics.csv", LastEdited: "2024-01-12", ChartType: "Pie Chart", IsPublic: false},
	{ID: "app3", Name: "Campaign ROI Analysis", DataSource: "Marketing_Campaign.csv", LastEdited: "2024-01-10", ChartType: "Line Chart", IsPublic: true},
}

type createAppRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	DataSource string `json:"data_source" validate:"required"`
	ChartType  string `json:"chart_type" validate:"required,oneof='Bar Chart' 'Line Chart' 'Pie Chart' 'Area Chart' 'Scatter Plot'"`
	IsPublic   bool   `json:"is_public"`
}

// dashboardHandler serves data sources and chart apps. Every workspace
// starts with the fixture apps.
type dashboardHandler struct {
	mu   sync.Mutex
	apps map[string][]domain.ChartApp // by workspace
}

func newDashboardHandler() *dashboardHandler {
	return &dashboardHandler{apps: make(map[string][]domain.ChartApp)}
}

func (h *dashboardHandler) workspaceAppsLocked(workspace string) []domain.ChartApp {
	apps, ok := h.apps[workspace]
	if !ok {
		apps = slices.Clone(fixtureApps)
		h.apps[workspace] = apps
	}
	return apps
}

// ListDataSources handles GET /api/datasources.
func (h *dashboardHandler) ListDataSources(c echo.Context) error {
	if _, err := ctxClaims(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fixtureDataSources)
}

// ListApps handles GET /api/apps.
func (h *dashboardHandler) ListApps(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	h.mu.Lock()
	apps := slices.Clone(h.workspaceAppsLocked(claims.Workspace))
	h.mu.Unlock()

	return c.JSON(http.StatusOK, apps)
}

// GetApp handles GET /api/apps/:id.
func (h *dashboardHandler) GetApp(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	apps := h.workspaceAppsLocked(claims.Workspace)
	i := slices.IndexFunc(apps, func(a domain.ChartApp) bool { return a.ID == c.Param("id") })
	if i < 0 {
		return domain.ErrAppNotFound
	}
	return c.JSON(http.StatusOK, apps[i])
}

// CreateApp handles POST /api/apps. Free workspaces are capped at
// FreeAppLimit apps; past it the request is not allowed.
func (h *dashboardHandler) CreateApp(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req createAppRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	apps := h.workspaceAppsLocked(claims.Workspace)
	if tierOf(claims) == domain.TierFree && len(apps) >= FreeAppLimit {
		return domain.ErrAppLimit
	}

	app := domain.ChartApp{
		ID:         "app-" + uuid.NewString(),
		Name:       req.Name,
		DataSource: req.DataSource,
		LastEdited: time.Now().UTC().Format(time.DateOnly),
		ChartType:  req.ChartType,
		IsPublic:   req.IsPublic,
	}
	h.apps[claims.Workspace] = append(apps, app)

	return c.JSON(http.StatusCreated, app)
}

// DeleteApp handles DELETE /api/apps/:id.
func (h *dashboardHandler) DeleteApp(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	apps := h.workspaceAppsLocked(claims.Workspace)
	i := slices.IndexFunc(apps, func(a domain.ChartApp) bool { return a.ID == c.Param("id") })
	if i < 0 {
		return domain.ErrAppNotFound
	}
	h.apps[claims.Workspace] = slices.Delete(apps, i, i+1)
	return c.NoContent(http.StatusNoContent)
}

// PublishApp handles POST /api/apps/:id/publish. Pro only.
func (h *dashboardHandler) PublishApp(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	apps := h.workspaceAppsLocked(claims.Workspace)
	i := slices.IndexFunc(apps, func(a domain.ChartApp) bool { return a.ID == c.Param("id") })
	if i < 0 {
		return domain.ErrAppNotFound
	}
	apps[i].IsPublic = true
	apps[i].LastEdited = time.Now().UTC().Format(time.DateOnly)
	return c.JSON(http.StatusOK, apps[i])
}
