package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadhub.app/aggregator/internal/service"
)

type AdminHandler struct {
	stats service.StatsService
}

func NewAdminHandler(stats service.StatsService) *AdminHandler {
	return &AdminHandler{stats: stats}
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	dashboard, err := h.stats.Dashboard(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build admin dashboard", "error", err)
		c.String(http.StatusInternalServerError, "dashboard unavailable")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := dashboardTmpl.Execute(c.Writer, dashboard); err != nil {
		slog.ErrorContext(ctx, "failed to render admin dashboard", "error", err)
	}
}

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Admin Dashboard</title>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { border-collapse: collapse; margin: 20px 0; width: 100%; }
        th, td { border: 1px solid #ddd; padding: 10px; text-align: left; }
        th { background-color: #f4f4f4; }
        .stat { margin: 15px 0; font-size: 18px; }
        .card {
            background: #f8f9fa;
            border: 1px solid #dee2e6;
            border-radius: 5px;
            padding: 15px;
            margin: 15px 0;
        }
    </style>
</head>
<body>
    <h1>Aggregator Admin Dashboard</h1>

    <div class="card">
        <div class="stat"><strong>Total Leads:</strong> {{.TotalLeads}}</div>
        <div class="stat"><strong>Total Payments:</strong> {{.TotalPayments}}</div>
        <div class="stat"><strong>Total Revenue:</strong> {{printf "%.2f" .TotalRevenue}} RUB</div>
    </div>

    <h2>Campaign Statistics</h2>
    <table>
        <tr>
            <th>Campaign ID</th>
            <th>Leads</th>
            <th>Payments</th>
            <th>Revenue</th>
            <th>Conversion Rate</th>
            <th>Last Lead</th>
        </tr>
        {{range .Campaigns}}
        <tr>
            <td>{{.CampaignID}}</td>
            <td>{{.TotalLeads}}</td>
            <td>{{.TotalPayments}}</td>
            <td>{{printf "%.2f" .TotalRevenue}} RUB</td>
            <td>{{printf "%.2f" .ConversionRate}}%</td>
            <td>{{if .LastLeadAt}}{{.LastLeadAt.Format "2006-01-02 15:04"}}{{else}}N/A{{end}}</td>
        </tr>
        {{end}}
    </table>

    <h2>Recent Leads</h2>
    <table>
        <tr>
            <th>Lead ID</th>
            <th>Campaign</th>
            <th>Status</th>
            <th>Created</th>
            <th>Contact</th>
        </tr>
        {{range .RecentLeads}}
        <tr>
            <td>{{.LeadID}}</td>
            <td>{{if .CampaignID}}{{.CampaignID}}{{else}}N/A{{end}}</td>
            <td>{{.Status}}</td>
            <td>{{.CreatedAt.Format "2006-01-02 15:04"}}</td>
            <td>{{.Contact}}</td>
        </tr>
        {{end}}
    </table>

    <h2>Recent Events</h2>
    <table>
        <tr>
            <th>Time</th>
            <th>Event Type</th>
            <th>Lead ID</th>
            <th>Details</th>
        </tr>
        {{range .RecentEvents}}
        <tr>
            <td>{{.CreatedAt.Format "2006-01-02 15:04:05"}}</td>
            <td>{{.EventType}}</td>
            <td>{{.AggregateID}}</td>
            <td>{{.Details}}</td>
        </tr>
        {{end}}
    </table>

    <p><em>Generated at {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</em></p>
</body>
</html>
`))
