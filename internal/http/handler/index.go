package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Index serves a static endpoint listing so anyone hitting the service root
// can orient themselves without reading the docs.
func Index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, indexPage)
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
    <title>Lead Aggregator API</title>
    <meta charset="UTF-8">
</head>
<body>
    <h1>Lead Aggregator API</h1>
    <p>Available endpoints:</p>
    <ul>
        <li>POST /api/v1/leads - Create lead</li>
        <li>GET /api/v1/leads/{lead_id} - Get lead</li>
        <li>GET /api/v1/leads - List leads</li>
        <li>POST /api/v1/webhooks/crm/{crm_id} - CRM webhook</li>
        <li>GET /admin - Admin dashboard</li>
        <li>GET /stats - Statistics</li>
        <li>GET /health - Health check</li>
    </ul>
</body>
</html>
`
