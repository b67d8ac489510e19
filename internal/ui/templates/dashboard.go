// Package templates holds the dashboard shell as templ components. The
// components are built directly on the templ runtime; all dynamic content
// arrives through datastar SSE patches after load.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>E-commerce EDA Dashboard</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6fa;color:#222}
header{background:#1d2733;color:#fff;padding:1rem 2rem}
main{padding:1.5rem 2rem;display:grid;gap:1.5rem}
.panel{background:#fff;border-radius:8px;padding:1.25rem;box-shadow:0 1px 3px rgba(0,0,0,.08)}
.kpi-grid{display:grid;grid-template-columns:repeat(3,1fr);gap:1rem}
.kpi-card{display:flex;flex-direction:column;padding:.75rem;border-radius:6px;background:#eef2f7}
.kpi-label{font-size:.8rem;color:#5a6b7d}
.kpi-value{font-size:1.4rem;font-weight:600}
.modern-table{width:100%;border-collapse:collapse}
.modern-table th,.modern-table td{text-align:left;padding:.4rem .6rem;border-bottom:1px solid #e4e8ee}
.view-omitted{color:#8a94a0;font-style:italic}
</style>
</head>
<body>
<header><h1>E-commerce EDA Dashboard</h1></header>
<main data-signals="{trendData:{},productsData:{},categoriesData:{},paymentsData:{},regionsData:{},correlationData:{},customersData:{},ordersMonthlyData:{},distributionsData:{}}">
<section class="panel">
<h2>Upload dataset</h2>
<form method="post" action="/api/datasets" enctype="multipart/form-data">
<input type="file" name="file" accept=".csv,.tsv,.xlsx" required/>
<button type="submit">Analyze</button>
</form>
</section>
<section class="panel" data-on-load="@get('/sse/datasets/latest/refresh-all')">
<h2>Key Metrics</h2>
<div id="kpi-content">Loading…</div>
</section>
<section class="panel"><h2>Revenue Trend</h2><div id="trend-content">Waiting for data…</div></section>
<section class="panel"><h2>Top Products</h2><div id="products-content">Waiting for data…</div></section>
<section class="panel"><h2>Orders by Country</h2><div id="country-content">Waiting for data…</div></section>
</main>
</body>
</html>`

// Dashboard renders the static shell; panels fill themselves over SSE.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, dashboardHTML)
		return err
	})
}
