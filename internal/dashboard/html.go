package dashboard

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>NovelGoat</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: Georgia, 'Times New Roman', serif; background: #1c1917; color: #e7e5e4; min-height: 100vh; }
        .header { background: #292524; padding: 1.25rem 2rem; border-bottom: 1px solid #44403c; display: flex; justify-content: space-between; align-items: center; }
        .header h1 { font-size: 1.4rem; color: #fbbf24; }
        .header .uptime { font-size: 0.875rem; color: #a8a29e; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1rem; padding: 2rem; }
        .card { background: #292524; border: 1px solid #44403c; border-radius: 10px; padding: 1.25rem; }
        .card .label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #a8a29e; margin-bottom: 0.5rem; font-family: system-ui, sans-serif; }
        .card .value { font-size: 1.9rem; font-weight: 700; }
        .card.gold .value { color: #fbbf24; }
        .card.green .value { color: #86efac; }
        .card.red .value { color: #fca5a5; }
        .footer { text-align: center; padding: 1rem; color: #78716c; font-size: 0.75rem; }
    </style>
</head>
<body>
    <div class="header">
        <h1>📚 NovelGoat</h1>
        <span class="uptime" id="uptime">up 0s</span>
    </div>
    <div class="grid">
        <div class="card gold"><div class="label">Novels Scraped</div><div class="value" id="novels_scraped">0</div></div>
        <div class="card gold"><div class="label">Chapters Fetched</div><div class="value" id="chapters_fetched">0</div></div>
        <div class="card"><div class="label">Page Fetches</div><div class="value" id="fetches_total">0</div></div>
        <div class="card red"><div class="label">Failed Fetches</div><div class="value" id="fetches_failed">0</div></div>
        <div class="card"><div class="label">Searches</div><div class="value" id="searches">0</div></div>
        <div class="card green"><div class="label">Exports</div><div class="value" id="exports">0</div></div>
        <div class="card"><div class="label">API Requests</div><div class="value" id="api_requests">0</div></div>
        <div class="card green"><div class="label">Downloads Running</div><div class="value" id="jobs_running">0</div></div>
        <div class="card"><div class="label">Downloads Done</div><div class="value" id="jobs_done">0</div></div>
        <div class="card red"><div class="label">Downloads Failed</div><div class="value" id="jobs_failed">0</div></div>
    </div>
    <div class="footer">Refreshes every 2s</div>
    <script>
        const keys = ['novels_scraped','chapters_fetched','fetches_total','fetches_failed','searches','exports','api_requests','jobs_running','jobs_done','jobs_failed'];
        async function refresh() {
            try {
                const r = await fetch('/dashboard/stats');
                const d = await r.json();
                keys.forEach(k => {
                    const el = document.getElementById(k);
                    if (el) el.textContent = Number(d[k] || 0).toLocaleString();
                });
                document.getElementById('uptime').textContent = 'up ' + duration(d.uptime_seconds || 0);
            } catch(e) {}
        }
        function duration(s) { const h=Math.floor(s/3600), m=Math.floor(s%3600/60); return h ? h+'h '+m+'m' : m ? m+'m '+(s%60)+'s' : s+'s'; }
        setInterval(refresh, 2000);
        refresh();
    </script>
</body>
</html>`
