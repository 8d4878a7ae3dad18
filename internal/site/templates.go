package site

// pageTemplate is the public services page.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css">
  <style>{{.Style}}</style>
</head>
<body data-socket="{{.SocketPath}}" data-fragment="{{.FragmentPath}}" data-detail="{{.DetailPrefix}}">
  <header class="page-header">
    <h1>{{.Title}}</h1>
  </header>
  <main>
    <section class="services-grid" id="services-container" aria-live="polite">
{{.Cards}}
    </section>
  </main>
  <div class="service-modal" id="service-modal" hidden>
    <div class="service-modal-content" role="dialog" aria-modal="true">
      <button class="service-modal-close" type="button" aria-label="Close">&times;</button>
      <div id="service-modal-body"></div>
    </div>
  </div>
  <script>{{.Script}}</script>
</body>
</html>`

const styleContent = `
:root { --accent: #0b6bcb; --muted: #5f6b7a; --card: #ffffff; --bg: #f4f6f9; }
* { box-sizing: border-box; }
body { margin: 0; font-family: system-ui, -apple-system, "Segoe UI", Roboto, sans-serif; background: var(--bg); color: #1d2733; }
.page-header { padding: 2rem 1.5rem 1rem; text-align: center; }
.page-header h1 { margin: 0; font-size: 2rem; }
.services-grid { display: grid; gap: 1.25rem; grid-template-columns: repeat(auto-fill, minmax(280px, 1fr)); padding: 1.5rem; max-width: 1200px; margin: 0 auto; }
.service-detail-card { background: var(--card); border-radius: 12px; box-shadow: 0 2px 10px rgba(0,0,0,.06); padding: 1.25rem; display: flex; flex-direction: column; gap: .75rem; }
.clickable-service { cursor: pointer; transition: transform .15s ease, box-shadow .15s ease; }
.clickable-service:hover { transform: translateY(-2px); box-shadow: 0 6px 18px rgba(0,0,0,.1); }
.service-empty { grid-column: 1 / -1; text-align: center; color: var(--muted); }
.service-image img { width: 100%; height: 180px; object-fit: cover; border-radius: 8px; }
.service-icon-wrapper i { font-size: 1.75rem; color: var(--accent); }
.service-card-footer { margin-top: auto; display: flex; align-items: center; justify-content: space-between; gap: .5rem; flex-wrap: wrap; }
.service-price-preview, .service-price { font-weight: 600; }
.service-status { color: #b42318; font-size: .85rem; }
.btn-view-service { border: 0; background: var(--accent); color: #fff; padding: .45rem .9rem; border-radius: 6px; cursor: pointer; }
.service-features { margin: 0; padding-left: 1.1rem; color: var(--muted); }
.service-modal { position: fixed; inset: 0; background: rgba(0,0,0,.45); display: flex; align-items: center; justify-content: center; padding: 1rem; }
.service-modal[hidden] { display: none; }
.service-modal-content { background: var(--card); border-radius: 12px; max-width: 720px; width: 100%; max-height: 90vh; overflow: auto; padding: 1.5rem; position: relative; }
.service-modal-close { position: absolute; top: .5rem; right: .75rem; border: 0; background: none; font-size: 1.75rem; cursor: pointer; }
.service-gallery { display: flex; gap: .5rem; overflow-x: auto; }
.service-gallery img { height: 160px; border-radius: 8px; }
.service-tiers { width: 100%; border-collapse: collapse; }
.service-tiers th, .service-tiers td { border-bottom: 1px solid #e4e7ec; padding: .5rem; text-align: left; }
`

// scriptContent keeps the page current. A click listener on the container
// survives every swap, so handlers are never stacked.
const scriptContent = `
(function () {
  var body = document.body;
  var container = document.getElementById('services-container');
  var modal = document.getElementById('service-modal');
  var modalBody = document.getElementById('service-modal-body');
  var socketPath = body.dataset.socket;
  var fragmentPath = body.dataset.fragment;
  var detailPrefix = body.dataset.detail;
  var lastStamp = 0;
  var inflight = false;
  var again = false;

  function refresh() {
    if (inflight) { again = true; return; }
    inflight = true;
    fetch(fragmentPath, { cache: 'no-store' })
      .then(function (res) {
        if (!res.ok) { throw new Error('status ' + res.status); }
        return res.text();
      })
      .then(function (html) { container.innerHTML = html; })
      .catch(function (err) { console.warn('refreshing services:', err); })
      .then(function () {
        inflight = false;
        if (again) { again = false; refresh(); }
      });
  }

  function closeModal() {
    modal.hidden = true;
    modalBody.innerHTML = '';
  }

  container.addEventListener('click', function (e) {
    var card = e.target.closest('.clickable-service');
    if (!card) { return; }
    var key = card.dataset.id || card.dataset.service;
    fetch(detailPrefix + encodeURIComponent(key), { cache: 'no-store' })
      .then(function (res) {
        if (!res.ok) { throw new Error('status ' + res.status); }
        return res.text();
      })
      .then(function (html) {
        modalBody.innerHTML = html;
        modal.hidden = false;
      })
      .catch(function (err) {
        console.warn('loading service detail:', err);
        refresh();
      });
  });

  modal.addEventListener('click', function (e) {
    if (e.target === modal || e.target.closest('.service-modal-close')) { closeModal(); }
  });
  document.addEventListener('keydown', function (e) {
    if (e.key === 'Escape' && !modal.hidden) { closeModal(); }
  });

  function connect(delay) {
    if (!socketPath || !window.WebSocket) { return; }
    var scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
    var ws = new WebSocket(scheme + location.host + socketPath);
    ws.onopen = function () { delay = 1000; };
    ws.onmessage = function (e) {
      var frame;
      try { frame = JSON.parse(e.data); } catch (err) { return; }
      if (!frame || frame.type !== 'catalog_updated') { return; }
      if (frame.timestamp && frame.timestamp === lastStamp) { return; }
      lastStamp = frame.timestamp || lastStamp;
      refresh();
    };
    ws.onclose = function () {
      setTimeout(function () { connect(Math.min(delay * 2, 30000)); }, delay);
    };
  }

  connect(1000);
})();
`
