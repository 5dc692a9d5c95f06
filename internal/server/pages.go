package server

import (
	"path"
	"strings"

	"github.com/flosch/pongo2/v6"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/tagforge/internal/errors"
)

// reloadScript reconnects after restarts, reloads on full_reload and shows
// the error overlay pushed with build_error.
const reloadScript = `<script id="tagforge-reload">
(function () {
  function connect() {
    var protocol = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(protocol + '//' + window.location.host + '/ws');
    ws.onmessage = function (event) {
      var message = JSON.parse(event.data);
      switch (message.type) {
        case 'full_reload':
          window.location.reload();
          break;
        case 'build_error':
          var old = document.getElementById('tagforge-error-overlay');
          if (old) { old.remove(); }
          document.body.insertAdjacentHTML('beforeend', message.content);
          break;
      }
    };
    ws.onclose = function () { setTimeout(connect, 2000); };
  }
  connect();
})();
</script>`

// injectReloadScript places the reload script before the last </body>, or
// at the end of documents without one.
func injectReloadScript(page string) string {
	if i := strings.LastIndex(strings.ToLower(page), "</body>"); i >= 0 {
		return page[:i] + reloadScript + page[i:]
	}

	return page + reloadScript
}

var indexTemplate = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>tagforge preview</title>
  <style>
    body { font-family: system-ui, -apple-system, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
    .container { max-width: 960px; margin: 0 auto; background: white; padding: 20px; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
    h1 { color: #333; border-bottom: 2px solid #007acc; padding-bottom: 10px; }
    li { margin: 6px 0; }
    .path { color: #666; font-size: 12px; margin-left: 8px; }
    code { background: #eef; padding: 1px 4px; border-radius: 3px; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Documents</h1>
    {% if documents %}<ul>
    {% for doc in documents %}<li><a href="/{{ doc.path }}">{{ doc.title }}</a><span class="path">{{ doc.path }}</span></li>
    {% endfor %}</ul>{% else %}<p>No documents match the build patterns.</p>{% endif %}
    <h1>Components</h1>
    {% if components %}<p>{% for name in components %}<code>&lt;{{ name }}&gt;</code> {% endfor %}</p>{% else %}<p>No components found.</p>{% endif %}
  </div>
</body>
</html>
`))

// documentTitle turns "blog/my-first_post.html" into "Blog / My First Post".
func documentTitle(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	parts := strings.Split(rel, "/")
	caser := cases.Title(language.English)
	for i, part := range parts {
		part = strings.NewReplacer("-", " ", "_", " ").Replace(part)
		parts[i] = caser.String(part)
	}

	return strings.Join(parts, " / ")
}

func indexPage(documents, components []string) (string, error) {
	docs := make([]map[string]string, 0, len(documents))
	for _, rel := range documents {
		docs = append(docs, map[string]string{"path": rel, "title": documentTitle(rel)})
	}

	return indexTemplate.Execute(pongo2.Context{
		"documents":  docs,
		"components": components,
	})
}

// errorPage shows the expansion failure of rel as an overlay on an empty
// page that reloads once the failure is fixed.
func errorPage(rel string, err error) string {
	collector := errors.NewErrorCollector()
	collector.Add(errors.NewBuildErrorFromError(rel, err))

	return injectReloadScript("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>tagforge error</title></head><body>" +
		collector.ErrorOverlay() + "</body></html>")
}
