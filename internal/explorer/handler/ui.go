package handler

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hospitaldata/explorer/internal/explorer"
	"github.com/hospitaldata/explorer/internal/explorer/service"
	"github.com/hospitaldata/explorer/pkg/logger"
)

type option struct {
	Value string
	Label string
}

var queryTypes = []option{
	{"find", "Basic Query"},
	{"insert", "Insert"},
	{"delete", "Delete"},
	{"update", "Update"},
	{"aggregate", "Aggregate"},
}

type page struct {
	Collections    []string
	Collection     string
	Op             string
	Ops            []option
	Kind           string
	Kinds          []option
	Attributes     []string
	EditAttributes []string
	Success        string
	Error          string
	Message        string
	Table          *explorer.Table
}

func registerUI(r *gin.Engine, svc service.Service, guard gin.HandlerFunc) {
	r.SetHTMLTemplate(template.Must(template.New("explorer").Parse(explorerHTML)))

	r.GET("/", func(c *gin.Context) {
		p := newPage(c, svc, c.Query("collection"), c.Query("op"), c.Query("kind"))
		c.HTML(http.StatusOK, "explorer", p)
	})

	r.POST("/ui/run", guard, func(c *gin.Context) {
		p := newPage(c, svc, c.PostForm("collection"), c.PostForm("op"), c.PostForm("kind"))
		status := runForm(c, svc, p)
		c.HTML(status, "explorer", p)
	})
}

func newPage(c *gin.Context, svc service.Service, collection, op, kind string) *page {
	p := &page{
		Collections: svc.Collections(c.Request.Context()),
		Collection:  collection,
		Op:          op,
		Ops:         queryTypes,
		Kind:        kind,
	}
	for _, k := range explorer.AggregateKinds {
		p.Kinds = append(p.Kinds, option{string(k.Kind), k.Label})
	}
	if !contains(p.Collections, p.Collection) && len(p.Collections) > 0 {
		p.Collection = p.Collections[0]
	}
	if p.Op == "" {
		p.Op = "find"
	}
	if p.Kind == "" {
		p.Kind = string(explorer.AggregateCount)
	}
	attrs, err := svc.ListAttributes(c.Request.Context(), p.Collection)
	if err != nil {
		logger.Warnf("list attributes for %q: %v", p.Collection, err)
	}
	p.Attributes = attrs
	for _, a := range attrs {
		if a != "_id" {
			p.EditAttributes = append(p.EditAttributes, a)
		}
	}
	return p
}

// runForm executes the submitted form and fills the page outcome.
func runForm(c *gin.Context, svc service.Service, p *page) int {
	ctx := c.Request.Context()
	var err error
	switch p.Op {
	case "find":
		attr := c.PostForm("attribute")
		if attr == "" {
			p.Message = explorer.MsgNoResults
			return http.StatusOK
		}
		var docs []explorer.Document
		docs, err = svc.Find(ctx, p.Collection, map[string]string{attr: c.PostForm("value")})
		if err == nil {
			p.showTable("Query Result:", docs)
		} else {
			p.Error = explorer.MsgQueryFailed
		}
	case "insert":
		var res explorer.InsertResult
		res, err = svc.Insert(ctx, p.Collection, formFields(c, p.EditAttributes))
		p.outcome(err == nil && res.Acknowledged, explorer.MsgInserted, explorer.MsgInsertFailed)
	case "delete":
		var ok bool
		ok, err = svc.Delete(ctx, p.Collection, c.PostForm("id"))
		p.outcome(err == nil && ok, explorer.MsgDeleted, explorer.MsgDeleteFailed)
	case "update":
		var ok bool
		req := explorer.UpdateRequest{Fields: formFields(c, p.EditAttributes), Clear: c.PostFormArray("clear")}
		ok, err = svc.Update(ctx, p.Collection, c.PostForm("id"), req)
		p.outcome(err == nil && ok, explorer.MsgUpdated, explorer.MsgUpdateFailed)
	case "aggregate":
		var rows []explorer.Document
		rows, err = svc.Aggregate(ctx, p.Collection, explorer.AggregateRequest{
			Kind:    explorer.AggregateKind(p.Kind),
			GroupBy: c.PostForm("group_by"),
			Field:   c.PostForm("field"),
			Value:   c.PostForm("value"),
			Order:   c.PostForm("order"),
		})
		if err == nil {
			p.showTable("Aggregation Result:", rows)
		} else {
			p.Error = explorer.MsgQueryFailed
		}
	default:
		p.Error = "Unknown query type."
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, explorer.ErrInvalidIdentifier):
		p.Success, p.Error = "", err.Error()
		return http.StatusBadRequest
	case err != nil && !service.IsInputError(err):
		logger.Errorf("ui %s on %q: %v", p.Op, p.Collection, err)
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func (p *page) outcome(ok bool, success, failure string) {
	if ok {
		p.Success = success
	} else {
		p.Error = failure
	}
}

func (p *page) showTable(title string, docs []explorer.Document) {
	tbl := explorer.NewTable(docs)
	if tbl.Empty() {
		p.Message = explorer.MsgNoResults
		return
	}
	p.Message = title
	p.Table = &tbl
}

// formFields collects the f_<attr> inputs. Blank inputs are kept; the
// translator decides what blank means for each operation.
func formFields(c *gin.Context, attrs []string) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if v, ok := c.GetPostForm("f_" + a); ok {
			out[a] = strings.TrimSpace(v)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const explorerHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Hospital Data Explorer</title>
  <style>
    body { font-family: sans-serif; margin: 2em; }
    table { border-collapse: collapse; margin-top: 1em; }
    th, td { border: 1px solid #ccc; padding: 4px 8px; }
    .ok { color: #176117; }
    .err { color: #a11; }
    label { display: block; margin: .4em 0; }
  </style>
</head>
<body>
<h1>Hospital Data Explorer</h1>
<form method="get" action="/">
  <label>Select Dataset
    <select name="collection">{{range .Collections}}<option value="{{.}}"{{if eq . $.Collection}} selected{{end}}>{{.}}</option>{{end}}</select>
  </label>
  <fieldset><legend>Select Query Type</legend>
    {{range .Ops}}<label><input type="radio" name="op" value="{{.Value}}"{{if eq .Value $.Op}} checked{{end}}> {{.Label}}</label>{{end}}
  </fieldset>
  {{if eq .Op "aggregate"}}<label>Select Aggregation Operation
    <select name="kind">{{range .Kinds}}<option value="{{.Value}}"{{if eq .Value $.Kind}} selected{{end}}>{{.Label}}</option>{{end}}</select>
  </label>{{end}}
  <button type="submit">Open</button>
</form>
<hr>
<form method="post" action="/ui/run">
  <input type="hidden" name="collection" value="{{.Collection}}">
  <input type="hidden" name="op" value="{{.Op}}">
  <input type="hidden" name="kind" value="{{.Kind}}">
{{if eq .Op "find"}}
  <h2>Basic Query</h2>
  <label>Select Attribute <select name="attribute">{{range .Attributes}}<option value="{{.}}">{{.}}</option>{{end}}</select></label>
  <label>Enter Value <input type="text" name="value"></label>
  <button type="submit">Execute</button>
{{else if eq .Op "insert"}}
  <h2>Insert Data</h2>
  <p>Inserting into collection: {{.Collection}}</p>
  {{range .EditAttributes}}<label>{{.}} <input type="text" name="f_{{.}}"></label>{{end}}
  <button type="submit">Insert</button>
{{else if eq .Op "delete"}}
  <h2>Delete Data</h2>
  <p>Deleting document from collection: {{.Collection}}</p>
  <label>Enter Document ID <input type="text" name="id"></label>
  <button type="submit">Delete</button>
{{else if eq .Op "update"}}
  <h2>Update Data</h2>
  <p>Updating document in collection: {{.Collection}}</p>
  <label>Enter Document ID <input type="text" name="id"></label>
  {{range .EditAttributes}}<label>Enter new value for {{.}} (leave blank to keep unchanged) <input type="text" name="f_{{.}}">
    <input type="checkbox" name="clear" value="{{.}}"> set empty</label>{{end}}
  <button type="submit">Update</button>
{{else if eq .Op "aggregate"}}
  <h2>Aggregate Query</h2>
  {{if or (eq .Kind "count") (eq .Kind "sum") (eq .Kind "average")}}
  <label>Select field to group by <select name="group_by">{{range .Attributes}}<option value="{{.}}">{{.}}</option>{{end}}</select></label>
  {{end}}
  {{if eq .Kind "sum"}}<label>Select numeric field to sum <select name="field">{{range .Attributes}}<option value="{{.}}">{{.}}</option>{{end}}</select></label>{{end}}
  {{if eq .Kind "average"}}<label>Select numeric field to average <select name="field">{{range .Attributes}}<option value="{{.}}">{{.}}</option>{{end}}</select></label>{{end}}
  {{if eq .Kind "match"}}
  <label>Select field to match <select name="field">{{range .Attributes}}<option value="{{.}}">{{.}}</option>{{end}}</select></label>
  <label>Enter value to match <input type="text" name="value"></label>
  {{end}}
  {{if eq .Kind "sort"}}
  <label>Select field to sort by <select name="field">{{range .Attributes}}<option value="{{.}}">{{.}}</option>{{end}}</select></label>
  <label>Select sort order <select name="order"><option value="asc">Ascending</option><option value="desc">Descending</option></select></label>
  {{end}}
  <button type="submit">Execute Aggregation</button>
{{end}}
</form>
{{with .Success}}<p class="ok">{{.}}</p>{{end}}
{{with .Error}}<p class="err">{{.}}</p>{{end}}
{{with .Message}}<p>{{.}}</p>{{end}}
{{with .Table}}<table>
  <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
  {{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
</table>{{end}}
</body>
</html>`
