package web

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/duckalog/duckalog/internal/core/domain"
	"github.com/duckalog/duckalog/internal/core/port"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

const stylesheet = `
body { font-family: system-ui, sans-serif; margin: 0; color: #1f2328; }
header { background: #24292f; padding: 0.75rem 1.5rem; }
header a { color: #fff; margin-right: 1.25rem; text-decoration: none; }
main { padding: 1.5rem; max-width: 72rem; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border: 1px solid #d0d7de; padding: 0.35rem 0.6rem; text-align: left; font-size: 0.9rem; }
th { background: #f6f8fa; }
textarea { width: 100%; font-family: ui-monospace, monospace; }
pre { background: #f6f8fa; padding: 0.75rem; overflow-x: auto; }
.muted { color: #656d76; }
.error { border-left: 4px solid #cf222e; background: #ffebe9; padding: 0.75rem; }
.tag { background: #ddf4ff; border-radius: 1rem; padding: 0 0.5rem; margin-right: 0.25rem; font-size: 0.8rem; }
`

func page(title string, body ...gomponents.Node) gomponents.Node {
	return html.Doctype(
		html.HTML(
			html.Lang("en"),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
				html.TitleEl(gomponents.Text(title+" | duckalog")),
				html.StyleEl(gomponents.Raw(stylesheet)),
			),
			html.Body(
				html.Header(
					html.Nav(
						html.A(html.Href("/"), gomponents.Text("Views")),
						html.A(html.Href("/query"), gomponents.Text("Query")),
					),
				),
				html.Main(
					html.H1(gomponents.Text(title)),
					gomponents.Group(body),
				),
			),
		),
	)
}

func errorPage(title, message string) gomponents.Node {
	return page(title, html.Div(html.Class("error"), gomponents.Text(message)))
}

func viewHref(schema, name string) string {
	return "/views/" + url.PathEscape(schema) + "/" + url.PathEscape(name)
}

func queryHref(sql string) string {
	return "/query?" + url.Values{"sql": {sql}}.Encode()
}

func tags(values []string) gomponents.Node {
	nodes := make([]gomponents.Node, 0, len(values))
	for _, t := range values {
		nodes = append(nodes, html.Span(html.Class("tag"), gomponents.Text(t)))
	}
	return gomponents.Group(nodes)
}

func viewsPage(views []port.ViewInfo) gomponents.Node {
	if len(views) == 0 {
		return page("Catalog", html.P(html.Class("muted"), gomponents.Text("The catalog has no views yet. Run duckalog build first.")))
	}

	rows := make([]gomponents.Node, 0, len(views))
	for _, v := range views {
		rows = append(rows, html.Tr(
			html.Td(gomponents.Text(v.Schema)),
			html.Td(html.A(html.Href(viewHref(v.Schema, v.Name)), gomponents.Text(v.Name))),
			html.Td(gomponents.Text(v.Type)),
			html.Td(gomponents.Text(strconv.Itoa(v.ColumnCount))),
			html.Td(gomponents.Text(v.Comment)),
			html.Td(tags(v.Tags)),
		))
	}

	return page("Catalog",
		html.P(html.Class("muted"), gomponents.Textf("%d view(s)", len(views))),
		html.Table(
			html.THead(html.Tr(
				html.Th(gomponents.Text("Schema")),
				html.Th(gomponents.Text("Name")),
				html.Th(gomponents.Text("Type")),
				html.Th(gomponents.Text("Columns")),
				html.Th(gomponents.Text("Description")),
				html.Th(gomponents.Text("Tags")),
			)),
			html.TBody(gomponents.Group(rows)),
		),
	)
}

func viewPage(d *port.ViewDetail) gomponents.Node {
	rows := make([]gomponents.Node, 0, len(d.Columns))
	for _, c := range d.Columns {
		nullable := "NOT NULL"
		if c.IsNullable {
			nullable = "NULL"
		}
		rows = append(rows, html.Tr(
			html.Td(gomponents.Text(c.Name)),
			html.Td(html.Code(gomponents.Text(c.DataType))),
			html.Td(gomponents.Text(nullable)),
			html.Td(gomponents.Text(string(c.Mask))),
			html.Td(gomponents.Text(c.Comment)),
		))
	}

	sample := "SELECT * FROM " + domain.QualifiedName(d.Schema, d.Name) + " LIMIT 100"

	return page(d.Schema+"."+d.Name,
		gomponents.If(d.Comment != "", html.P(gomponents.Text(d.Comment))),
		html.P(tags(d.Tags)),
		html.P(
			html.A(html.Href(queryHref(sample)), gomponents.Text("Query this view")),
			gomponents.Text(" · "),
			html.A(html.Href(viewHref(d.Schema, d.Name)+"/profile"), gomponents.Text("Profile")),
		),
		html.Table(
			html.THead(html.Tr(
				html.Th(gomponents.Text("Column")),
				html.Th(gomponents.Text("Type")),
				html.Th(gomponents.Text("Nullable")),
				html.Th(gomponents.Text("Mask")),
				html.Th(gomponents.Text("Description")),
			)),
			html.TBody(gomponents.Group(rows)),
		),
		gomponents.If(d.Definition != "", gomponents.Group([]gomponents.Node{
			html.H2(gomponents.Text("Definition")),
			html.Pre(gomponents.Text(d.Definition)),
		})),
	)
}

func profilePage(p *domain.ViewProfile) gomponents.Node {
	rows := make([]gomponents.Node, 0, len(p.Columns))
	for _, c := range p.Columns {
		rows = append(rows, html.Tr(
			html.Td(gomponents.Text(c.Name)),
			html.Td(html.Code(gomponents.Text(c.Type))),
			html.Td(gomponents.Text(c.Min)),
			html.Td(gomponents.Text(c.Max)),
			html.Td(gomponents.Text(strconv.FormatInt(c.ApproxDistinct, 10))),
			html.Td(gomponents.Textf("%.1f%%", c.NullPercent)),
			html.Td(gomponents.Text(string(c.Cardinality))),
		))
	}

	return page("Profile of "+p.Schema+"."+p.Name,
		html.P(html.Class("muted"), gomponents.Textf("%d row(s)", p.RowCount)),
		html.Table(
			html.THead(html.Tr(
				html.Th(gomponents.Text("Column")),
				html.Th(gomponents.Text("Type")),
				html.Th(gomponents.Text("Min")),
				html.Th(gomponents.Text("Max")),
				html.Th(gomponents.Text("Distinct (approx)")),
				html.Th(gomponents.Text("Null %")),
				html.Th(gomponents.Text("Cardinality")),
			)),
			html.TBody(gomponents.Group(rows)),
		),
	)
}

func cellString(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

// queryError is shown above the form when a query does not run. Message is
// rendered verbatim, separate from the heading.
type queryError struct {
	Title   string
	Message string
}

func queryPage(sql string, result *port.QueryResult, runErr *queryError) gomponents.Node {
	resultNode := gomponents.Node(html.P(html.Class("muted"), gomponents.Text("Only SELECT and WITH queries are accepted.")))

	switch {
	case runErr != nil:
		resultNode = html.Div(html.Class("error"),
			html.H2(gomponents.Text(runErr.Title)),
			html.Pre(gomponents.Text(runErr.Message)),
		)
	case result != nil:
		header := make([]gomponents.Node, 0, len(result.Columns))
		for _, c := range result.Columns {
			header = append(header, html.Th(gomponents.Text(c)))
		}
		rows := make([]gomponents.Node, 0, len(result.Rows))
		for _, row := range result.Rows {
			cells := make([]gomponents.Node, 0, len(result.Columns))
			for _, c := range result.Columns {
				cells = append(cells, html.Td(gomponents.Text(cellString(row[c]))))
			}
			rows = append(rows, html.Tr(gomponents.Group(cells)))
		}

		meta := fmt.Sprintf("%d row(s)", len(result.Rows))
		if result.Truncated {
			meta += ", truncated at the row limit"
		}
		resultNode = html.Div(
			html.P(html.Class("muted"), gomponents.Text(meta)),
			html.Table(
				html.THead(html.Tr(gomponents.Group(header))),
				html.TBody(gomponents.Group(rows)),
			),
		)
	}

	return page("Query",
		html.Form(
			html.Method("post"),
			html.Action("/query"),
			html.Textarea(html.Name("sql"), html.Rows("8"), html.Required(), gomponents.Text(sql)),
			html.P(html.Button(html.Type("submit"), gomponents.Text("Run query"))),
		),
		resultNode,
	)
}
