package gateway

import (
	_ "embed"
	"html/template"

	"github.com/Masterminds/sprig/v3"
)

// LoginPageParams feeds the login form template.
type LoginPageParams struct {
	Error string
}

// DashboardPageParams feeds the dashboard shell template. The service data
// itself is loaded by the page from the JSON API, not rendered server-side.
type DashboardPageParams struct {
	Username     string
	Version      string
	AccountCount int
}

var (
	webTemplateSet = template.New("web").Funcs(sprig.HtmlFuncMap())

	//go:embed templates/login.html
	loginTemplateRaw string
	//go:embed templates/dashboard.html
	dashboardTemplateRaw string
)

func init() {
	if _, err := webTemplateSet.New("login.html").Parse(loginTemplateRaw); err != nil {
		panic(err)
	}
	if _, err := webTemplateSet.New("dashboard.html").Parse(dashboardTemplateRaw); err != nil {
		panic(err)
	}
}

// webTemplates returns the parsed page templates for gin's HTML renderer.
func webTemplates() *template.Template {
	return webTemplateSet
}
