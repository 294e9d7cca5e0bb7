// Package web embeds the page templates and static assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/template/django/v3"
)

//go:embed views public
var content embed.FS

// Views returns the template tree rooted at views/
func Views() fs.FS {
	sub, err := fs.Sub(content, "views")
	if err != nil {
		panic(err)
	}
	return sub
}

// Public returns the static assets rooted at public/
func Public() fs.FS {
	sub, err := fs.Sub(content, "public")
	if err != nil {
		panic(err)
	}
	return sub
}

var registerFilters sync.Once

// NewViewEngine returns a django engine over the embedded views with
// helpers exposed as template globals
func NewViewEngine(helpers map[string]any) *django.Engine {
	registerFilters.Do(func() {
		pongo2.RegisterFilter("initial", filterInitial)
	})

	engine := django.NewFileSystem(http.FS(Views()), ".html")
	if len(helpers) > 0 {
		engine.AddFuncMap(helpers)
	}
	return engine
}

// filterInitial renders the upper-cased first character of a string:
//
//	{{ user.Email|initial }}
func filterInitial(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	s := strings.TrimSpace(in.String())
	if s == "" {
		return pongo2.AsValue(""), nil
	}
	r, _ := utf8.DecodeRuneInString(s)
	return pongo2.AsValue(string(unicode.ToUpper(r))), nil
}
