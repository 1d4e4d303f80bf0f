// Package i18n renders notification and error messages from embedded TOML
// catalogs with go-i18n.
package i18n

import (
	"embed"
	"io/fs"
	"log"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"trainingreg/internal/ports/output"
)

//go:embed active.*.toml
var localeFS embed.FS

var _ output.Translator = (*Translator)(nil)

// Translator looks messages up in every embedded active.<lang>.toml file.
// Localizers are built once per requested locale string.
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	localizers      sync.Map // locale string -> *i18n.Localizer
}

// NewTranslator loads the embedded catalogs. defaultLocale (e.g. "nl") is the
// fallback for missing translations; an unparsable value means English.
func NewTranslator(defaultLocale string) *Translator {
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.English
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, _ := fs.Glob(localeFS, "active.*.toml")
	for _, file := range files {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			log.Printf("⚠️ i18n: failed to load %s: %v", file, err)
		}
	}
	return &Translator{bundle: bundle, defaultLanguage: tag}
}

// Languages lists the locales that have a catalog.
func (t *Translator) Languages() []language.Tag {
	return t.bundle.LanguageTags()
}

// T renders key for locale, which may also be an Accept-Language header
// value. Lookups fall back to the default locale, then to the key itself.
func (t *Translator) T(locale, key string, data map[string]any) string {
	if key == "" {
		return ""
	}
	msg, err := t.localizer(locale).Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		log.Printf("⚠️ i18n: no message %s for %q: %v", key, locale, err)
		return key
	}
	return msg
}

func (t *Translator) localizer(locale string) *i18n.Localizer {
	if l, ok := t.localizers.Load(locale); ok {
		return l.(*i18n.Localizer)
	}
	var langs []string
	if locale != "" {
		langs = append(langs, locale)
	}
	langs = append(langs, t.defaultLanguage.String())
	l, _ := t.localizers.LoadOrStore(locale, i18n.NewLocalizer(t.bundle, langs...))
	return l.(*i18n.Localizer)
}
