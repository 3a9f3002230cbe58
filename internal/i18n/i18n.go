// Package i18n provides the translate(key) capability used by the renderers.
// Locale documents are nested JSON objects, one per language, addressed with
// dotted keys ("centers.error.retry"). Every supported document is read when
// the catalog is built; one that could not be read then is retried on use.
// Loaded documents are kept for the life of the process.
package i18n

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

// DefaultLang is used for unsupported codes and failed document loads.
const DefaultLang = "fr"

// CookieName holds the last selected language across visits.
const CookieName = "cemedis-lang"

// Supported lists every language the site can be switched to.
var Supported = []string{"fr", "en", "es", "pt", "ar", "zh", "sr", "pl", "de"}

//go:embed locales/*.json
var embedded embed.FS

// Embedded returns the locale documents shipped with the binary.
func Embedded() fs.FS {
	sub, _ := fs.Sub(embedded, "locales")
	return sub
}

// ErrNoDocument is returned when neither the requested nor the default
// language document can be read.
var ErrNoDocument = errors.New("i18n: no locale document")

// Catalog loads locale documents into a go-i18n bundle. The bundle is
// written under mu and read by every Localizer under mu's read lock.
type Catalog struct {
	mu     sync.RWMutex
	src    fs.FS
	bundle *goi18n.Bundle
	docs   map[string]map[string]any
	dirs   map[string]string
}

// NewCatalog reads documents named <lang>.json from src.
func NewCatalog(src fs.FS) *Catalog {
	c := &Catalog{
		src:    src,
		bundle: goi18n.NewBundle(language.French),
		docs:   make(map[string]map[string]any),
		dirs:   make(map[string]string),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, lang := range Supported {
		if err := c.load(lang); err != nil {
			logger.L().Debug("i18n_preload_skip", "lang", lang, "err", err)
		}
	}
	return c
}

// IsSupported reports whether lang is one of Supported.
func IsSupported(lang string) bool {
	for _, l := range Supported {
		if l == lang {
			return true
		}
	}
	return false
}

// Resolve maps any code to a supported language.
func Resolve(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if IsSupported(lang) {
		return lang
	}
	return DefaultLang
}

// Negotiate picks the page language: query parameter, then the stored
// cookie, then the first Accept-Language entry. The first non-empty
// candidate wins and is validated afterwards, so an unsupported query code
// falls back to the default rather than to the cookie.
func Negotiate(queryLang, storedLang, acceptLanguage string) string {
	lang := queryLang
	if lang == "" {
		lang = storedLang
	}
	if lang == "" {
		lang = browserLang(acceptLanguage)
	}
	return Resolve(lang)
}

func browserLang(header string) string {
	if header == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	base, _ := tags[0].Base()
	return base.String()
}

// load reads and registers one document. Callers hold c.mu.
func (c *Catalog) load(lang string) error {
	if _, ok := c.docs[lang]; ok {
		return nil
	}
	b, err := fs.ReadFile(c.src, lang+".json")
	if err != nil {
		return fmt.Errorf("read %s locale: %w", lang, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decode %s locale: %w", lang, err)
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return err
	}
	flat := make(map[string]string)
	flatten("", doc, flat)
	msgs := make([]*goi18n.Message, 0, len(flat))
	for id, text := range flat {
		msgs = append(msgs, &goi18n.Message{ID: id, Other: text})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	if err := c.bundle.AddMessages(tag, msgs...); err != nil {
		return err
	}
	c.docs[lang] = doc
	c.dirs[lang] = "ltr"
	if d, _ := doc["dir"].(string); d == "rtl" {
		c.dirs[lang] = "rtl"
	}
	logger.L().Debug("i18n_loaded", "lang", lang, "messages", len(msgs))
	return nil
}

func flatten(prefix string, v map[string]any, out map[string]string) {
	for k, x := range v {
		id := k
		if prefix != "" {
			id = prefix + "." + k
		}
		switch t := x.(type) {
		case string:
			out[id] = t
		case map[string]any:
			flatten(id, t, out)
		}
	}
}

// ensure loads lang, falling back to the default language when the
// document is missing or broken. It returns the language actually loaded.
func (c *Catalog) ensure(lang string) (string, error) {
	lang = Resolve(lang)
	c.mu.RLock()
	_, ok := c.docs[lang]
	c.mu.RUnlock()
	if ok {
		return lang, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.load(lang)
	if err == nil {
		return lang, nil
	}
	logger.L().Warn("i18n_load_error", "lang", lang, "err", err)
	if lang == DefaultLang {
		return "", fmt.Errorf("%w: %v", ErrNoDocument, err)
	}
	if err := c.load(DefaultLang); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDocument, err)
	}
	return DefaultLang, nil
}

// Localizer returns the translator for lang. It never fails: when nothing
// can be loaded the localizer answers every key with the key itself.
func (c *Catalog) Localizer(lang string) *Localizer {
	resolved, err := c.ensure(lang)
	if err != nil {
		return &Localizer{lang: DefaultLang, dir: "ltr"}
	}
	c.mu.RLock()
	dir := c.dirs[resolved]
	c.mu.RUnlock()
	return &Localizer{
		lang: resolved,
		dir:  dir,
		mu:   &c.mu,
		loc:  goi18n.NewLocalizer(c.bundle, resolved),
	}
}

// Document returns the raw nested document for lang, for clients that
// substitute text themselves, and the language it was resolved to.
func (c *Catalog) Document(lang string) (map[string]any, string, error) {
	resolved, err := c.ensure(lang)
	if err != nil {
		return nil, "", err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docs[resolved], resolved, nil
}

// Localizer translates dotted keys for one language.
type Localizer struct {
	lang string
	dir  string
	mu   *sync.RWMutex
	loc  *goi18n.Localizer
}

// Lang is the resolved language code.
func (l *Localizer) Lang() string { return l.lang }

// Dir is "ltr" or "rtl".
func (l *Localizer) Dir() string { return l.dir }

// T returns the translation for key, or key itself when it is unknown.
func (l *Localizer) T(key string) string { return l.Tf(key, nil) }

// Tf is T with template data for messages such as "{{.Km}} km away".
func (l *Localizer) Tf(key string, data map[string]any) string {
	if l == nil || l.loc == nil {
		return key
	}
	l.mu.RLock()
	msg, _ := l.loc.Localize(&goi18n.LocalizeConfig{MessageID: key, TemplateData: data})
	l.mu.RUnlock()
	if msg == "" {
		return key
	}
	return msg
}
