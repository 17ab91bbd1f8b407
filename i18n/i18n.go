// Package i18n holds the client's message catalog. Keys and placeholders use
// the same shape as the web client so task and error keys coming from the
// API resolve directly.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var supported = []language.Tag{language.English, language.German}

var matcher = language.NewMatcher(supported)

// Catalog resolves message keys for one negotiated locale, falling back to
// English for keys the locale lacks.
type Catalog struct {
	tag      language.Tag
	messages map[string]string
}

// New negotiates the best supported locale for the given preferences, which
// may be BCP 47 tags or Accept-Language style lists.
func New(prefs ...string) *Catalog {
	var tags []language.Tag
	for _, p := range prefs {
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	_, idx, _ := matcher.Match(tags...)
	tag := supported[idx]
	return &Catalog{tag: tag, messages: tables[tag]}
}

// Locale returns the negotiated locale key, e.g. "en" or "de".
func (c *Catalog) Locale() string {
	base, _ := c.tag.Base()
	return base.String()
}

// Has reports whether key resolves in this catalog or the English fallback.
func (c *Catalog) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// T resolves key and substitutes {name} placeholders from params. Unknown
// keys resolve to the key itself.
func (c *Catalog) T(key string, params map[string]any) string {
	msg, ok := c.lookup(key)
	if !ok {
		return key
	}
	return interpolate(msg, params)
}

func (c *Catalog) lookup(key string) (string, bool) {
	if msg, ok := c.messages[key]; ok {
		return msg, true
	}
	msg, ok := tables[language.English][key]
	return msg, ok
}

func interpolate(msg string, params map[string]any) string {
	if len(params) == 0 || !strings.Contains(msg, "{") {
		return msg
	}
	var b strings.Builder
	for {
		open := strings.IndexByte(msg, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(msg[open:], '}')
		if end < 0 {
			break
		}
		name := msg[open+1 : open+end]
		b.WriteString(msg[:open])
		if v, ok := params[name]; ok {
			b.WriteString(fmt.Sprint(v))
		} else {
			b.WriteString(msg[open : open+end+1])
		}
		msg = msg[open+end+1:]
	}
	b.WriteString(msg)
	return b.String()
}
