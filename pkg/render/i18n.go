package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mahara/pieform/pkg/model"
)

// Metadata keys naming translation keys for element strings.
const (
	TitleKeyMeta       = "titlekey"
	DescriptionKeyMeta = "descriptionkey"
	HelpKeyMeta        = "helpkey"
)

// ErrMissingTranslator is passed to the missing handler when no translator
// was configured.
var ErrMissingTranslator = errors.New("render: translator not configured")

// ErrMissingTranslation is returned by MapTranslator for unknown keys.
var ErrMissingTranslation = errors.New("render: translation not found")

// Translator resolves a string key for a locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// MissingTranslationHandler chooses the text used when a key cannot be
// resolved. fallback is the text the descriptor already carries.
type MissingTranslationHandler func(locale, key, fallback string, err error) string

// MapTranslator is an in-memory translator keyed by locale then key. Values
// are fmt format strings.
type MapTranslator map[string]map[string]string

// Translate implements Translator. Unknown locales fall back to "en".
func (m MapTranslator) Translate(locale, key string, args ...any) (string, error) {
	for _, candidate := range []string{locale, baseLocale(locale), "en"} {
		if candidate == "" {
			continue
		}
		if format, ok := m[candidate][key]; ok {
			if len(args) == 0 {
				return format, nil
			}
			return fmt.Sprintf(format, args...), nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrMissingTranslation, locale, key)
}

func baseLocale(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		return locale[:i]
	}
	return ""
}

// Localize rewrites element titles, descriptions and help text in place for
// every element whose metadata names a translation key. Failures are routed
// through opts.OnMissing; by default the existing text is kept.
func Localize(desc *model.Descriptor, opts RenderOptions) {
	if desc == nil {
		return
	}
	onMissing := opts.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}
	localizeElements(desc.Elements, opts.Locale, opts.Translator, onMissing)
}

func localizeElements(elements []model.Element, locale string, t Translator, onMissing MissingTranslationHandler) {
	for i := range elements {
		el := &elements[i]
		if key := strings.TrimSpace(el.Metadata[TitleKeyMeta]); key != "" {
			el.Title = translate(locale, key, el.Title, t, onMissing)
		}
		if key := strings.TrimSpace(el.Metadata[DescriptionKeyMeta]); key != "" {
			el.Description = translate(locale, key, el.Description, t, onMissing)
		}
		if key := strings.TrimSpace(el.Metadata[HelpKeyMeta]); key != "" {
			el.Help = translate(locale, key, el.Help, t, onMissing)
		}
		if len(el.Elements) > 0 {
			localizeElements(el.Elements, locale, t, onMissing)
		}
	}
}

func translate(locale, key, fallback string, t Translator, onMissing MissingTranslationHandler) string {
	if t == nil {
		return onMissing(locale, key, fallback, ErrMissingTranslator)
	}
	result, err := t.Translate(locale, key)
	if err == nil && strings.TrimSpace(result) != "" {
		return result
	}
	return onMissing(locale, key, fallback, err)
}

func missingTranslationDefault(_ string, key, fallback string, _ error) string {
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	return "[[" + key + "]]"
}
