package markup

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/ternarybob/arbor"
)

var (
	tagRegex        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`[ \t]+`)
	h2Regex         = regexp.MustCompile(`(?m)^##\s+`)
	deepHeadRegex   = regexp.MustCompile(`(?m)^#{5,6}\s+`)
	dashBulletRegex = regexp.MustCompile(`(?m)^(\s*)[-+]\s+`)
)

// Importer converts external HTML (pasted fragments, exported documents)
// into canonical markdown. Input is sanitized before it is walked.
type Importer struct {
	policy *bluemonday.Policy
	logger arbor.ILogger
}

// NewImporter creates an importer with a UGC sanitization policy that
// keeps citation chip attributes
func NewImporter(logger arbor.ILogger) *Importer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class", AttrCitationID, AttrCitationGroup, "title").OnElements("span")

	return &Importer{
		policy: policy,
		logger: logger,
	}
}

// Sanitize strips scripts, handlers and unknown markup from s
func (i *Importer) Sanitize(s string) string {
	return i.policy.Sanitize(s)
}

// Import sanitizes an editor-shaped HTML fragment and serializes it with the
// same rules as the live surface
func (i *Importer) Import(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	clean := i.Sanitize(s)
	result := ToModel(ParseHTML(clean))

	i.logger.Debug().
		Int("html_length", len(s)).
		Int("sanitized_length", len(clean)).
		Int("markdown_length", len(result)).
		Msg("Imported HTML fragment")

	return result
}

// Convert turns arbitrary HTML into canonical markdown using a general
// converter. Conversion failures fall back to tag stripping.
func (i *Importer) Convert(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}

	clean := i.Sanitize(s)

	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "*",
		StrongDelimiter:  "**",
		EmDelimiter:      "*",
	})

	converted, err := converter.ConvertString(clean)
	if err != nil {
		i.logger.Warn().Err(err).Msg("HTML conversion failed, using fallback")
		return stripTags(clean), nil
	}

	if strings.TrimSpace(converted) == "" {
		i.logger.Warn().
			Int("html_length", len(s)).
			Msg("HTML conversion produced empty output, applying fallback")
		return stripTags(clean), nil
	}

	return canonicalize(converted), nil
}

// canonicalize maps converter output onto the supported markdown subset
func canonicalize(s string) string {
	s = h2Regex.ReplaceAllString(s, "# ")
	s = deepHeadRegex.ReplaceAllString(s, "#### ")
	s = dashBulletRegex.ReplaceAllString(s, "$1* ")
	return Normalize(s)
}

func stripTags(s string) string {
	stripped := tagRegex.ReplaceAllString(s, "")
	stripped = whitespaceRegex.ReplaceAllString(stripped, " ")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return Normalize(replacer.Replace(stripped))
}
