package analyzer

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/pageweight/internal/model"
)

// signature maps a content or URL pattern to the purpose of an element.
type signature struct {
	// pattern is matched against a URL or inline content.
	pattern *regexp.Regexp

	// description is the human-readable purpose.
	description string

	// visibility tells whether the element is visible to visitors.
	visibility model.Visibility

	// thirdParty marks services that are not part of the audited site.
	thirdParty bool
}

func sig(pattern, description string, visibility model.Visibility, thirdParty bool) signature {
	return signature{
		pattern:     regexp.MustCompile(`(?i)` + pattern),
		description: description,
		visibility:  visibility,
		thirdParty:  thirdParty,
	}
}

const (
	user    = model.VisibilityUser
	backend = model.VisibilityBackend
)

// resourceSignatures identify external scripts, stylesheets, iframes and
// noscript fallbacks by URL.
var resourceSignatures = []signature{
	// Analytics
	sig(`google[-_]?analytics|ga\.js|analytics\.js`, "Google Analytics", backend, true),
	sig(`gtag/js|googletagmanager\.com/gtag`, "Google Analytics 4 (gtag)", backend, true),
	sig(`googletagmanager\.com/(gtm|ns\.html)`, "Google Tag Manager", backend, true),
	sig(`hotjar\.com`, "Hotjar (heatmaps/recordings)", backend, true),
	sig(`fullstory\.com|fs\.js`, "FullStory (session replay)", backend, true),
	sig(`heap[-_]?analytics|heapanalytics\.com`, "Heap Analytics", backend, true),
	sig(`amplitude\.com|amplitude\.min\.js`, "Amplitude Analytics", backend, true),
	sig(`mixpanel\.com|mixpanel\.min\.js`, "Mixpanel Analytics", backend, true),
	sig(`segment\.com|analytics\.min\.js|cdn\.segment`, "Segment (analytics router)", backend, true),
	sig(`tealium\.com|utag\.js`, "Tealium (tag management)", backend, true),
	sig(`adobe.*analytics|omniture|s_code\.js`, "Adobe Analytics", backend, true),
	sig(`clarity\.ms|clarity\.js`, "Microsoft Clarity", backend, true),

	// Advertising and tracking pixels
	sig(`connect\.facebook\.net|fbevents\.js|fbq\(|facebook\.com/tr`, "Facebook/Meta Pixel", backend, true),
	sig(`googleads|google_ads|conversion\.js|adservices`, "Google Ads conversion tracking", backend, true),
	sig(`snap\.licdn|linkedin\.com/insight|_linkedin_`, "LinkedIn Insight Tag", backend, true),
	sig(`tiktok\.com/i18n|ttq\.`, "TikTok Pixel", backend, true),
	sig(`pinterest\.com/ct\.js|pintrk\(`, "Pinterest Tag", backend, true),
	sig(`ads\.twitter|static\.ads-twitter`, "Twitter/X Ads Pixel", backend, true),
	sig(`criteo\.com|criteo\.net`, "Criteo (retargeting)", backend, true),

	// Chat and support
	sig(`intercom\.io|intercomcdn\.com|widget\.intercom`, "Intercom (chat/support widget)", user, true),
	sig(`drift\.com|js\.driftt\.com`, "Drift (chat widget)", user, true),
	sig(`zendesk\.com|zdassets\.com|zopim`, "Zendesk (support widget)", user, true),
	sig(`livechat|livechatinc\.com`, "LiveChat widget", user, true),
	sig(`tawk\.to`, "Tawk.to (chat widget)", user, true),
	sig(`crisp\.chat`, "Crisp (chat widget)", user, true),
	sig(`gorgias`, "Gorgias (support widget)", user, true),

	// E-commerce platforms
	sig(`cdn\.shopify\.com`, "Shopify platform script", backend, true),
	sig(`shopify-analytics|shopify_analytics`, "Shopify Analytics", backend, true),
	sig(`klaviyo\.com|static\.klaviyo`, "Klaviyo (email marketing)", backend, true),
	sig(`yotpo\.com`, "Yotpo (reviews widget)", user, true),
	sig(`judge\.me`, "Judge.me (reviews widget)", user, true),
	sig(`stamped\.io`, "Stamped.io (reviews/loyalty)", user, true),
	sig(`loox\.io`, "Loox (reviews widget)", user, true),
	sig(`recharge\.com|rechargepayments`, "ReCharge (subscriptions)", user, true),
	sig(`afterpay`, "Afterpay (BNPL widget)", user, true),
	sig(`klarna`, "Klarna (BNPL widget)", user, true),

	// Fonts
	sig(`fonts\.googleapis\.com|fonts\.gstatic\.com`, "Google Fonts", user, true),
	sig(`use\.typekit\.net|typekit`, "Adobe Fonts / Typekit", user, true),

	// Frameworks and CDNs
	sig(`jquery\.min\.js|jquery[-.]\d`, "jQuery library", backend, true),
	sig(`react\.production\.min|react-dom`, "React framework", backend, true),
	sig(`bootstrap\.min\.(js|css)`, "Bootstrap framework", user, true),
	sig(`unpkg\.com|cdnjs\.cloudflare\.com|cdn\.jsdelivr`, "Public CDN resource", backend, true),

	// Consent and privacy
	sig(`cookiebot`, "Cookiebot (consent management)", user, true),
	sig(`onetrust\.com|optanon`, "OneTrust (consent management)", user, true),
	sig(`trustarc|truste\.com`, "TrustArc (privacy management)", user, true),

	// Monitoring
	sig(`sentry\.io|browser\.sentry`, "Sentry (error monitoring)", backend, true),
	sig(`newrelic\.com|nr-data\.net|NREUM`, "New Relic (APM)", backend, true),
	sig(`datadog.*rum|datadoghq\.com`, "Datadog RUM", backend, true),

	// Video embeds
	sig(`youtube\.com/embed|youtube-nocookie\.com`, "YouTube embed", user, true),
	sig(`player\.vimeo\.com`, "Vimeo embed", user, true),
	sig(`google\.com/maps|maps\.google`, "Google Maps embed", user, true),
}

// inlineSignatures identify inline script payloads by content.
var inlineSignatures = []signature{
	sig(`gtag\s*\(|dataLayer\.push`, "Google Tag Manager / gtag inline config", backend, true),
	sig(`fbq\s*\(`, "Facebook Pixel inline initialization", backend, true),
	sig(`_learnq|klaviyo`, "Klaviyo inline tracking", backend, true),
	sig(`shopify\..*analytics`, "Shopify inline analytics", backend, true),
	sig(`ttq\.`, "TikTok Pixel inline initialization", backend, true),
	sig(`pintrk\s*\(`, "Pinterest Tag inline initialization", backend, true),
	sig(`\bhj\s*\(|_hjSettings`, "Hotjar inline initialization", backend, true),
	sig(`intercomSettings|window\.Intercom`, "Intercom inline configuration", user, true),
	sig(`window\.__reactRouterContext`, "React Router / Hydrogen hydration state (large data payload)", backend, false),
	sig(`window\.__REDUX_STATE__`, "Redux initial state payload", backend, false),
	sig(`window\.__NEXT_DATA__|id="__NEXT_DATA__"`, "Next.js page data payload", backend, false),
	sig(`window\.__NUXT__`, "Nuxt state payload", backend, false),
	sig(`Shopify\.theme`, "Shopify theme configuration", backend, false),
}

// jsonLDSignatures identify structured data blocks by schema type.
var jsonLDSignatures = []signature{
	sig(`"@type"\s*:\s*"Product"`, "Product structured data (JSON-LD)", backend, false),
	sig(`"@type"\s*:\s*"BreadcrumbList"`, "Breadcrumb structured data (JSON-LD)", backend, false),
	sig(`"@type"\s*:\s*"Organization"`, "Organization structured data (JSON-LD)", backend, false),
	sig(`"@type"\s*:\s*"WebSite"`, "Website structured data (JSON-LD)", backend, false),
	sig(`"@type"\s*:\s*"Article"`, "Article structured data (JSON-LD)", backend, false),
	sig(`"@type"\s*:\s*"CollectionPage"`, "Collection page structured data (JSON-LD)", backend, false),
	sig(`"@type"\s*:\s*"ItemList"`, "Item list structured data (JSON-LD)", backend, false),
	sig(`"@type"\s*:\s*"FAQPage"`, "FAQ structured data (JSON-LD)", backend, false),
}

// match returns the first signature matching s.
func match(table []signature, s string) (signature, bool) {
	for _, entry := range table {
		if entry.pattern.MatchString(s) {
			return entry, true
		}
	}
	return signature{}, false
}

// snippetLength is the length of the content preview used in descriptions.
const snippetLength = 80

// describeInline classifies inline script content.
func describeInline(content string) signature {
	if s, ok := match(inlineSignatures, content); ok {
		return s
	}

	snippet := collapseSpace(content)
	if len(snippet) > snippetLength {
		snippet = truncate(snippet, snippetLength) + "..."
	}
	return signature{
		description: "Custom inline code (" + snippet + ")",
		visibility:  backend,
	}
}

// describeJSONLD classifies a JSON or JSON-LD script block.
func describeJSONLD(content string) signature {
	if s, ok := match(jsonLDSignatures, content); ok {
		return s
	}
	if s, ok := match(inlineSignatures, content); ok {
		return s
	}
	return signature{description: "Structured data (JSON-LD)", visibility: backend}
}

// describeSVG classifies an inline <svg> element.
func describeSVG(n *html.Node) signature {
	var hasSymbol, hasUse bool
	walk(n, func(c *html.Node) {
		if c.Type != html.ElementNode {
			return
		}
		switch c.Data {
		case "symbol":
			hasSymbol = true
		case "use":
			hasUse = true
		}
	})

	switch {
	case hasSymbol:
		return signature{description: "SVG symbol sprite sheet", visibility: user}
	case hasUse:
		return signature{description: "SVG icon (via <use> reference)", visibility: user}
	case isHidden(n) || hasClassToken(attr(n, "class"), "hidden"):
		return signature{description: "Hidden SVG sprite sheet", visibility: backend}
	case attr(n, "aria-hidden") == "true":
		return signature{description: "Decorative SVG icon", visibility: user}
	}
	return signature{description: "Inline SVG graphic", visibility: user}
}

// describeDataURI classifies a data: URI by media type.
func describeDataURI(uri string) signature {
	lower := strings.ToLower(uri)
	switch {
	case strings.HasPrefix(lower, "data:image/svg"):
		return signature{description: "Inline SVG data URI", visibility: user}
	case strings.HasPrefix(lower, "data:image/"):
		return signature{description: "Inline base64-encoded image", visibility: user}
	case strings.HasPrefix(lower, "data:font/"), strings.HasPrefix(lower, "data:application/font"),
		strings.HasPrefix(lower, "data:application/x-font"):
		return signature{description: "Inline base64-encoded font", visibility: user}
	case strings.HasPrefix(lower, "data:application/json"):
		return signature{description: "Inline JSON data URI", visibility: backend}
	}
	return signature{description: "Inline data URI", visibility: backend}
}
