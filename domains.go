package securitas

import (
	"fmt"
	"strings"
)

// Per-country API endpoints. Countries without an entry fall back to the
// securitasdirect template, which is what the mobile app does too.
var endpoints = map[string]string{
	"AR": "https://customers.verisure.com.ar/owa-api/graphql",
	"BR": "https://customers.verisure.com.br/owa-api/graphql",
	"CL": "https://customers.verisure.cl/owa-api/graphql",
	"ES": "https://customers.securitasdirect.es/owa-api/graphql",
	"FR": "https://customers.securitasdirect.fr/owa-api/graphql",
	"GB": "https://customers.verisure.co.uk/owa-api/graphql",
	"IE": "https://customers.verisure.ie/owa-api/graphql",
	"IT": "https://customers.verisure.it/owa-api/graphql",
	"PT": "https://customers.securitasdirect.pt/owa-api/graphql",
}

// Request language per country. The backend wants "br" for Brazil, not
// "pt".
var languages = map[string]string{
	"AR": "ar",
	"BR": "br",
	"CL": "es",
	"ES": "es",
	"FR": "fr",
	"GB": "en",
	"IE": "en",
	"IT": "it",
	"PT": "pt",
}

// Endpoint returns the GraphQL URL for the given country code.
func Endpoint(country string) string {
	country = strings.ToUpper(country)
	if url, ok := endpoints[country]; ok {
		return url
	}
	return fmt.Sprintf(
		"https://customers.securitasdirect.%s/owa-api/graphql",
		strings.ToLower(country),
	)
}

// Language returns the request language for the given country code.
func Language(country string) string {
	if lang, ok := languages[strings.ToUpper(country)]; ok {
		return lang
	}
	return "en"
}
