package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/outreach-engine/internal/model"
)

func modelTarget(industry, country, state string) model.Target {
	return model.Target{Industry: industry, Country: country, State: state}
}

func TestQualifies(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"clean business site", "https://joesplumbing.com", true},
		{"clean with path", "https://joesplumbing.com/services", true},
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"facebook", "https://www.facebook.com/joesplumbing", false},
		{"facebook subdomain", "https://m.facebook.com/joesplumbing", false},
		{"yelp", "https://www.yelp.com/biz/joes-plumbing-austin", false},
		{"yellowpages", "https://www.yellowpages.com/austin-tx/plumbers", false},
		{"linkedin", "https://linkedin.com/company/joes", false},
		{"wikipedia", "https://en.wikipedia.org/wiki/Plumbing", false},
		{"careers page", "https://somebiz.com/careers", false},
		{"jobs page", "https://somebiz.com/jobs/openings", false},
		{"about page", "https://somebiz.com/about", false},
		{"contact page", "https://somebiz.com/contact", false},
		{"team page", "https://somebiz.com/team", false},
		{"press page", "https://somebiz.com/press/releases", false},
		{"edu", "https://plumbing.university.edu", false},
		{"gov", "https://licensing.texas.gov/plumbers", false},
		{"wiki path", "https://somebiz.com/wiki/plumbing", false},
		{"not a url", "not a url at all", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Qualifies(tc.url), tc.url)
		})
	}
}

func TestCleanBusinessName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Joe's Plumbing - Google Search", "Joe's Plumbing"},
		{"Joe's Plumbing | Site", "Joe's Plumbing"},
		{"Joe's Plumbing | Website", "Joe's Plumbing"},
		{"Joe's Plumbing Official Site", "Joe's Plumbing"},
		{"Joe's Plumbing", "Joe's Plumbing"},
		{"  Joe's Plumbing  ", "Joe's Plumbing"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanBusinessName(tc.in))
	}
}

func TestExtractEmail(t *testing.T) {
	cases := []struct {
		name    string
		snippet string
		want    string
	}{
		{"plain", "Contact us at joe@joesplumbing.com today", "joe@joesplumbing.com"},
		{"trailing punctuation", "Email: joe@joesplumbing.com.", "joe@joesplumbing.com"},
		{"none", "Best plumbing in Austin since 1985", ""},
		{"at sign only", "Follow us @joesplumbing", ""},
		{"first of several", "sales@acme.com or support@acme.com", "sales@acme.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractEmail(tc.snippet))
		})
	}
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "plumbers in Texas", BuildQuery(modelTarget("plumbers", "United States", "Texas")))
	assert.Equal(t, "plumbers in United States", BuildQuery(modelTarget("plumbers", "United States", "")))
}
