package htmlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinks_DocumentOrderAndDomains(t *testing.T) {
	body := `<html><body>
		<p>Hello</p>
		<a href="https://Example.COM/one">First</a>
		<a href="https://evil-site.com/two">https://paypal.com/verify</a>
		<a name="anchor-without-href">skipped</a>
	</body></html>`

	links := ExtractLinks(body)
	require.Len(t, links, 2)
	assert.Equal(t, "https://Example.COM/one", links[0].Href)
	assert.Equal(t, "First", links[0].DisplayText)
	assert.Equal(t, "example.com", links[0].Domain)
	assert.Equal(t, "https://paypal.com/verify", links[1].DisplayText)
	assert.Equal(t, "evil-site.com", links[1].Domain)
}

func TestExtractLinks_EmptyBodyYieldsNil(t *testing.T) {
	assert.Nil(t, ExtractLinks(""))
	assert.Nil(t, ExtractLinks("   \n\t "))
}

func TestExtractLinks_HostlessHrefYieldsEmptyDomain(t *testing.T) {
	links := ExtractLinks(`<a href="javascript:void(0)">x</a>`)
	require.Len(t, links, 1)
	assert.Equal(t, "", links[0].Domain)
}

func TestExtractLinks_RelativeHrefHasNoDomain(t *testing.T) {
	links := ExtractLinks(`<a href="/unsubscribe">Unsubscribe</a>`)
	require.Len(t, links, 1)
	assert.Equal(t, "", links[0].Domain)
}
