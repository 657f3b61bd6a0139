package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		expected ErrorCategory
	}{
		{"invalid catalog item", "The CatalogItem Id is invalid: X12-34567:0001:DZH", CategoryInvalidCatalogItem},
		{"catalog item needs both markers", "the catalogitem id looks fine", CategoryOther},
		{"term duration", "TermDuration P3Y is not supported for this offer", CategoryInvalidTermDuration},
		{"token expired", "access token has expired", CategoryAuthenticationError},
		{"authentication failed", "Authentication failed for the partner tenant", CategoryAuthenticationError},
		{"timeout", "request timeout after 30s", CategoryTimeoutError},
		{"generic http", "HTTP Error: 500", CategoryHttpError},
		{"case insensitive", "http 502 bad gateway", CategoryHttpError},
		{"unmatched", "something completely different happened", CategoryOther},
		{"empty", "", CategoryOther},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, Classify(c.text))
		})
	}
}

// 规则顺序固定：同时命中多条规则时，前面的规则胜出。
func TestClassifyRuleOrder(t *testing.T) {
	assert.Equal(t, CategoryInvalidCatalogItem,
		Classify("catalogitem id is invalid, http 400, request timeout"))
	assert.Equal(t, CategoryInvalidTermDuration,
		Classify("termduration rejected over http"))
	assert.Equal(t, CategoryAuthenticationError,
		Classify("token rejected: http timeout while refreshing"))
	assert.Equal(t, CategoryTimeoutError,
		Classify("timeout on http call"))
}

func TestClassifyIsDeterministic(t *testing.T) {
	text := "TermDuration invalid over HTTP with timeout"
	first := Classify(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(text))
	}
}
