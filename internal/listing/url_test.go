package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	valid := []string{
		"https://www.amazon.com/dp/B08N5WRWNW",
		"https://amazon.in/dp/B08N5WRWNW",
		"http://www.amazon.co.uk/Some-Product-Title/dp/B000123456?ref=sr_1_1",
		"https://www.amazon.de/gp/product/B08N5WRWNW",
		"https://www.amazon.co.jp/dp/B08N5WRWNW/",
	}
	for _, url := range valid {
		assert.True(t, Validate(url), "expected valid: %s", url)
	}

	invalid := []string{
		"",
		"not a url",
		"ftp://www.amazon.com/dp/B08N5WRWNW",
		"https://www.example.com/dp/B08N5WRWNW",
		"https://www.amazon.com/gp/help/customer",
		"https://www.amazon.com/dp/short",
		"https://www.amazon.com/dp/b08n5wrwnw",
		"https://www.amazon.xyz/dp/B08N5WRWNW",
	}
	for _, url := range invalid {
		assert.False(t, Validate(url), "expected invalid: %s", url)
	}
}

func TestExtractProductID(t *testing.T) {
	id, ok := ExtractProductID("https://www.amazon.com/Some-Title/dp/B08N5WRWNW/ref=xyz")
	assert.True(t, ok)
	assert.Equal(t, "B08N5WRWNW", id)

	id, ok = ExtractProductID("https://www.amazon.in/gp/product/B000123456")
	assert.True(t, ok)
	assert.Equal(t, "B000123456", id)

	_, ok = ExtractProductID("https://www.amazon.com/stores/page/ABC")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips tracking parameters",
			in:   "https://www.amazon.com/Gaming-Mouse/dp/B08N5WRWNW?ref=sr_1_3&tag=affiliate-21&th=1",
			want: "https://www.amazon.com/dp/B08N5WRWNW",
		},
		{
			name: "adds www prefix",
			in:   "https://amazon.in/dp/B08N5WRWNW",
			want: "https://www.amazon.in/dp/B08N5WRWNW",
		},
		{
			name: "upgrades http",
			in:   "http://www.amazon.co.uk/dp/B000123456",
			want: "https://www.amazon.co.uk/dp/B000123456",
		},
		{
			name: "rewrites gp product form",
			in:   "https://www.amazon.de/gp/product/B08N5WRWNW?psc=1",
			want: "https://www.amazon.de/dp/B08N5WRWNW",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	canonical, err := Normalize("https://www.amazon.com/Thing/dp/B08N5WRWNW?ref=abc")
	assert.NoError(t, err)

	again, err := Normalize(canonical)
	assert.NoError(t, err)
	assert.Equal(t, canonical, again)
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	_, err := Normalize("https://www.example.com/dp/B08N5WRWNW")
	assert.Error(t, err)

	_, err = Normalize("https://www.amazon.com/gp/help/customer")
	assert.Error(t, err)
}
