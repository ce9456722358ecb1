package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pricepulse/pkg/errors"
)

const fullPage = `
<html><body>
	<span id="productTitle"> Wireless Gaming Mouse </span>
	<img id="landingImage" src="https://img.example.com/photo._AC_SX342_.jpg"/>
	<div class="a-price">
		<span class="a-price-symbol">₹</span>
		<span class="a-price-whole">2,499.</span>
		<span class="a-price-fraction">00</span>
	</div>
	<div class="a-price a-text-price"><span class="a-offscreen">₹3,999.00</span></div>
	<div id="feature-bullets">
		<ul>
			<li> Ergonomic design </li>
			<li> 16000 DPI sensor </li>
		</ul>
	</div>
	<i data-hook="average-star-rating"><span>4.3 out of 5 stars</span></i>
	<div id="availability"><span> In Stock. </span></div>
</body></html>`

func TestParseFullPage(t *testing.T) {
	snap, err := Parse([]byte(fullPage))
	assert.NoError(t, err)
	assert.Equal(t, "Wireless Gaming Mouse", snap.Name)

	assert.NotNil(t, snap.CurrentPrice)
	assert.Equal(t, 2499.00, *snap.CurrentPrice)

	assert.NotNil(t, snap.OriginalPrice)
	assert.Equal(t, 3999.00, *snap.OriginalPrice)

	assert.NotNil(t, snap.Currency)
	assert.Equal(t, "₹", *snap.Currency)

	assert.NotNil(t, snap.Image)
	assert.Equal(t, "https://img.example.com/photo._SL1500_", *snap.Image)

	assert.NotNil(t, snap.Description)
	assert.Contains(t, *snap.Description, "Ergonomic design")
	assert.Contains(t, *snap.Description, "16000 DPI sensor")

	assert.NotNil(t, snap.Rating)
	assert.Equal(t, 4.3, *snap.Rating)

	assert.NotNil(t, snap.InStock)
	assert.True(t, *snap.InStock)
}

func TestParseBlockMarkerBeatsStructure(t *testing.T) {
	// A block interstitial can still contain a title element; the marker
	// must win so the caller backs off instead of misreading the page.
	page := `<html><body>
		<span id="productTitle">Robot Check</span>
		<p>Enter the characters you see below</p>
	</body></html>`

	_, err := Parse([]byte(page))
	assert.Error(t, err)
	assert.Equal(t, errors.KindBlocked, errors.KindOf(err))
}

func TestParseMissingNameFails(t *testing.T) {
	page := `<html><body>
		<div class="a-price"><span class="a-offscreen">$19.99</span></div>
		<div id="availability">In Stock.</div>
	</body></html>`

	_, err := Parse([]byte(page))
	assert.Error(t, err)
	assert.Equal(t, errors.KindParse, errors.KindOf(err))

	var te *errors.TrackError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, "name", te.MissingField)
}

func TestParseOffscreenPriceFallback(t *testing.T) {
	page := `<html><body>
		<span id="productTitle">Mechanical Keyboard</span>
		<div class="a-price"><span class="a-offscreen">$1,149.50</span></div>
	</body></html>`

	snap, err := Parse([]byte(page))
	assert.NoError(t, err)
	assert.NotNil(t, snap.CurrentPrice)
	assert.Equal(t, 1149.50, *snap.CurrentPrice)
}

func TestParseLegacyPriceBlock(t *testing.T) {
	page := `<html><body>
		<span id="productTitle">USB Hub</span>
		<span id="priceblock_ourprice">₹749.00</span>
	</body></html>`

	snap, err := Parse([]byte(page))
	assert.NoError(t, err)
	assert.NotNil(t, snap.CurrentPrice)
	assert.Equal(t, 749.00, *snap.CurrentPrice)
}

func TestParseAbsentFieldsStayNil(t *testing.T) {
	page := `<html><body><span id="productTitle">Bare Listing</span></body></html>`

	snap, err := Parse([]byte(page))
	assert.NoError(t, err)
	assert.Equal(t, "Bare Listing", snap.Name)
	assert.Nil(t, snap.CurrentPrice)
	assert.Nil(t, snap.OriginalPrice)
	assert.Nil(t, snap.Image)
	assert.Nil(t, snap.Description)
	assert.Nil(t, snap.Rating)
	assert.Nil(t, snap.Currency)

	// Stock is always decided; without an add-to-cart button it reads false.
	assert.NotNil(t, snap.InStock)
	assert.False(t, *snap.InStock)
}

func TestParseOutOfStock(t *testing.T) {
	page := `<html><body>
		<span id="productTitle">Discontinued Widget</span>
		<div id="availability">Currently unavailable.</div>
	</body></html>`

	snap, err := Parse([]byte(page))
	assert.NoError(t, err)
	assert.NotNil(t, snap.InStock)
	assert.False(t, *snap.InStock)
}

func TestParseRejectsZeroPrice(t *testing.T) {
	page := `<html><body>
		<span id="productTitle">Free Sample</span>
		<div class="a-price"><span class="a-offscreen">$0.00</span></div>
	</body></html>`

	snap, err := Parse([]byte(page))
	assert.NoError(t, err)
	assert.Nil(t, snap.CurrentPrice)
}

func TestParseTruncatesLongName(t *testing.T) {
	long := make([]byte, 0, 700)
	for i := 0; i < 700; i++ {
		long = append(long, 'x')
	}
	page := `<html><body><span id="productTitle">` + string(long) + `</span></body></html>`

	snap, err := Parse([]byte(page))
	assert.NoError(t, err)
	assert.Len(t, snap.Name, maxNameLen)
}
