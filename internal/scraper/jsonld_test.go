package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seasonstay/internal/models"
)

const partnerPage = `<!doctype html>
<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Apartment",
  "identifier": "GRE-204",
  "name": "T2 meublé proche gare",
  "description": "  Deux pièces au calme.  ",
  "url": "/logements/gre-204",
  "image": ["/img/gre-204-1.jpg", {"@type": "ImageObject", "url": "https://cdn.example.org/gre-204-2.jpg"}],
  "address": {"@type": "PostalAddress", "streetAddress": "3 rue Émile Gueymard", "postalCode": "38000", "addressLocality": "Grenoble"},
  "geo": {"@type": "GeoCoordinates", "latitude": "45.1911", "longitude": 5.7143},
  "floorSize": {"@type": "QuantitativeValue", "value": 38, "unitCode": "MTK"},
  "numberOfRooms": 2,
  "offers": {"@type": "Offer", "price": "690,00", "priceCurrency": "EUR"}
}
</script>
<script type="application/ld+json">
{"@context": "https://schema.org", "@graph": [
  {"@type": "Organization", "name": "Abritel"},
  {"@type": "Offer", "price": 520, "priceCurrency": "EUR",
   "itemOffered": {"@type": "https://schema.org/House", "@id": "https://partner.example.org/h/77", "name": "Petite maison avec jardin",
                   "address": "Chemin des Vignes, Montmélian"}}
]}
</script>
<script type="application/ld+json">{ not json</script>
<script type="application/ld+json">
{"@type": "ItemList", "itemListElement": [
  {"@type": "ListItem", "position": 1, "item": {"@type": ["Room"], "identifier": 9001, "name": "Chambre chez l'habitant", "offers": [{"price": 300, "priceCurrency": "CHF"}, {"price": 310, "priceCurrency": "EUR"}]}},
  {"@type": "ListItem", "position": 2, "item": {"@type": "Apartment", "identifier": "no-price", "name": "Sans prix"}},
  {"@type": "ListItem", "position": 3, "item": {"@type": "Apartment", "identifier": "GRE-204", "name": "T2 meublé proche gare", "offers": {"price": 690}}}
]}
</script>
</head><body></body></html>`

func TestExtractListings(t *testing.T) {
	page := Page{Partner: "p3", URL: "https://partner.example.org/annonces?page=1"}
	listings, err := ExtractListings(partnerPage, page)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	apt := listings[0]
	assert.Equal(t, "p3:GRE-204", apt.ExternalID)
	assert.Equal(t, SourcePartner, apt.Source)
	assert.Equal(t, "p3", apt.PartnerID)
	assert.Equal(t, "T2 meublé proche gare", apt.Title)
	assert.Equal(t, "Deux pièces au calme.", apt.Description)
	assert.Equal(t, 690.0, apt.Price)
	assert.Equal(t, 38.0, apt.Surface)
	assert.Equal(t, 2, apt.Rooms)
	assert.Equal(t, models.TypeAppartement, apt.Type)
	assert.Equal(t, "https://partner.example.org/logements/gre-204", apt.URL)
	assert.Equal(t, []string{
		"https://partner.example.org/img/gre-204-1.jpg",
		"https://cdn.example.org/gre-204-2.jpg",
	}, apt.Images)
	assert.Equal(t, "3 rue Émile Gueymard, 38000 Grenoble", apt.Address)
	assert.Equal(t, "Grenoble", apt.City)
	lat, lng, ok := apt.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 45.1911, lat, 1e-9)
	assert.InDelta(t, 5.7143, lng, 1e-9)

	house := listings[1]
	assert.Equal(t, "p3:https://partner.example.org/h/77", house.ExternalID)
	assert.Equal(t, models.TypeMaison, house.Type)
	assert.Equal(t, 520.0, house.Price)
	assert.Equal(t, "Chemin des Vignes, Montmélian", house.Address)
	assert.Equal(t, page.URL, house.URL, "falls back to the page URL")
	_, _, ok = house.Coordinates()
	assert.False(t, ok)

	room := listings[2]
	assert.Equal(t, "p3:9001", room.ExternalID)
	assert.Equal(t, models.TypeStudio, room.Type)
	assert.Equal(t, 310.0, room.Price, "only euro offers count")
}

func TestExtractListings_NoJSONLD(t *testing.T) {
	listings, err := ExtractListings(`<html><body><h1>Logements</h1></body></html>`, Page{Partner: "p1", URL: "https://example.org"})
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		typ, title string
		want       models.PropertyType
	}{
		{"Apartment", "Studio lumineux", models.TypeStudio},
		{"Apartment", "Loft industriel", models.TypeLoft},
		{"SingleFamilyResidence", "Grande demeure", models.TypeMaison},
		{"Accommodation", "Maison de village", models.TypeMaison},
		{"HotelRoom", "Chambre double", models.TypeStudio},
		{"Accommodation", "T3 rénové", models.TypeAppartement},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.typ, tt.title))
		})
	}
}

func TestLoadPages(t *testing.T) {
	pages, err := LoadPages([]byte(`
pages:
  - partner: p1
    url: https://partner-one.example.org/saisonniers
  - partner: p2
    url: https://partner-two.example.org/annonces
    browser: true
`))
	require.NoError(t, err)
	assert.Equal(t, []Page{
		{Partner: "p1", URL: "https://partner-one.example.org/saisonniers"},
		{Partner: "p2", URL: "https://partner-two.example.org/annonces", Browser: true},
	}, pages)

	_, err = LoadPages([]byte("pages:\n  - url: https://example.org\n"))
	assert.Error(t, err)
}
